package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/gov-appointments/internal/db"
)

// Tables in foreign-key safe restore order.
var Tables = []string{
	"identities",
	"citizens",
	"officers",
	"time_slots",
	"appointments",
	"appointment_status_history",
	"notifications",
	"complaints",
	"documents",
	"analytics_events",
}

// PgStore dumps rows with row_to_json and restores them with
// json_populate_record, so column sets never need to be listed.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Collections() []string { return Tables }

// Snapshot opens a read-only repeatable-read transaction; every Dump made
// through the reader sees the database as of its first query.
func (s *PgStore) Snapshot(ctx context.Context, fn func(ctx context.Context, r CollectionReader) error) error {
	return db.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, txReader{q: tx})
	})
}

type txReader struct {
	q db.DBTX
}

func (r txReader) Dump(ctx context.Context, name string) ([]json.RawMessage, error) {
	table, err := ident(name)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.Query(ctx, `SELECT row_to_json(t) FROM `+table+` t`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (json.RawMessage, error) {
		var b []byte
		err := row.Scan(&b)
		return json.RawMessage(b), err
	})
}

func (s *PgStore) RestoreChunk(ctx context.Context, name string, docs []json.RawMessage) error {
	table, err := ident(name)
	if err != nil {
		return err
	}
	sql := `INSERT INTO ` + table + ` SELECT * FROM json_populate_record(NULL::` + table + `, $1::json) ON CONFLICT DO NOTHING`

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, doc := range docs {
			b.Queue(sql, string(doc))
		}
		return tx.SendBatch(ctx, b).Close()
	})
}

func ident(name string) (string, error) {
	if !slices.Contains(Tables, name) {
		return "", fmt.Errorf("unknown collection %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}
