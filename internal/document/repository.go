package document

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/gov-appointments/internal/db"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PgRepository struct {
	q db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{q: q}
}

const documentColumns = `id, user_id, filename, stored_name, file_path, document_type, size_bytes, appointment_id, status, uploaded_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.StoredName, &d.Path, &d.DocumentType,
		&d.SizeBytes, &d.AppointmentID, &d.Status, &d.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) Create(ctx context.Context, d *Document) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, d.ID, d.UserID, d.Filename, d.StoredName, d.Path, d.DocumentType,
		d.SizeBytes, d.AppointmentID, d.Status, d.UploadedAt)
	return err
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

func (r *PgRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Document, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id = $1
		ORDER BY uploaded_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
