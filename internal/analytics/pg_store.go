package analytics

import (
	"context"
	"fmt"

	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/department"
)

type PgStore struct {
	q db.DBTX
}

func NewPgStore(q db.DBTX) *PgStore {
	return &PgStore{q: q}
}

func (s *PgStore) InsertEvent(ctx context.Context, ev Event) error {
	var dept *string
	if ev.Department != "" {
		d := string(ev.Department)
		dept = &d
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO analytics_events (id, type, nic, department, extra, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, ev.Type, ev.NIC, dept, ev.Extra, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (s *PgStore) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.q.Query(ctx, `
		SELECT department, status, count(*)
		FROM appointments
		GROUP BY department, status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		var dept string
		if err := rows.Scan(&dept, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		c.Department = department.ID(dept)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PgStore) HourCounts(ctx context.Context) (map[int]int, error) {
	rows, err := s.q.Query(ctx, `
		SELECT EXTRACT(HOUR FROM scheduled_at AT TIME ZONE 'UTC')::int AS hour, count(*)
		FROM appointments
		GROUP BY hour
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, err
		}
		out[hour] = count
	}
	return out, rows.Err()
}

func (s *PgStore) ProcessingTimes(ctx context.Context) ([]ProcessingSample, error) {
	rows, err := s.q.Query(ctx, `
		SELECT department,
		       count(*),
		       COALESCE(avg(EXTRACT(EPOCH FROM processed_at - created_at)), 0)::float8
		FROM appointments
		WHERE processed_at IS NOT NULL
		GROUP BY department
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProcessingSample
	for rows.Next() {
		var p ProcessingSample
		var dept string
		if err := rows.Scan(&dept, &p.Count, &p.AvgSeconds); err != nil {
			return nil, err
		}
		p.Department = department.ID(dept)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PgStore) EventCounts(ctx context.Context) ([]EventCount, error) {
	rows, err := s.q.Query(ctx, `
		SELECT type, COALESCE(department, ''), count(*)
		FROM analytics_events
		GROUP BY type, department
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var e EventCount
		if err := rows.Scan(&e.Type, &e.Department, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
