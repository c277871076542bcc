package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/department"
)

// Repository contains all slot storage operations.
type Repository interface {
	GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (*TimeSlot, error)
	ListAvailable(ctx context.Context, dept department.ID, date string) ([]TimeSlot, error)
	CreateMany(ctx context.Context, slots []TimeSlot) error
	SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, from, to Availability) (*TimeSlot, error)

	// MarkBooked flips an available slot to booked. It reports ErrSlotNotFound
	// or ErrSlotUnavailable when the conditional update matches nothing.
	MarkBooked(ctx context.Context, dept department.ID, id uuid.UUID, nic string, at time.Time) (*TimeSlot, error)
	Release(ctx context.Context, dept department.ID, id uuid.UUID) error
}

type PgRepository struct {
	q db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{q: q}
}

const slotColumns = `id, department, slot_date, start_time, end_time, availability, capacity, booked_by, booked_at, created_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(
		&s.ID,
		&s.Department,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Availability,
		&s.Capacity,
		&s.BookedBy,
		&s.BookedAt,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1 AND department = $2
	`, id, dept)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailable(ctx context.Context, dept department.ID, date string) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE department = $1 AND slot_date = $2 AND availability = 'available'
		ORDER BY start_time
	`, dept, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []TimeSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateMany(ctx context.Context, slots []TimeSlot) error {
	_, err := r.q.CopyFrom(ctx,
		pgx.Identifier{"time_slots"},
		[]string{"id", "department", "slot_date", "start_time", "end_time", "availability", "capacity", "created_at"},
		pgx.CopyFromSlice(len(slots), func(i int) ([]any, error) {
			s := slots[i]
			return []any{s.ID, string(s.Department), s.Date, s.StartTime, s.EndTime, string(s.Availability), s.Capacity, s.CreatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy time slots: %w", err)
	}
	return nil
}

func (r *PgRepository) SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, from, to Availability) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE time_slots
		SET availability = $3
		WHERE id = $1 AND department = $2 AND availability = $4
		RETURNING `+slotColumns,
		id, dept, to, from)
	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, r.missOrConflict(ctx, dept, id)
	}
	return s, err
}

func (r *PgRepository) MarkBooked(ctx context.Context, dept department.ID, id uuid.UUID, nic string, at time.Time) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE time_slots
		SET availability = 'booked',
		    booked_by = $3,
		    booked_at = $4
		WHERE id = $1
		  AND department = $2
		  AND availability = 'available'
		RETURNING `+slotColumns,
		id, dept, nic, at)
	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, r.missOrConflict(ctx, dept, id)
	}
	return s, err
}

func (r *PgRepository) Release(ctx context.Context, dept department.ID, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		UPDATE time_slots
		SET availability = 'available',
		    booked_by = NULL,
		    booked_at = NULL
		WHERE id = $1 AND department = $2 AND availability = 'booked'
	`, id, dept)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// missOrConflict tells a missing slot apart from one in the wrong state after
// a conditional update matched no row.
func (r *PgRepository) missOrConflict(ctx context.Context, dept department.ID, id uuid.UUID) error {
	if _, err := r.GetByID(ctx, dept, id); err != nil {
		return err
	}
	return ErrSlotUnavailable
}
