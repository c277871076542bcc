package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/gov-appointments/internal/db"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error)

	// MarkRead stamps read_at the first time only.
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (*Notification, error)
}

type PgRepository struct {
	q db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{q: q}
}

const notificationColumns = `id, user_id, title, message, type, is_read, read_at, appointment_id, sent_by, channel_in_app, channel_email, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.IsRead,
		&n.ReadAt,
		&n.AppointmentID,
		&n.SentBy,
		&n.Channels.InApp,
		&n.Channels.Email,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *PgRepository) Create(ctx context.Context, n *Notification) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications (
			id, user_id, title, message, type, is_read, appointment_id,
			sent_by, channel_in_app, channel_email, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		n.ID,
		n.UserID,
		n.Title,
		n.Message,
		n.Type,
		n.IsRead,
		n.AppointmentID,
		n.SentBy,
		n.Channels.InApp,
		n.Channels.Email,
		n.CreatedAt,
	)
	return err
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	row := r.q.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

func (r *PgRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (*Notification, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE notifications
		SET is_read = true,
		    read_at = COALESCE(read_at, $2)
		WHERE id = $1
		RETURNING `+notificationColumns,
		id, at)
	return scanNotification(row)
}
