package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/slot"
)

const uniqueViolation = "23505"

type PgRepository struct {
	q db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{q: q}
}

const appointmentColumns = `
	id, nic, user_id, department, time_slot_id, scheduled_at, status, qr_code, reference,
	application_form, supporting_documents, delivery_status, reports, appointment_type, remarks,
	feedback, rating, feedback_submitted_at, officer_notes, updated_by, reschedule_reason,
	rescheduled_by, rescheduled_at, reminder_sent_at, processed_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.NIC,
		&a.UserID,
		&a.Department,
		&a.TimeSlotID,
		&a.ScheduledAt,
		&a.Status,
		&a.QRCode,
		&a.Reference,
		&a.ApplicationForm,
		&a.SupportingDocuments,
		&a.DeliveryStatus,
		&a.Reports,
		&a.AppointmentType,
		&a.Remarks,
		&a.Feedback,
		&a.Rating,
		&a.FeedbackSubmittedAt,
		&a.OfficerNotes,
		&a.UpdatedBy,
		&a.RescheduleReason,
		&a.RescheduledBy,
		&a.RescheduledAt,
		&a.ReminderSentAt,
		&a.ProcessedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if a.SupportingDocuments == nil {
		a.SupportingDocuments = []string{}
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	docs := a.SupportingDocuments
	if docs == nil {
		docs = []string{}
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO appointments (
			id, nic, user_id, department, time_slot_id, scheduled_at, status, qr_code, reference,
			application_form, supporting_documents, delivery_status, reports, appointment_type,
			remarks, feedback, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		a.ID, a.NIC, a.UserID, a.Department, a.TimeSlotID, a.ScheduledAt, a.Status, a.QRCode, a.Reference,
		a.ApplicationForm, docs, a.DeliveryStatus, a.Reports, a.AppointmentType,
		a.Remarks, a.Feedback, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return slot.ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND department = $2
	`, id, dept)
	return scanAppointment(row)
}

func (r *PgRepository) GetForUpdate(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND department = $2
		FOR UPDATE
	`, id, dept)
	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    scheduled_at = $3,
		    feedback = $4,
		    rating = $5,
		    feedback_submitted_at = $6,
		    officer_notes = $7,
		    updated_by = $8,
		    reschedule_reason = $9,
		    rescheduled_by = $10,
		    rescheduled_at = $11,
		    reminder_sent_at = $12,
		    processed_at = $13,
		    updated_at = $14
		WHERE id = $1
	`,
		a.ID, a.Status, a.ScheduledAt, a.Feedback, a.Rating, a.FeedbackSubmittedAt, a.OfficerNotes,
		a.UpdatedBy, a.RescheduleReason, a.RescheduledBy, a.RescheduledAt, a.ReminderSentAt,
		a.ProcessedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return slot.ErrSlotUnavailable
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertStatusChange(ctx context.Context, c StatusChange) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointment_status_history (id, appointment_id, department, from_status, to_status, actor_id, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.AppointmentID, c.Department, c.From, c.To, c.ActorID, c.Notes, c.ChangedAt)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}
	return nil
}

func (r *PgRepository) ListStatusChanges(ctx context.Context, id uuid.UUID) ([]StatusChange, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, appointment_id, department, from_status, to_status, actor_id, notes, changed_at
		FROM appointment_status_history
		WHERE appointment_id = $1
		ORDER BY changed_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []StatusChange{}
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.AppointmentID, &c.Department, &c.From, &c.To, &c.ActorID, &c.Notes, &c.ChangedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListByNIC(ctx context.Context, nic string) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE nic = $1
		ORDER BY scheduled_at DESC
	`, nic)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	var dept, status *string
	if f.Department != "" {
		d := string(f.Department)
		dept = &d
	}
	if f.Status != "" {
		s := string(f.Status)
		status = &s
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::text IS NULL OR department = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::timestamptz IS NULL OR scheduled_at >= $3)
		  AND ($4::timestamptz IS NULL OR scheduled_at < $4)
		ORDER BY scheduled_at
	`, dept, status, f.From, f.To)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PgRepository) CountByDepartment(ctx context.Context) (map[department.ID]int, error) {
	rows, err := r.q.Query(ctx, `SELECT department, count(*) FROM appointments GROUP BY department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[department.ID]int{}
	for rows.Next() {
		var dept string
		var n int
		if err := rows.Scan(&dept, &n); err != nil {
			return nil, err
		}
		out[department.ID(dept)] = n
	}
	return out, rows.Err()
}

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND reminder_sent_at IS NULL
		  AND scheduled_at >= $1
		  AND scheduled_at < $2
		ORDER BY scheduled_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *PgRepository) ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2
		WHERE id = $1 AND reminder_sent_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PgTxManager opens a pgx transaction and binds fresh repositories to it.
type PgTxManager struct {
	pool *pgxpool.Pool
}

func NewPgTxManager(pool *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{pool: pool}
}

func (m *PgTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error {
	return db.WithTx(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(ctx, TxRepositories{
			Slots:        slot.NewPgRepository(tx),
			Appointments: NewPgRepository(tx),
		})
	})
}
