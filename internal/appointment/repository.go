package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/slot"
)

var ErrAppointmentNotFound = fmt.Errorf("%w: appointment not found", apperr.ErrNotFound)

// Repository contains all appointment storage operations.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error)

	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	InsertStatusChange(ctx context.Context, c StatusChange) error
	ListStatusChanges(ctx context.Context, id uuid.UUID) ([]StatusChange, error)

	ListByNIC(ctx context.Context, nic string) ([]Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)
	CountByDepartment(ctx context.Context) (map[department.ID]int, error)

	// Reminder sweep
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	ClaimReminder(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// TxRepositories are the repositories bound to one transaction.
type TxRepositories struct {
	Slots        slot.Repository
	Appointments Repository
}

// TxManager runs fn in a transaction, committing when it returns nil.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}
