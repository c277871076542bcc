// Package complaint accepts citizen complaints about a department.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/db"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
)

const StatusSubmitted = "submitted"

type Complaint struct {
	ID          uuid.UUID     `json:"id"`
	NIC         string        `json:"nic"`
	UserID      uuid.UUID     `json:"userId"`
	Department  department.ID `json:"department"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type SubmitRequest struct {
	Department  string `json:"department"`
	Description string `json:"description"`
}

type Repository interface {
	Create(ctx context.Context, c *Complaint) error
	ListByNIC(ctx context.Context, nic string) ([]Complaint, error)
}

type PgRepository struct {
	q db.DBTX
}

func NewPgRepository(q db.DBTX) *PgRepository {
	return &PgRepository{q: q}
}

func (r *PgRepository) Create(ctx context.Context, c *Complaint) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO complaints (id, nic, user_id, department, description, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.NIC, c.UserID, c.Department, c.Description, c.Status, c.CreatedAt)
	return err
}

func (r *PgRepository) ListByNIC(ctx context.Context, nic string) ([]Complaint, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, nic, user_id, department, description, status, created_at
		FROM complaints
		WHERE nic = $1
		ORDER BY created_at DESC
	`, nic)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Complaint, error) {
		var c Complaint
		err := row.Scan(&c.ID, &c.NIC, &c.UserID, &c.Department, &c.Description, &c.Status, &c.CreatedAt)
		return c, err
	})
}

// NICResolver maps a citizen account to its NIC.
type NICResolver interface {
	CitizenNIC(ctx context.Context, userID uuid.UUID) (string, error)
}

type EventRecorder interface {
	Record(ctx context.Context, typ analytics.EventType, nic string, dept department.ID, extra map[string]any)
}

type Service struct {
	repo   Repository
	nics   NICResolver
	events EventRecorder
	logger *observability.Logger
	clock  func() time.Time
}

func NewService(repo Repository, nics NICResolver, events EventRecorder, logger *observability.Logger) *Service {
	return &Service{repo: repo, nics: nics, events: events, logger: logger, clock: time.Now}
}

func (s *Service) Submit(ctx context.Context, caller auth.Principal, req SubmitRequest) (*Complaint, error) {
	if caller.Role != auth.RoleCitizen {
		return nil, apperr.Forbidden("only citizens can submit complaints")
	}
	desc := strings.TrimSpace(req.Description)
	if strings.TrimSpace(req.Department) == "" || desc == "" {
		return nil, apperr.Validation("department and description are required")
	}
	dept, err := department.Parse(req.Department)
	if err != nil {
		return nil, err
	}

	nic, err := s.nics.CitizenNIC(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	c := &Complaint{
		ID:          uuid.New(),
		NIC:         nic,
		UserID:      caller.UserID,
		Department:  dept,
		Description: desc,
		Status:      StatusSubmitted,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create complaint: %w", err)
	}

	s.events.Record(ctx, analytics.ComplaintSubmitted, nic, dept, map[string]any{"complaint_id": c.ID.String()})
	s.logger.WithContext(ctx).Info("complaint submitted", "complaint_id", c.ID, "department", dept)
	return c, nil
}

// ListByNIC returns complaints for nic. Citizens may only read their own.
func (s *Service) ListByNIC(ctx context.Context, caller auth.Principal, nic string) ([]Complaint, error) {
	if !caller.IsOfficer() {
		own, err := s.nics.CitizenNIC(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Forbidden("access denied")
			}
			return nil, err
		}
		if own != nic {
			return nil, apperr.Forbidden("access denied")
		}
	}

	list, err := s.repo.ListByNIC(ctx, nic)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return list, nil
}
