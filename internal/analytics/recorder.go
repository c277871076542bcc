// Package analytics records user activity events and builds the officer
// reports over appointments and those events.
package analytics

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/tasks"
)

type EventType string

const (
	UserRegistered     EventType = "user_registered"
	UserLogin          EventType = "user_login"
	TimeslotSearch     EventType = "timeslot_search"
	BookingCreated     EventType = "booking_created"
	ComplaintSubmitted EventType = "complaint_submitted"
	DocumentUploaded   EventType = "document_uploaded"
)

type Event struct {
	ID         uuid.UUID
	Type       EventType
	NIC        string
	Department department.ID // empty when not department scoped
	Extra      map[string]any
	CreatedAt  time.Time
}

type EventStore interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// Recorder writes events on the side channel. Recording never fails the caller.
type Recorder struct {
	store  EventStore
	side   tasks.Runner
	logger *observability.Logger
	clock  func() time.Time
}

func NewRecorder(store EventStore, side tasks.Runner, logger *observability.Logger) *Recorder {
	return &Recorder{store: store, side: side, logger: logger, clock: time.Now}
}

func (r *Recorder) Record(ctx context.Context, typ EventType, nic string, dept department.ID, extra map[string]any) {
	ev := Event{
		ID:         uuid.New(),
		Type:       typ,
		NIC:        nic,
		Department: dept,
		Extra:      maps.Clone(extra),
		CreatedAt:  r.clock().UTC(),
	}
	if ev.Extra == nil {
		ev.Extra = map[string]any{}
	}

	err := r.side.Submit("analytics."+string(typ), func(taskCtx context.Context) error {
		if err := r.store.InsertEvent(taskCtx, ev); err != nil {
			observability.AnalyticsEvents.WithLabelValues(string(typ), "failed").Inc()
			return err
		}
		observability.AnalyticsEvents.WithLabelValues(string(typ), "ok").Inc()
		r.logger.Debug("analytics event tracked", "type", typ, "nic", nic)
		return nil
	})
	if err != nil {
		observability.AnalyticsEvents.WithLabelValues(string(typ), "dropped").Inc()
		r.logger.WithContext(ctx).Warn("analytics event dropped", "type", typ, "error", err)
	}
}
