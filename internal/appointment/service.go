package appointment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/notification"
	"github.com/hackgods/gov-appointments/internal/observability"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
	"github.com/hackgods/gov-appointments/internal/slot"
)

const (
	defaultRescheduleReason = "Rescheduled by staff"
	displayLayout           = "2006-01-02 15:04"
)

var (
	ErrSlotBeingBooked = apperr.Conflict("time slot is currently being booked, please retry")
	ErrNotCitizen      = apperr.Forbidden("only citizens can book appointments")
)

// Notifier is the part of the notification dispatcher the service uses.
type Notifier interface {
	Dispatch(ctx context.Context, userID uuid.UUID, title, message string, typ notification.Type, opts notification.Options) (notification.DeliveryReport, error)
}

type EventRecorder interface {
	Record(ctx context.Context, typ analytics.EventType, nic string, dept department.ID, extra map[string]any)
}

type Service struct {
	repo     Repository
	tx       TxManager
	locker   redisclient.Locker
	notifier Notifier
	events   EventRecorder
	logger   *observability.Logger

	clock  func() time.Time
	suffix func() int
	loc    *time.Location
}

func NewService(
	repo Repository,
	tx TxManager,
	locker redisclient.Locker,
	notifier Notifier,
	events EventRecorder,
	logger *observability.Logger,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		locker:   locker,
		notifier: notifier,
		events:   events,
		logger:   logger,
		clock:    time.Now,
		suffix:   func() int { return 1000 + rand.IntN(9000) },
		loc:      time.UTC,
	}
}

// Reserve books an available slot for a citizen. The slot flip and the
// appointment insert commit together or not at all.
func (s *Service) Reserve(ctx context.Context, dept department.ID, slotID uuid.UUID, booker Booker, details BookingDetails) (*Appointment, error) {
	if booker.NIC == "" {
		return nil, ErrNotCitizen
	}

	var created *Appointment

	err := s.locker.WithSlotLock(ctx, string(dept), slotID, func(lockCtx context.Context) error {
		return s.tx.WithTx(lockCtx, func(ctx context.Context, repos TxRepositories) error {
			now := s.clock()

			booked, err := repos.Slots.MarkBooked(ctx, dept, slotID, booker.NIC, now.UTC())
			if err != nil {
				return err
			}
			scheduledAt, err := booked.StartsAt(s.loc)
			if err != nil {
				return fmt.Errorf("slot %s has malformed start: %w", slotID, err)
			}

			ref := NewReference(dept, now.In(s.loc), s.suffix())
			qr, err := QRCode(ref)
			if err != nil {
				return err
			}

			appt := &Appointment{
				ID:                  uuid.New(),
				NIC:                 booker.NIC,
				UserID:              booker.UserID,
				Department:          dept,
				TimeSlotID:          slotID,
				ScheduledAt:         scheduledAt.UTC(),
				Status:              StatusConfirmed,
				QRCode:              qr,
				Reference:           ref,
				SupportingDocuments: []string{},
				CreatedAt:           now.UTC(),
				UpdatedAt:           now.UTC(),
			}
			applyDetails(appt, details)

			if err := repos.Appointments.Create(ctx, appt); err != nil {
				return err
			}
			created = appt
			return nil
		})
	})
	if err != nil {
		observability.Bookings.WithLabelValues(string(dept), bookingResult(err)).Inc()
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve slot: %w", err)
	}
	observability.Bookings.WithLabelValues(string(dept), "booked").Inc()

	s.events.Record(ctx, analytics.BookingCreated, booker.NIC, dept, map[string]any{
		"appointmentId": created.ID.String(),
		"reference":     created.Reference,
	})
	s.notify(ctx, created, "Appointment Confirmed",
		fmt.Sprintf("Your %s appointment has been confirmed. Reference: %s", dept, created.Reference),
		notification.TypeBookingConfirmation, notification.Options{})

	return created, nil
}

func bookingResult(err error) string {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired), errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func applyDetails(a *Appointment, d BookingDetails) {
	switch a.Department {
	case department.Passport:
		a.ApplicationForm = d.ApplicationForm
		a.SupportingDocuments = nonNil(d.SupportingDocuments)
		a.DeliveryStatus = "pending"
		a.Remarks = d.Remarks
	case department.License:
		a.ApplicationForm = d.ApplicationForm
		a.SupportingDocuments = nonNil(d.SupportingDocuments)
		a.DeliveryStatus = "pending"
		a.AppointmentType = d.AppointmentType
		if a.AppointmentType == "" {
			a.AppointmentType = "new license"
		}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SetStatus moves an appointment to any status in the set. Cancelling frees
// the slot; leaving cancelled takes it back if it is still free.
func (s *Service) SetStatus(ctx context.Context, dept department.ID, id uuid.UUID, rawStatus string, actor auth.Principal, notes string) (*Appointment, error) {
	if !actor.IsOfficer() {
		return nil, apperr.Forbidden("officer access required")
	}
	to, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var (
		updated *Appointment
		from    Status
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		a, err := repos.Appointments.GetForUpdate(ctx, dept, id)
		if err != nil {
			return err
		}
		now := s.clock().UTC()
		from = a.Status

		switch {
		case to == StatusCancelled && from != StatusCancelled:
			if err := repos.Slots.Release(ctx, dept, a.TimeSlotID); err != nil {
				return err
			}
		case from == StatusCancelled && to != StatusCancelled:
			if _, err := repos.Slots.MarkBooked(ctx, dept, a.TimeSlotID, a.NIC, now); err != nil {
				if errors.Is(err, slot.ErrSlotUnavailable) {
					return apperr.Conflict("the original time slot has been taken, reschedule instead")
				}
				return err
			}
		}

		a.Status = to
		a.UpdatedAt = now
		a.UpdatedBy = actor.UserID.String()
		if notes != "" {
			a.OfficerNotes = notes
		}
		if to == StatusCompleted && a.ProcessedAt == nil {
			a.ProcessedAt = &now
		}
		if err := repos.Appointments.Update(ctx, a); err != nil {
			return err
		}

		if err := repos.Appointments.InsertStatusChange(ctx, StatusChange{
			ID:            uuid.New(),
			AppointmentID: a.ID,
			Department:    dept,
			From:          from,
			To:            to,
			ActorID:       actor.UserID.String(),
			Notes:         notes,
			ChangedAt:     now,
		}); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, wrapDomain(err, "set appointment status")
	}

	observability.StatusTransitions.WithLabelValues(string(dept), string(to)).Inc()
	s.logger.WithContext(ctx).Info("appointment status changed",
		"appointment_id", id, "department", dept, "from", from, "to", to, "actor", actor.UserID)

	s.notify(ctx, updated, "Appointment Status Update",
		fmt.Sprintf("Your %s appointment status has been updated to: %s", dept, to),
		notification.TypeStatusUpdate, notification.Options{SentBy: actor.UserID.String()})

	return updated, nil
}

// ParseDateTime accepts RFC 3339 and the minute precision forms used by the
// officer console.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", displayLayout} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("scheduledDateTime must be an ISO 8601 date time")
}

// Reschedule moves the appointment to a new time and confirms it. The
// citizen is told in app and by email.
func (s *Service) Reschedule(ctx context.Context, dept department.ID, id uuid.UUID, rawDateTime, reason string, actor auth.Principal) (*Appointment, error) {
	if !actor.IsOfficer() {
		return nil, apperr.Forbidden("officer access required")
	}
	if rawDateTime == "" {
		return nil, apperr.Validation("scheduledDateTime and department required")
	}
	when, err := ParseDateTime(rawDateTime, s.loc)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = defaultRescheduleReason
	}

	var updated *Appointment
	err = s.tx.WithTx(ctx, func(ctx context.Context, repos TxRepositories) error {
		a, err := repos.Appointments.GetForUpdate(ctx, dept, id)
		if err != nil {
			return err
		}
		if a.Status.Terminal() {
			return apperr.Conflict("%s appointments cannot be rescheduled", a.Status)
		}

		now := s.clock().UTC()
		from := a.Status
		a.ScheduledAt = when.UTC()
		a.Status = StatusConfirmed
		a.RescheduledAt = &now
		a.RescheduledBy = actor.UserID.String()
		a.RescheduleReason = reason
		a.ReminderSentAt = nil
		a.UpdatedAt = now
		a.UpdatedBy = actor.UserID.String()
		if err := repos.Appointments.Update(ctx, a); err != nil {
			return err
		}
		if err := repos.Appointments.InsertStatusChange(ctx, StatusChange{
			ID:            uuid.New(),
			AppointmentID: a.ID,
			Department:    dept,
			From:          from,
			To:            StatusConfirmed,
			ActorID:       actor.UserID.String(),
			Notes:         "rescheduled: " + reason,
			ChangedAt:     now,
		}); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, wrapDomain(err, "reschedule appointment")
	}

	s.logger.WithContext(ctx).Info("appointment rescheduled",
		"appointment_id", id, "department", dept, "scheduled_at", updated.ScheduledAt, "actor", actor.UserID)

	s.notify(ctx, updated, "Appointment Rescheduled",
		fmt.Sprintf("Your %s appointment has been rescheduled to %s. Reason: %s", dept, updated.ScheduledAt.In(s.loc).Format(displayLayout), reason),
		notification.TypeReschedule, notification.Options{EmailRequested: true, SentBy: actor.UserID.String()})

	return updated, nil
}

// SubmitFeedback stores a rating on the caller's own appointment.
func (s *Service) SubmitFeedback(ctx context.Context, dept department.ID, id uuid.UUID, caller auth.Principal, feedback string, rating int) (*Appointment, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, apperr.Validation("missing required fields")
	}
	if rating == 0 {
		rating = 5
	}
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}

	a, err := s.repo.GetByID(ctx, dept, id)
	if err != nil {
		return nil, wrapDomain(err, "load appointment")
	}
	if a.UserID != caller.UserID {
		return nil, apperr.Forbidden("access denied")
	}

	now := s.clock().UTC()
	a.Feedback = feedback
	a.Rating = &rating
	a.FeedbackSubmittedAt = &now
	a.UpdatedAt = now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, wrapDomain(err, "save feedback")
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, dept department.ID, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, dept, id)
	if err != nil {
		return nil, wrapDomain(err, "get appointment")
	}
	return a, nil
}

func (s *Service) History(ctx context.Context, dept department.ID, id uuid.UUID) ([]StatusChange, error) {
	if _, err := s.Get(ctx, dept, id); err != nil {
		return nil, err
	}
	changes, err := s.repo.ListStatusChanges(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	return changes, nil
}

func (s *Service) ListForCitizen(ctx context.Context, nic string) ([]Appointment, error) {
	items, err := s.repo.ListByNIC(ctx, nic)
	if err != nil {
		return nil, fmt.Errorf("list appointments by nic: %w", err)
	}
	return items, nil
}

// ParseWindow maps the officer date filter, defaulting to today.
func ParseWindow(raw string) (Window, error) {
	switch w := Window(strings.ToLower(raw)); w {
	case "":
		return WindowToday, nil
	case WindowToday, WindowWeek, WindowMonth, WindowAll:
		return w, nil
	default:
		return "", apperr.Validation("date must be one of today, week, month, all")
	}
}

// bounds converts a window into a [from, to) range of whole days starting today.
func (s *Service) bounds(w Window) (*time.Time, *time.Time) {
	now := s.clock().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	var days int
	switch w {
	case WindowToday:
		days = 1
	case WindowWeek:
		days = 8
	case WindowMonth:
		days = 31
	default:
		return nil, nil
	}
	end := today.AddDate(0, 0, days)
	return &today, &end
}

// List returns appointments for the officer console ordered by scheduled time.
func (s *Service) List(ctx context.Context, f Filter) ([]Appointment, error) {
	f.From, f.To = s.bounds(f.Window)
	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return items, nil
}

// DashboardStats counts today's and the coming week's appointments by status.
func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	from, to := s.bounds(WindowWeek)
	items, err := s.repo.List(ctx, Filter{From: from, To: to})
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list week appointments: %w", err)
	}
	perDept, err := s.repo.CountByDepartment(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("count by department: %w", err)
	}

	stats := DashboardStats{Departments: map[department.ID]int{}}
	for _, id := range department.All {
		stats.Departments[id] = perDept[id]
	}

	endOfToday := from.AddDate(0, 0, 1)
	for _, a := range items {
		stats.Week.add(a.Status)
		if a.ScheduledAt.Before(endOfToday) {
			stats.Today.add(a.Status)
		}
	}
	return stats, nil
}

// ScheduleReminder sends the reminder for one appointment now.
func (s *Service) ScheduleReminder(ctx context.Context, dept department.ID, id uuid.UUID, actor auth.Principal) (notification.DeliveryReport, error) {
	if !actor.IsOfficer() {
		return notification.DeliveryReport{}, apperr.Forbidden("admin access required")
	}
	a, err := s.repo.GetByID(ctx, dept, id)
	if err != nil {
		return notification.DeliveryReport{}, wrapDomain(err, "load appointment")
	}
	if a.Status.Terminal() {
		return notification.DeliveryReport{}, apperr.Conflict("no reminder for %s appointments", a.Status)
	}

	report, err := s.sendReminder(ctx, a, actor.UserID.String())
	if err != nil {
		return notification.DeliveryReport{}, err
	}
	if _, err := s.repo.ClaimReminder(ctx, a.ID, s.clock().UTC()); err != nil {
		s.logger.WithContext(ctx).Warn("stamp reminder", "appointment_id", a.ID, "error", err)
	}
	return report, nil
}

// SendDueReminders notifies every confirmed appointment starting within lead
// that has not been reminded yet. Each appointment is claimed before sending
// so concurrent workers do not send twice.
func (s *Service) SendDueReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.clock().UTC()
	due, err := s.repo.FindDueReminders(ctx, now, now.Add(lead))
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for i := range due {
		a := &due[i]
		claimed, err := s.repo.ClaimReminder(ctx, a.ID, now)
		if err != nil {
			s.logger.Error("claim reminder", "appointment_id", a.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		if _, err := s.sendReminder(ctx, a, "system"); err != nil {
			s.logger.Error("send reminder", "appointment_id", a.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *Service) sendReminder(ctx context.Context, a *Appointment, sentBy string) (notification.DeliveryReport, error) {
	id := a.ID
	report, err := s.notifier.Dispatch(ctx, a.UserID, "Appointment Reminder",
		fmt.Sprintf("Your %s appointment is scheduled for tomorrow at %s. Please bring required documents.",
			a.Department, a.ScheduledAt.In(s.loc).Format(displayLayout)),
		notification.TypeReminder,
		notification.Options{EmailRequested: true, AppointmentID: &id, SentBy: sentBy})
	if err != nil {
		return notification.DeliveryReport{}, fmt.Errorf("dispatch reminder: %w", err)
	}
	return report, nil
}

// notify dispatches to the appointment owner. The state change has already
// committed, so a failure is logged only.
func (s *Service) notify(ctx context.Context, a *Appointment, title, message string, typ notification.Type, opts notification.Options) {
	id := a.ID
	opts.AppointmentID = &id
	if _, err := s.notifier.Dispatch(ctx, a.UserID, title, message, typ, opts); err != nil {
		s.logger.WithContext(ctx).Error("appointment notification failed",
			"appointment_id", a.ID, "type", typ, "error", err)
	}
}

func wrapDomain(err error, op string) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrConflict) ||
		errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrForbidden) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
