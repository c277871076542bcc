// Package notification persists user notifications and fans them out to the
// realtime hub and email.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/mail"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/tasks"
)

// Broadcaster pushes a frame to every live connection of a user.
type Broadcaster interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, data any) error
}

// RecipientResolver looks up where and whether to email a user.
type RecipientResolver interface {
	Recipient(ctx context.Context, userID uuid.UUID) (Recipient, error)
}

type Dispatcher struct {
	repo       Repository
	broadcast  Broadcaster
	recipients RecipientResolver
	mailer     mail.Sender
	side       tasks.Runner
	logger     *observability.Logger
	clock      func() time.Time
}

func NewDispatcher(
	repo Repository,
	broadcast Broadcaster,
	recipients RecipientResolver,
	mailer mail.Sender,
	side tasks.Runner,
	logger *observability.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		broadcast:  broadcast,
		recipients: recipients,
		mailer:     mailer,
		side:       side,
		logger:     logger,
		clock:      time.Now,
	}
}

// Dispatch stores the notification and then attempts delivery. Only a storage
// failure is returned; channel failures are reported in the DeliveryReport.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, title, message string, typ Type, opts Options) (DeliveryReport, error) {
	log := d.logger.WithContext(ctx)

	n := &Notification{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         title,
		Message:       message,
		Type:          typ,
		AppointmentID: opts.AppointmentID,
		SentBy:        opts.SentBy,
		Channels:      Channels{InApp: true, Email: opts.EmailRequested},
		CreatedAt:     d.clock().UTC(),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		observability.NotificationDeliveries.WithLabelValues("store", "failed").Inc()
		return DeliveryReport{}, fmt.Errorf("store notification: %w", err)
	}

	report := DeliveryReport{NotificationID: n.ID, Broadcast: BroadcastDelivered, Email: EmailSkipped}

	event, payload := frameFor(n)
	if err := d.broadcast.Publish(ctx, userID, event, payload); err != nil {
		report.Broadcast = BroadcastFailed
		observability.NotificationDeliveries.WithLabelValues("realtime", "failed").Inc()
		log.Warn("realtime broadcast failed", "notification_id", n.ID, "user_id", userID, "error", err)
	} else {
		observability.NotificationDeliveries.WithLabelValues("realtime", "ok").Inc()
	}

	if opts.EmailRequested && d.queueEmail(ctx, n) {
		report.Email = EmailQueued
	}

	return report, nil
}

// frameFor picks the realtime event. Announcements use the short
// new_notification frame; everything tied to a user action carries the full record.
func frameFor(n *Notification) (string, any) {
	switch n.Type {
	case TypeAnnouncement, TypeGeneral:
		return "new_notification", map[string]any{
			"id":      n.ID,
			"title":   n.Title,
			"message": n.Message,
			"type":    n.Type,
		}
	default:
		return "notification", n
	}
}

func (d *Dispatcher) queueEmail(ctx context.Context, n *Notification) bool {
	log := d.logger.WithContext(ctx)

	rcpt, err := d.recipients.Recipient(ctx, n.UserID)
	if err != nil {
		log.Warn("resolve email recipient", "user_id", n.UserID, "error", err)
		return false
	}
	if strings.TrimSpace(rcpt.Email) == "" || !rcpt.EmailEnabled {
		observability.NotificationDeliveries.WithLabelValues("email", "skipped").Inc()
		return false
	}

	title, message := n.Title, n.Message
	err = d.side.Submit("notification.email", func(ctx context.Context) error {
		body, err := mail.RenderNotification(rcpt.Name, title, message)
		if err != nil {
			return err
		}
		if err := d.mailer.Send(ctx, mail.Message{To: rcpt.Email, Subject: title, HTML: body}); err != nil {
			observability.NotificationDeliveries.WithLabelValues("email", "failed").Inc()
			return err
		}
		observability.NotificationDeliveries.WithLabelValues("email", "ok").Inc()
		return nil
	})
	if err != nil {
		log.Warn("queue notification email", "notification_id", n.ID, "error", err)
		return false
	}
	return true
}

// List returns the newest notifications of a user.
func (d *Dispatcher) List(ctx context.Context, userID uuid.UUID) ([]Notification, error) {
	items, err := d.repo.ListByUser(ctx, userID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead marks a notification as read. Repeating it is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, id uuid.UUID) (*Notification, error) {
	n, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("notification belongs to another user")
	}
	if n.IsRead {
		return n, nil
	}
	return d.repo.MarkRead(ctx, id, d.clock().UTC())
}

type BulkResult struct {
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Reports []DeliveryReport `json:"reports"`
}

// SendBulk dispatches the same notification to many users. Individual storage
// failures are counted, not returned.
func (d *Dispatcher) SendBulk(ctx context.Context, userIDs []uuid.UUID, title, message string, typ Type, sendEmail bool, sentBy string) (BulkResult, error) {
	if len(userIDs) == 0 {
		return BulkResult{}, apperr.Validation("user_ids required")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return BulkResult{}, apperr.Validation("title and message required")
	}
	if typ == "" {
		typ = TypeAnnouncement
	}

	result := BulkResult{Reports: make([]DeliveryReport, 0, len(userIDs))}
	for _, id := range userIDs {
		report, err := d.Dispatch(ctx, id, title, message, typ, Options{EmailRequested: sendEmail, SentBy: sentBy})
		if err != nil {
			result.Failed++
			d.logger.WithContext(ctx).Error("bulk notification failed", "user_id", id, "error", err)
			continue
		}
		result.Sent++
		result.Reports = append(result.Reports, report)
	}
	return result, nil
}
