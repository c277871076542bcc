package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
)

type Type string

const (
	TypeBookingConfirmation Type = "booking_confirmation"
	TypeStatusUpdate        Type = "status_update"
	TypeReschedule          Type = "reschedule"
	TypeReminder            Type = "appointment_reminder"
	TypeAnnouncement        Type = "system_announcement"
	TypeGeneral             Type = "general"
)

const listLimit = 50

var ErrNotificationNotFound = fmt.Errorf("%w: notification not found", apperr.ErrNotFound)

type Channels struct {
	InApp bool `json:"in_app"`
	Email bool `json:"email"`
}

type Notification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	Type          Type       `json:"type"`
	IsRead        bool       `json:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	SentBy        string     `json:"sent_by,omitempty"`
	Channels      Channels   `json:"channels"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Options tune a single dispatch.
type Options struct {
	EmailRequested bool
	AppointmentID  *uuid.UUID
	SentBy         string
}

const (
	BroadcastDelivered = "delivered"
	BroadcastFailed    = "failed"
	EmailQueued        = "queued"
	EmailSkipped       = "skipped"
)

// DeliveryReport describes what happened on each channel.
type DeliveryReport struct {
	NotificationID uuid.UUID `json:"notificationId"`
	Broadcast      string    `json:"broadcast"`
	Email          string    `json:"email"`
}

// Recipient is the email side of a user.
type Recipient struct {
	Email        string
	Name         string
	EmailEnabled bool
}
