package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/department"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

var Statuses = []Status{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow}

// ParseStatus accepts the enumerated statuses plus the legacy "no-show" spelling.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", apperr.Validation("invalid status %q, must be one of pending, confirmed, in_progress, completed, cancelled, no_show", raw)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type Appointment struct {
	ID                  uuid.UUID     `json:"appointmentId"`
	NIC                 string        `json:"nic"`
	UserID              uuid.UUID     `json:"userId"`
	Department          department.ID `json:"department"`
	TimeSlotID          uuid.UUID     `json:"timeSlotId"`
	ScheduledAt         time.Time     `json:"scheduledDateTime"`
	Status              Status        `json:"status"`
	QRCode              string        `json:"qrCode"`
	Reference           string        `json:"reference"`
	ApplicationForm     string        `json:"applicationForm,omitempty"`
	SupportingDocuments []string      `json:"supportingDocuments"`
	DeliveryStatus      string        `json:"deliveryStatus,omitempty"`
	Reports             string        `json:"reports,omitempty"`
	AppointmentType     string        `json:"appointmentType,omitempty"`
	Remarks             string        `json:"remarks,omitempty"`
	Feedback            string        `json:"feedback"`
	Rating              *int          `json:"rating,omitempty"`
	FeedbackSubmittedAt *time.Time    `json:"feedbackSubmittedAt,omitempty"`
	OfficerNotes        string        `json:"officerNotes,omitempty"`
	UpdatedBy           string        `json:"updatedBy,omitempty"`
	RescheduleReason    string        `json:"rescheduleReason,omitempty"`
	RescheduledBy       string        `json:"rescheduledBy,omitempty"`
	RescheduledAt       *time.Time    `json:"rescheduledAt,omitempty"`
	ReminderSentAt      *time.Time    `json:"reminderSentAt,omitempty"`
	ProcessedAt         *time.Time    `json:"processedAt,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// StatusChange is one row of the append-only status audit trail.
type StatusChange struct {
	ID            uuid.UUID     `json:"id"`
	AppointmentID uuid.UUID     `json:"appointmentId"`
	Department    department.ID `json:"department"`
	From          Status        `json:"fromStatus"`
	To            Status        `json:"toStatus"`
	ActorID       string        `json:"actorId"`
	Notes         string        `json:"notes,omitempty"`
	ChangedAt     time.Time     `json:"changedAt"`
}

// Booker identifies the citizen making a reservation.
type Booker struct {
	NIC    string
	UserID uuid.UUID
}

// BookingDetails carries the optional department specific fields of a booking.
type BookingDetails struct {
	ApplicationForm     string   `json:"applicationForm"`
	SupportingDocuments []string `json:"supportingDocuments"`
	Remarks             string   `json:"remarks"`
	AppointmentType     string   `json:"appointmentType"`
}

type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowAll   Window = "all"
)

// Filter narrows the officer appointment list. Empty fields mean "all".
type Filter struct {
	Department department.ID
	Status     Status
	Window     Window

	From, To *time.Time
}

type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Confirmed  int `json:"confirmed"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	NoShow     int `json:"no_show"`
}

func (c *StatusCounts) add(s Status) {
	c.Total++
	switch s {
	case StatusPending:
		c.Pending++
	case StatusConfirmed:
		c.Confirmed++
	case StatusInProgress:
		c.InProgress++
	case StatusCompleted:
		c.Completed++
	case StatusCancelled:
		c.Cancelled++
	case StatusNoShow:
		c.NoShow++
	}
}

type DashboardStats struct {
	Today       StatusCounts          `json:"today"`
	Week        StatusCounts          `json:"week"`
	Departments map[department.ID]int `json:"departments"`
}
