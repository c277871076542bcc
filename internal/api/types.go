package api

import (
	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/notification"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	account.Registered
}

type BookRequest struct {
	TimeSlotID string `json:"timeSlotId"`
	appointment.BookingDetails
}

type BookResponse struct {
	Message string `json:"message"`
	*appointment.Appointment
}

type GenerateSlotsRequest struct {
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	DurationMinutes int    `json:"duration"`
}

type SlotAvailabilityRequest struct {
	Availability string `json:"availability"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type RescheduleRequest struct {
	NewDateTime string `json:"new_datetime"`
	Reason      string `json:"reason"`
}

type FeedbackRequest struct {
	AppointmentID string `json:"appointmentId"`
	Department    string `json:"department"`
	Feedback      string `json:"feedback"`
	Rating        int    `json:"rating"`
}

type BulkNotificationRequest struct {
	UserIDs   []string          `json:"user_ids"`
	Role      string            `json:"role"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Type      notification.Type `json:"type"`
	SendEmail *bool             `json:"send_email,omitempty"` // defaults to true
}

type ReminderRequest struct {
	AppointmentID string `json:"appointment_id"`
	Department    string `json:"department"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
