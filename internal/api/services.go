package api

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/complaint"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/document"
	"github.com/hackgods/gov-appointments/internal/notification"
	"github.com/hackgods/gov-appointments/internal/slot"
)

// The interfaces below are the slices of each service the handlers use.

type AccountService interface {
	Register(ctx context.Context, caller *auth.Principal, req account.RegisterRequest) (account.Registered, error)
	Login(ctx context.Context, email, password string) (account.Session, error)
	Refresh(ctx context.Context, p auth.Principal) (account.Session, error)
	Logout(ctx context.Context, p auth.Principal) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Profile(ctx context.Context, p auth.Principal) (any, error)
	UpdateProfile(ctx context.Context, p auth.Principal, u account.ProfileUpdate) (any, error)
	Preferences(ctx context.Context, p auth.Principal) (account.Preferences, error)
	UpdatePreferences(ctx context.Context, p auth.Principal, u account.PreferencesUpdate) (account.Preferences, error)
	CitizenNIC(ctx context.Context, userID uuid.UUID) (string, error)
	UserIDsByRole(ctx context.Context, role auth.Role) ([]uuid.UUID, error)
}

type SlotService interface {
	ListAvailable(ctx context.Context, dept department.ID, date string) ([]slot.TimeSlot, error)
	Generate(ctx context.Context, dept department.ID, req slot.GenerateRequest) ([]slot.TimeSlot, error)
	SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, to slot.Availability) (*slot.TimeSlot, error)
}

type AppointmentService interface {
	Reserve(ctx context.Context, dept department.ID, slotID uuid.UUID, booker appointment.Booker, details appointment.BookingDetails) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, dept department.ID, id uuid.UUID, rawStatus string, actor auth.Principal, notes string) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, dept department.ID, id uuid.UUID, rawDateTime, reason string, actor auth.Principal) (*appointment.Appointment, error)
	SubmitFeedback(ctx context.Context, dept department.ID, id uuid.UUID, caller auth.Principal, feedback string, rating int) (*appointment.Appointment, error)
	Get(ctx context.Context, dept department.ID, id uuid.UUID) (*appointment.Appointment, error)
	History(ctx context.Context, dept department.ID, id uuid.UUID) ([]appointment.StatusChange, error)
	ListForCitizen(ctx context.Context, nic string) ([]appointment.Appointment, error)
	List(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	DashboardStats(ctx context.Context) (appointment.DashboardStats, error)
	ScheduleReminder(ctx context.Context, dept department.ID, id uuid.UUID, actor auth.Principal) (notification.DeliveryReport, error)
}

type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (*notification.Notification, error)
	SendBulk(ctx context.Context, userIDs []uuid.UUID, title, message string, typ notification.Type, sendEmail bool, sentBy string) (notification.BulkResult, error)
}

type ReportService interface {
	Summary(ctx context.Context) (analytics.Summary, error)
	PeakHours(ctx context.Context) (map[int]int, error)
	DepartmentLoad(ctx context.Context) (map[string]int, error)
	NoShowRate(ctx context.Context) (map[string]analytics.NoShowStats, error)
	AvgProcessingTime(ctx context.Context) (map[string]analytics.ProcessingStats, error)
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
}

type EventRecorder interface {
	Record(ctx context.Context, typ analytics.EventType, nic string, dept department.ID, extra map[string]any)
}

type ComplaintService interface {
	Submit(ctx context.Context, caller auth.Principal, req complaint.SubmitRequest) (*complaint.Complaint, error)
	ListByNIC(ctx context.Context, caller auth.Principal, nic string) ([]complaint.Complaint, error)
}

type DocumentService interface {
	Upload(ctx context.Context, caller auth.Principal, req document.UploadRequest, r io.Reader) (*document.Document, error)
	List(ctx context.Context, caller auth.Principal) ([]document.Document, error)
	Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) error
	MaxBytes() int64
}

type RealtimeHub interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error
}
