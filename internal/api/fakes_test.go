package api

import (
	"context"
	"errors"
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

var errNotStubbed = errors.New("not stubbed")

type fakeAccounts struct {
	RegisterFn   func(ctx context.Context, caller *auth.Principal, req account.RegisterRequest) (account.Registered, error)
	LoginFn      func(ctx context.Context, email, password string) (account.Session, error)
	CitizenNICFn func(ctx context.Context, userID uuid.UUID) (string, error)
	ByRoleFn     func(ctx context.Context, role auth.Role) ([]uuid.UUID, error)
	ForgotFn     func(ctx context.Context, email string) error
}

func (f *fakeAccounts) Register(ctx context.Context, caller *auth.Principal, req account.RegisterRequest) (account.Registered, error) {
	if f.RegisterFn == nil {
		return account.Registered{}, errNotStubbed
	}
	return f.RegisterFn(ctx, caller, req)
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (account.Session, error) {
	if f.LoginFn == nil {
		return account.Session{}, errNotStubbed
	}
	return f.LoginFn(ctx, email, password)
}

func (f *fakeAccounts) Refresh(ctx context.Context, p auth.Principal) (account.Session, error) {
	return account.Session{Token: "refreshed", Role: p.Role}, nil
}

func (f *fakeAccounts) Logout(ctx context.Context, p auth.Principal) error { return nil }

func (f *fakeAccounts) ForgotPassword(ctx context.Context, email string) error {
	if f.ForgotFn == nil {
		return errNotStubbed
	}
	return f.ForgotFn(ctx, email)
}

func (f *fakeAccounts) ResetPassword(ctx context.Context, token, password string) error {
	if token != "good" {
		return account.ErrResetTokenUsed
	}
	return nil
}

func (f *fakeAccounts) Profile(ctx context.Context, p auth.Principal) (any, error) {
	return nil, errNotStubbed
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, p auth.Principal, u account.ProfileUpdate) (any, error) {
	return nil, errNotStubbed
}

func (f *fakeAccounts) Preferences(ctx context.Context, p auth.Principal) (account.Preferences, error) {
	return account.DefaultPreferences(), nil
}

func (f *fakeAccounts) UpdatePreferences(ctx context.Context, p auth.Principal, u account.PreferencesUpdate) (account.Preferences, error) {
	return account.Preferences{}, errNotStubbed
}

func (f *fakeAccounts) CitizenNIC(ctx context.Context, userID uuid.UUID) (string, error) {
	if f.CitizenNICFn == nil {
		return "", errNotStubbed
	}
	return f.CitizenNICFn(ctx, userID)
}

func (f *fakeAccounts) UserIDsByRole(ctx context.Context, role auth.Role) ([]uuid.UUID, error) {
	if f.ByRoleFn == nil {
		return nil, errNotStubbed
	}
	return f.ByRoleFn(ctx, role)
}

type fakeSlots struct {
	ListFn func(ctx context.Context, dept department.ID, date string) ([]slot.TimeSlot, error)
}

func (f *fakeSlots) ListAvailable(ctx context.Context, dept department.ID, date string) ([]slot.TimeSlot, error) {
	if f.ListFn == nil {
		return nil, errNotStubbed
	}
	return f.ListFn(ctx, dept, date)
}

func (f *fakeSlots) Generate(ctx context.Context, dept department.ID, req slot.GenerateRequest) ([]slot.TimeSlot, error) {
	return nil, errNotStubbed
}

func (f *fakeSlots) SetAvailability(ctx context.Context, dept department.ID, id uuid.UUID, to slot.Availability) (*slot.TimeSlot, error) {
	return nil, errNotStubbed
}

type fakeAppointments struct {
	ReserveFn   func(ctx context.Context, dept department.ID, slotID uuid.UUID, booker appointment.Booker, details appointment.BookingDetails) (*appointment.Appointment, error)
	SetStatusFn func(ctx context.Context, dept department.ID, id uuid.UUID, rawStatus string, actor auth.Principal, notes string) (*appointment.Appointment, error)
	ListFn      func(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	ForNICFn    func(ctx context.Context, nic string) ([]appointment.Appointment, error)
}

func (f *fakeAppointments) Reserve(ctx context.Context, dept department.ID, slotID uuid.UUID, booker appointment.Booker, details appointment.BookingDetails) (*appointment.Appointment, error) {
	if f.ReserveFn == nil {
		return nil, errNotStubbed
	}
	return f.ReserveFn(ctx, dept, slotID, booker, details)
}

func (f *fakeAppointments) SetStatus(ctx context.Context, dept department.ID, id uuid.UUID, rawStatus string, actor auth.Principal, notes string) (*appointment.Appointment, error) {
	if f.SetStatusFn == nil {
		return nil, errNotStubbed
	}
	return f.SetStatusFn(ctx, dept, id, rawStatus, actor, notes)
}

func (f *fakeAppointments) Reschedule(ctx context.Context, dept department.ID, id uuid.UUID, rawDateTime, reason string, actor auth.Principal) (*appointment.Appointment, error) {
	return nil, errNotStubbed
}

func (f *fakeAppointments) SubmitFeedback(ctx context.Context, dept department.ID, id uuid.UUID, caller auth.Principal, feedback string, rating int) (*appointment.Appointment, error) {
	return nil, errNotStubbed
}

func (f *fakeAppointments) Get(ctx context.Context, dept department.ID, id uuid.UUID) (*appointment.Appointment, error) {
	return nil, errNotStubbed
}

func (f *fakeAppointments) History(ctx context.Context, dept department.ID, id uuid.UUID) ([]appointment.StatusChange, error) {
	return nil, errNotStubbed
}

func (f *fakeAppointments) ListForCitizen(ctx context.Context, nic string) ([]appointment.Appointment, error) {
	if f.ForNICFn == nil {
		return nil, errNotStubbed
	}
	return f.ForNICFn(ctx, nic)
}

func (f *fakeAppointments) List(ctx context.Context, filter appointment.Filter) ([]appointment.Appointment, error) {
	if f.ListFn == nil {
		return nil, errNotStubbed
	}
	return f.ListFn(ctx, filter)
}

func (f *fakeAppointments) DashboardStats(ctx context.Context) (appointment.DashboardStats, error) {
	return appointment.DashboardStats{}, errNotStubbed
}

func (f *fakeAppointments) ScheduleReminder(ctx context.Context, dept department.ID, id uuid.UUID, actor auth.Principal) (notification.DeliveryReport, error) {
	return notification.DeliveryReport{}, errNotStubbed
}

type fakeNotifications struct {
	SendBulkFn func(ctx context.Context, userIDs []uuid.UUID, title, message string, typ notification.Type, sendEmail bool, sentBy string) (notification.BulkResult, error)
}

func (f *fakeNotifications) List(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error) {
	return nil, nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, userID, id uuid.UUID) (*notification.Notification, error) {
	return nil, errNotStubbed
}

func (f *fakeNotifications) SendBulk(ctx context.Context, userIDs []uuid.UUID, title, message string, typ notification.Type, sendEmail bool, sentBy string) (notification.BulkResult, error) {
	if f.SendBulkFn == nil {
		return notification.BulkResult{}, errNotStubbed
	}
	return f.SendBulkFn(ctx, userIDs, title, message, typ, sendEmail, sentBy)
}

type fakeReports struct{}

func (fakeReports) Summary(ctx context.Context) (analytics.Summary, error) {
	return analytics.Summary{}, nil
}

func (fakeReports) PeakHours(ctx context.Context) (map[int]int, error) {
	return map[int]int{9: 4, 14: 2}, nil
}

func (fakeReports) DepartmentLoad(ctx context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (fakeReports) NoShowRate(ctx context.Context) (map[string]analytics.NoShowStats, error) {
	return nil, nil
}

func (fakeReports) AvgProcessingTime(ctx context.Context) (map[string]analytics.ProcessingStats, error) {
	return nil, nil
}

func (fakeReports) Dashboard(ctx context.Context) (analytics.Dashboard, error) {
	return analytics.Dashboard{}, nil
}

type recordedEvent struct {
	Type analytics.EventType
	NIC  string
	Dept department.ID
}

type fakeEvents struct{ got []recordedEvent }

func (f *fakeEvents) Record(ctx context.Context, typ analytics.EventType, nic string, dept department.ID, extra map[string]any) {
	f.got = append(f.got, recordedEvent{typ, nic, dept})
}

type fakeComplaints struct{}

func (fakeComplaints) Submit(ctx context.Context, caller auth.Principal, req complaint.SubmitRequest) (*complaint.Complaint, error) {
	return nil, errNotStubbed
}

func (fakeComplaints) ListByNIC(ctx context.Context, caller auth.Principal, nic string) ([]complaint.Complaint, error) {
	return nil, errNotStubbed
}

type fakeDocuments struct {
	uploaded []string
}

func (f *fakeDocuments) Upload(ctx context.Context, caller auth.Principal, req document.UploadRequest, r io.Reader) (*document.Document, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, req.Filename+":"+string(body))
	return &document.Document{ID: uuid.New(), UserID: caller.UserID, Filename: req.Filename, Path: "/secret/path", SizeBytes: int64(len(body))}, nil
}

func (f *fakeDocuments) List(ctx context.Context, caller auth.Principal) ([]document.Document, error) {
	return nil, nil
}

func (f *fakeDocuments) Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	return errNotStubbed
}

func (f *fakeDocuments) MaxBytes() int64 { return 1024 }

type fakeHub struct{}

func (fakeHub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	return errNotStubbed
}
