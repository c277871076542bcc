package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/notification"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/slot"
)

type testEnv struct {
	handler  http.Handler
	issuer   *auth.Issuer
	accounts *fakeAccounts
	slots    *fakeSlots
	appts    *fakeAppointments
	notes    *fakeNotifications
	events   *fakeEvents
	docs     *fakeDocuments
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		issuer:   auth.NewIssuer("router-test", time.Hour),
		accounts: &fakeAccounts{},
		slots:    &fakeSlots{},
		appts:    &fakeAppointments{},
		notes:    &fakeNotifications{},
		events:   &fakeEvents{},
		docs:     &fakeDocuments{},
	}
	ok := func(ctx context.Context) error { return nil }
	env.handler = NewRouter(RouterConfig{
		Accounts:      env.accounts,
		Slots:         env.slots,
		Appointments:  env.appts,
		Notifications: env.notes,
		Reports:       fakeReports{},
		Events:        env.events,
		Complaints:    fakeComplaints{},
		Documents:     env.docs,
		Hub:           fakeHub{},
		Issuer:        env.issuer,
		Health:        NewHealthHandler(ok, nil, "test", "1.0.0"),
		Logger:        observability.Discard(),
	})
	return env
}

func (e *testEnv) token(t *testing.T, p auth.Principal) string {
	t.Helper()
	tok, err := e.issuer.Issue(p.UserID, p.Role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

var (
	citizen = auth.Principal{UserID: uuid.New(), Role: auth.RoleCitizen}
	staff   = auth.Principal{UserID: uuid.New(), Role: auth.RoleStaff}
)

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var flat map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&flat))
	assert.Equal(t, "healthy", flat["status"])
	assert.Equal(t, "ok", flat["database"])
	assert.Equal(t, "disabled", flat["redis"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	down := func(ctx context.Context) error { return errors.New("dial tcp: refused") }
	h := NewHealthHandler(down, nil, "test", "1.0.0")

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["database"])
}

func TestAuthGuards(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"public department list", http.MethodGet, "/api/departments", "", http.StatusOK},
		{"missing token", http.MethodGet, "/api/notifications", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/notifications", "not-a-jwt", http.StatusUnauthorized},
		{"citizen on officer route", http.MethodGet, "/api/officer/appointments", env.token(t, citizen), http.StatusForbidden},
		{"citizen on analytics", http.MethodGet, "/api/analytics/peak-hours", env.token(t, citizen), http.StatusForbidden},
		{"staff on analytics", http.MethodGet, "/api/analytics/peak-hours", env.token(t, staff), http.StatusOK},
		{"staff cannot book", http.MethodPost, "/api/appointments/passport", env.token(t, staff), http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, tc.path, tc.token, nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestBook(t *testing.T) {
	env := newTestEnv(t)
	slotID := uuid.New()
	env.accounts.CitizenNICFn = func(ctx context.Context, userID uuid.UUID) (string, error) {
		return "199912345678", nil
	}
	env.appts.ReserveFn = func(ctx context.Context, dept department.ID, id uuid.UUID, b appointment.Booker, d appointment.BookingDetails) (*appointment.Appointment, error) {
		assert.Equal(t, department.Passport, dept)
		assert.Equal(t, "199912345678", b.NIC)
		assert.Equal(t, citizen.UserID, b.UserID)
		assert.Equal(t, "renewal", d.AppointmentType)
		if id != slotID {
			return nil, slot.ErrSlotUnavailable
		}
		return &appointment.Appointment{ID: uuid.New(), Reference: "PASSPORT-202501150900-4321", QRCode: "iVBOR"}, nil
	}
	tok := env.token(t, citizen)

	rec := env.do(t, http.MethodPost, "/api/appointments/passport", tok, map[string]string{
		"timeSlotId":      slotID.String(),
		"appointmentType": "renewal",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "PASSPORT-202501150900-4321", resp["reference"])
	assert.Equal(t, "iVBOR", resp["qrCode"])
	assert.NotEmpty(t, resp["appointmentId"])

	rec = env.do(t, http.MethodPost, "/api/appointments/passport", tok, map[string]string{
		"timeSlotId":      uuid.NewString(),
		"appointmentType": "renewal",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decodeError(t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/appointments/tax", tok, map[string]string{"timeSlotId": slotID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/appointments/passport", tok, map[string]string{"timeSlotId": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	env := newTestEnv(t)
	env.appts.ListFn = func(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
		return nil, errors.New("pq: relation \"appointments\" does not exist")
	}

	rec := env.do(t, http.MethodGet, "/api/officer/appointments?date=all", env.token(t, staff), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal_error", resp.Error)
	assert.NotContains(t, resp.Details, "relation")
}

func TestOfficerList_ParsesFilter(t *testing.T) {
	env := newTestEnv(t)
	var got appointment.Filter
	env.appts.ListFn = func(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
		got = f
		return nil, nil
	}

	rec := env.do(t, http.MethodGet, "/api/officer/appointments?department=medical&status=no-show&date=week", env.token(t, staff), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, department.Medical, got.Department)
	assert.Equal(t, appointment.StatusNoShow, got.Status)
	assert.Equal(t, appointment.WindowWeek, got.Window)
	assert.JSONEq(t, `{"items":[],"count":0}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/officer/appointments?status=lost", env.token(t, staff), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetStatus_PassesActor(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.New()
	env.appts.SetStatusFn = func(ctx context.Context, dept department.ID, got uuid.UUID, raw string, actor auth.Principal, notes string) (*appointment.Appointment, error) {
		assert.Equal(t, id, got)
		assert.Equal(t, staff.UserID, actor.UserID)
		assert.Equal(t, "seen by doctor", notes)
		return &appointment.Appointment{ID: id, Status: appointment.Status(raw)}, nil
	}

	rec := env.do(t, http.MethodPut, "/api/officer/appointments/medical/"+id.String()+"/status", env.token(t, staff),
		StatusRequest{Status: "completed", Notes: "seen by doctor"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
}

func TestSlotSearch_RecordsEvent(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.CitizenNICFn = func(ctx context.Context, userID uuid.UUID) (string, error) { return "N1", nil }
	env.slots.ListFn = func(ctx context.Context, dept department.ID, date string) ([]slot.TimeSlot, error) {
		return []slot.TimeSlot{{ID: uuid.New(), Department: dept, Date: date}}, nil
	}

	rec := env.do(t, http.MethodGet, "/api/departments/license/timeslots?date=2025-01-20", env.token(t, citizen), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []recordedEvent{{analytics.TimeslotSearch, "N1", department.License}}, env.events.got)
}

func TestCitizenAppointments_OwnNICOnly(t *testing.T) {
	env := newTestEnv(t)
	env.accounts.CitizenNICFn = func(ctx context.Context, userID uuid.UUID) (string, error) { return "OWN", nil }
	env.appts.ForNICFn = func(ctx context.Context, nic string) ([]appointment.Appointment, error) {
		return []appointment.Appointment{{NIC: nic}}, nil
	}

	rec := env.do(t, http.MethodGet, "/api/appointments/user/OWN", env.token(t, citizen), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/appointments/user/OTHER", env.token(t, citizen), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/appointments/user/OTHER", env.token(t, staff), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendBulk_ByRole(t *testing.T) {
	env := newTestEnv(t)
	everyone := []uuid.UUID{uuid.New(), uuid.New()}
	env.accounts.ByRoleFn = func(ctx context.Context, role auth.Role) ([]uuid.UUID, error) {
		assert.Equal(t, auth.RoleCitizen, role)
		return everyone, nil
	}
	env.notes.SendBulkFn = func(ctx context.Context, ids []uuid.UUID, title, message string, typ notification.Type, sendEmail bool, sentBy string) (notification.BulkResult, error) {
		assert.Equal(t, everyone, ids)
		assert.Equal(t, staff.UserID.String(), sentBy)
		assert.True(t, sendEmail, "email is on unless turned off")
		return notification.BulkResult{Sent: len(ids)}, nil
	}

	rec := env.do(t, http.MethodPost, "/api/notifications/send-bulk", env.token(t, staff), BulkNotificationRequest{
		Role:    "citizen",
		Title:   "Holiday",
		Message: "Offices closed Friday",
		Type:    notification.TypeAnnouncement,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"sent":2`)
}

func TestUploadDocument(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "nic-copy.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("document_type", "identity"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, citizen))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"nic-copy.pdf:%PDF"}, env.docs.uploaded)
	assert.NotContains(t, rec.Body.String(), "/secret/path")
}

func TestUploadDocument_RemovesSpilledTempFiles(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	prev := multipartMemory
	multipartMemory = 16
	t.Cleanup(func() { multipartMemory = prev })

	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "scan.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF" + strings.Repeat("x", 4096)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, citizen))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.docs.uploaded, 1)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestUploadDocument_TooLarge(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "huge.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte(strings.Repeat("x", 2<<20)))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(t, citizen))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, env.docs.uploaded)
}

func TestRegister_AdminTokenIsOptional(t *testing.T) {
	env := newTestEnv(t)
	admin := auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}
	var seen []*auth.Principal
	env.accounts.RegisterFn = func(ctx context.Context, by *auth.Principal, req account.RegisterRequest) (account.Registered, error) {
		seen = append(seen, by)
		return account.Registered{UserID: uuid.New(), Role: req.Role}, nil
	}

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@b.lk"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", env.token(t, admin), map[string]string{"email": "s@b.lk", "role": "staff"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"staff"`)

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, admin.UserID, seen[1].UserID)
}

func TestPasswordResetRoutesArePublic(t *testing.T) {
	env := newTestEnv(t)
	var asked []string
	env.accounts.ForgotFn = func(ctx context.Context, email string) error {
		asked = append(asked, email)
		return nil
	}

	rec := env.do(t, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{"email": "nimal@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"nimal@example.com"}, asked)
	assert.NotContains(t, rec.Body.String(), "token")

	rec = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": "good", "password": "n3w-pass"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]string{"token": "used", "password": "n3w-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendBulk_LegacyPathAndEmailOptOut(t *testing.T) {
	env := newTestEnv(t)
	staff := auth.Principal{UserID: uuid.New(), Role: auth.RoleStaff}
	target := uuid.New()
	var gotEmail []bool
	env.notes.SendBulkFn = func(ctx context.Context, ids []uuid.UUID, title, message string, typ notification.Type, sendEmail bool, sentBy string) (notification.BulkResult, error) {
		gotEmail = append(gotEmail, sendEmail)
		return notification.BulkResult{Sent: len(ids)}, nil
	}

	off := false
	rec := env.do(t, http.MethodPost, "/api/notifications/send", env.token(t, staff), BulkNotificationRequest{
		UserIDs:   []string{target.String()},
		Title:     "Heads up",
		Message:   "Queue is long today",
		SendEmail: &off,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []bool{false}, gotEmail)
}

func TestOfficerLegacyPaths(t *testing.T) {
	env := newTestEnv(t)
	staff := auth.Principal{UserID: uuid.New(), Role: auth.RoleStaff}

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/officer/dashboard/stats"},
		{http.MethodPost, "/api/officer/appointments/medical/" + uuid.NewString() + "/reschedule"},
	} {
		rec := env.do(t, tc.method, tc.path, env.token(t, staff), map[string]string{})
		assert.NotEqual(t, http.StatusNotFound, rec.Code, tc.path)
		assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code, tc.path)
	}
}
