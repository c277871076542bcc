package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/observability"
)

type RouterConfig struct {
	Accounts      AccountService
	Slots         SlotService
	Appointments  AppointmentService
	Notifications NotificationService
	Reports       ReportService
	Events        EventRecorder
	Complaints    ComplaintService
	Documents     DocumentService
	Hub           RealtimeHub
	Issuer        *auth.Issuer
	Health        *HealthHandler
	Logger        *observability.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	officer := RequireRole(auth.RoleStaff, auth.RoleAdmin)
	citizen := RequireRole(auth.RoleCitizen)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	r.Get("/health", cfg.Health.Status)
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public.
		r.With(OptionalAuth(cfg.Issuer)).Post("/auth/register", registerHandler(cfg.Accounts, log))
		r.Post("/auth/login", loginHandler(cfg.Accounts, log))
		r.Post("/auth/forgot-password", forgotPasswordHandler(cfg.Accounts, log))
		r.Post("/auth/reset-password", resetPasswordHandler(cfg.Accounts, log))
		r.Get("/departments", listDepartmentsHandler)
		r.Get("/departments/{department}/services", departmentServicesHandler(log))

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Issuer))

			r.Post("/auth/logout", logoutHandler(cfg.Accounts, log))
			r.Post("/auth/refresh", refreshHandler(cfg.Accounts, log))
			r.Get("/auth/profile", profileHandler(cfg.Accounts, log))
			r.Put("/auth/profile", updateProfileHandler(cfg.Accounts, log))

			r.Route("/departments/{department}/timeslots", func(r chi.Router) {
				r.Get("/", listSlotsHandler(cfg.Slots, cfg.Accounts, cfg.Events, log))
				r.With(officer).Post("/", generateSlotsHandler(cfg.Slots, log))
				r.With(officer).Patch("/{slotID}", slotAvailabilityHandler(cfg.Slots, log))
			})

			r.Route("/appointments", func(r chi.Router) {
				r.With(citizen).Post("/{department}", bookHandler(cfg.Appointments, cfg.Accounts, log))
				r.Get("/user/{nic}", citizenAppointmentsHandler(cfg.Appointments, cfg.Accounts, log))
				r.Get("/{department}/{id}", getAppointmentHandler(cfg.Appointments, log))
			})

			r.With(citizen).Post("/feedback/submit", feedbackHandler(cfg.Appointments, log))

			r.Route("/complaints", func(r chi.Router) {
				r.Post("/submit", submitComplaintHandler(cfg.Complaints, log))
				r.Get("/user/{nic}", listComplaintsHandler(cfg.Complaints, log))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", listNotificationsHandler(cfg.Notifications, log))
				r.Post("/{id}/read", markReadHandler(cfg.Notifications, log))
				r.Get("/preferences", preferencesHandler(cfg.Accounts, log))
				r.Put("/preferences", updatePreferencesHandler(cfg.Accounts, log))
				r.With(officer).Post("/send-bulk", sendBulkHandler(cfg.Notifications, cfg.Accounts, log))
				r.With(officer).Post("/send", sendBulkHandler(cfg.Notifications, cfg.Accounts, log))
				r.With(officer).Post("/schedule-reminder", scheduleReminderHandler(cfg.Appointments, log))
			})

			r.Route("/officer", func(r chi.Router) {
				r.Use(officer)
				r.Get("/appointments", officerListHandler(cfg.Appointments, log))
				r.Put("/appointments/{department}/{id}/status", statusHandler(cfg.Appointments, log))
				r.Put("/appointments/{department}/{id}/reschedule", rescheduleHandler(cfg.Appointments, log))
				r.Post("/appointments/{department}/{id}/reschedule", rescheduleHandler(cfg.Appointments, log))
				r.Get("/appointments/{department}/{id}/history", historyHandler(cfg.Appointments, log))
				r.Get("/dashboard-stats", dashboardStatsHandler(cfg.Appointments, log))
				r.Get("/dashboard/stats", dashboardStatsHandler(cfg.Appointments, log))
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Use(officer)
				r.Get("/summary", reportHandler(log, cfg.Reports.Summary))
				r.Get("/peak-hours", reportHandler(log, cfg.Reports.PeakHours))
				r.Get("/department-load", reportHandler(log, cfg.Reports.DepartmentLoad))
				r.Get("/no-show-rate", reportHandler(log, cfg.Reports.NoShowRate))
				r.Get("/avg-processing-time", reportHandler(log, cfg.Reports.AvgProcessingTime))
				r.Get("/dashboard", reportHandler(log, cfg.Reports.Dashboard))
			})

			r.Route("/documents", func(r chi.Router) {
				r.Post("/upload", uploadDocumentHandler(cfg.Documents, log))
				r.Get("/", listDocumentsHandler(cfg.Documents, log))
				r.Delete("/{id}", deleteDocumentHandler(cfg.Documents, log))
			})
		})
	})

	r.With(Authenticate(cfg.Issuer)).Get("/ws", websocketHandler(cfg.Hub, log))

	return r
}
