package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/account"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
)

func listNotificationsHandler(svc NotificationService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), caller(r).UserID)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(list))
	}
}

func markReadHandler(svc NotificationService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		n, err := svc.MarkRead(r.Context(), caller(r).UserID, id)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

// sendBulkHandler targets explicit user ids, or every account of a role when
// none are given.
func sendBulkHandler(svc NotificationService, accounts AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkNotificationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ids := make([]uuid.UUID, 0, len(req.UserIDs))
		for _, raw := range req.UserIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_user_id", "user_ids must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 && req.Role != "" {
			byRole, err := accounts.UserIDsByRole(r.Context(), auth.Role(req.Role))
			if err != nil {
				failure(w, r, logger, err)
				return
			}
			ids = byRole
		}

		sendEmail := req.SendEmail == nil || *req.SendEmail

		p := caller(r)
		result, err := svc.SendBulk(r.Context(), ids, req.Title, req.Message, req.Type, sendEmail, p.UserID.String())
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func preferencesHandler(accounts AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs, err := accounts.Preferences(r.Context(), caller(r))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func updatePreferencesHandler(accounts AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u account.PreferencesUpdate
		if !decodeJSON(w, r, &u) {
			return
		}
		prefs, err := accounts.UpdatePreferences(r.Context(), caller(r), u)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func scheduleReminderHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReminderRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		id, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}
		dept, err := department.Parse(req.Department)
		if err != nil {
			failure(w, r, logger, err)
			return
		}

		report, err := appts.ScheduleReminder(r.Context(), dept, id, caller(r))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
