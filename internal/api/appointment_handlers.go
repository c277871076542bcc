package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/gov-appointments/internal/apperr"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
)

func bookHandler(appts AppointmentService, accounts AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := department.Lookup(chi.URLParam(r, "department"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}

		var req BookRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		slotID, err := uuid.Parse(req.TimeSlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "timeSlotId must be a valid UUID")
			return
		}

		p := caller(r)
		nic, err := accounts.CitizenNIC(r.Context(), p.UserID)
		if err != nil {
			failure(w, r, logger, err)
			return
		}

		appt, err := appts.Reserve(r.Context(), dept, slotID, appointment.Booker{NIC: nic, UserID: p.UserID}, req.BookingDetails)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, BookResponse{Message: "Appointment booked successfully", Appointment: appt})
	}
}

// citizenAppointmentsHandler lists a citizen's bookings. Citizens may only
// read their own NIC.
func citizenAppointmentsHandler(appts AppointmentService, accounts AccountService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nic := chi.URLParam(r, "nic")
		p := caller(r)
		if !p.IsOfficer() {
			own, err := accounts.CitizenNIC(r.Context(), p.UserID)
			if err != nil || own != nic {
				failure(w, r, logger, apperr.Forbidden("access denied"))
				return
			}
		}

		list, err := appts.ListForCitizen(r.Context(), nic)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(list))
	}
}

func getAppointmentHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, id, ok := appointmentPath(w, r, logger)
		if !ok {
			return
		}
		appt, err := appts.Get(r.Context(), dept, id)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		if p := caller(r); !p.IsOfficer() && appt.UserID != p.UserID {
			failure(w, r, logger, apperr.Forbidden("access denied"))
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func feedbackHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FeedbackRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.AppointmentID == "" || req.Department == "" || req.Feedback == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "appointmentId, department and feedback are required")
			return
		}
		id, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentId must be a valid UUID")
			return
		}
		dept, err := department.Parse(req.Department)
		if err != nil {
			failure(w, r, logger, err)
			return
		}

		if _, err := appts.SubmitFeedback(r.Context(), dept, id, caller(r), req.Feedback, req.Rating); err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Feedback submitted successfully"})
	}
}

func officerListHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.Filter

		if raw := q.Get("department"); raw != "" && raw != "all" {
			dept, err := department.Parse(raw)
			if err != nil {
				failure(w, r, logger, err)
				return
			}
			f.Department = dept
		}
		if raw := q.Get("status"); raw != "" && raw != "all" {
			st, err := appointment.ParseStatus(raw)
			if err != nil {
				failure(w, r, logger, err)
				return
			}
			f.Status = st
		}
		window, err := appointment.ParseWindow(q.Get("date"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		f.Window = window

		list, err := appts.List(r.Context(), f)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(list))
	}
}

func statusHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, id, ok := appointmentPath(w, r, logger)
		if !ok {
			return
		}
		var req StatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		appt, err := appts.SetStatus(r.Context(), dept, id, req.Status, caller(r), req.Notes)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func rescheduleHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, id, ok := appointmentPath(w, r, logger)
		if !ok {
			return
		}
		var req RescheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		appt, err := appts.Reschedule(r.Context(), dept, id, req.NewDateTime, req.Reason, caller(r))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func historyHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, id, ok := appointmentPath(w, r, logger)
		if !ok {
			return
		}
		changes, err := appts.History(r.Context(), dept, id)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(changes))
	}
}

func dashboardStatsHandler(appts AppointmentService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := appts.DashboardStats(r.Context())
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func appointmentPath(w http.ResponseWriter, r *http.Request, logger *observability.Logger) (department.ID, uuid.UUID, bool) {
	dept, err := department.Lookup(chi.URLParam(r, "department"))
	if err != nil {
		failure(w, r, logger, err)
		return "", uuid.Nil, false
	}
	id, ok := uuidParam(w, r, "id")
	return dept, id, ok
}
