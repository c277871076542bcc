package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/gov-appointments/internal/analytics"
	"github.com/hackgods/gov-appointments/internal/auth"
	"github.com/hackgods/gov-appointments/internal/department"
	"github.com/hackgods/gov-appointments/internal/observability"
	"github.com/hackgods/gov-appointments/internal/slot"
)

func listDepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listOf(department.List()))
}

func departmentServicesHandler(logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := department.Lookup(chi.URLParam(r, "department"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		services, err := department.Services(dept)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(services))
	}
}

// listSlotsHandler serves the slot search and records it for analytics.
func listSlotsHandler(slots SlotService, accounts AccountService, events EventRecorder, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := department.Lookup(chi.URLParam(r, "department"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		date := r.URL.Query().Get("date")

		list, err := slots.ListAvailable(r.Context(), dept, date)
		if err != nil {
			failure(w, r, logger, err)
			return
		}

		if p := caller(r); p.Role == auth.RoleCitizen {
			if nic, err := accounts.CitizenNIC(r.Context(), p.UserID); err == nil {
				events.Record(r.Context(), analytics.TimeslotSearch, nic, dept, map[string]any{
					"date":            date,
					"available_slots": len(list),
				})
			}
		}
		writeJSON(w, http.StatusOK, listOf(list))
	}
}

func generateSlotsHandler(slots SlotService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := department.Lookup(chi.URLParam(r, "department"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		var req GenerateSlotsRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		created, err := slots.Generate(r.Context(), dept, slot.GenerateRequest{
			Date:            req.Date,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, listOf(created))
	}
}

func slotAvailabilityHandler(slots SlotService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := department.Lookup(chi.URLParam(r, "department"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		id, ok := uuidParam(w, r, "slotID")
		if !ok {
			return
		}
		var req SlotAvailabilityRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ts, err := slots.SetAvailability(r.Context(), dept, id, slot.Availability(req.Availability))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ts)
	}
}
