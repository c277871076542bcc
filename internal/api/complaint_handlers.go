package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/gov-appointments/internal/complaint"
	"github.com/hackgods/gov-appointments/internal/observability"
)

func submitComplaintHandler(svc ComplaintService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req complaint.SubmitRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := svc.Submit(r.Context(), caller(r), req)
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func listComplaintsHandler(svc ComplaintService, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListByNIC(r.Context(), caller(r), chi.URLParam(r, "nic"))
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, listOf(list))
	}
}
