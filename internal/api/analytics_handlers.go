package api

import (
	"context"
	"net/http"

	"github.com/hackgods/gov-appointments/internal/observability"
)

// reportHandler serves one read-only report.
func reportHandler[T any](logger *observability.Logger, fn func(ctx context.Context) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := fn(r.Context())
		if err != nil {
			failure(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
