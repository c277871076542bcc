package api

import (
	"net/http"

	"github.com/hackgods/gov-appointments/internal/observability"
)

func websocketHandler(hub RealtimeHub, logger *observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, caller(r).UserID); err != nil {
			// The upgrader has already replied.
			logger.WithContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		}
	}
}
