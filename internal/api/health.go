package api

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	database Check
	redis    Check // nil when Redis is not configured
	env      string
	version  string
	now      func() time.Time
}

func NewHealthHandler(database, redis Check, env, version string) *HealthHandler {
	return &HealthHandler{
		database: database,
		redis:    redis,
		env:      env,
		version:  version,
		now:      time.Now,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness is "error" without the database and "degraded" without Redis.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	deps, status := h.probe(r.Context())

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}

// Status is the flat component map served on /health.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	deps, status := h.probe(r.Context())

	body := map[string]string{
		"status":    map[string]string{"ok": "healthy", "degraded": "degraded", "error": "unhealthy"}[status],
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"version":   h.version,
	}
	for name, state := range deps {
		body[name] = state
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, body)
}

func (h *HealthHandler) probe(ctx context.Context) (map[string]string, string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	if err := ping(ctx, h.database); err != nil {
		deps["database"] = "down"
		status = "error"
	} else {
		deps["database"] = "ok"
	}

	switch {
	case h.redis == nil:
		deps["redis"] = "disabled"
	case ping(ctx, h.redis) != nil:
		deps["redis"] = "down"
		if status == "ok" {
			status = "degraded"
		}
	default:
		deps["redis"] = "ok"
	}

	return deps, status
}

func ping(ctx context.Context, check Check) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return check(ctx)
}
