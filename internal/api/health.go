package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a dependency. *pgxpool.Pool satisfies it directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function such as a Redis ping to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type AdapterInfo struct {
	Scheduling   string `json:"scheduling"`
	Notification string `json:"notification"`
}

type HealthHandler struct {
	postgres   Pinger
	redis      Pinger // nil when Redis is disabled
	env        string
	version    string
	phiEnabled bool
	adapters   AdapterInfo
	now        func() time.Time
}

type HealthConfig struct {
	Postgres          Pinger
	Redis             Pinger
	Env               string
	Version           string
	PHIStorageEnabled bool
	Adapters          AdapterInfo
}

func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{
		postgres:   cfg.Postgres,
		redis:      cfg.Redis,
		env:        cfg.Env,
		version:    cfg.Version,
		phiEnabled: cfg.PHIStorageEnabled,
		adapters:   cfg.Adapters,
		now:        time.Now,
	}
}

type HealthResponse struct {
	Status            string      `json:"status"`
	Timestamp         time.Time   `json:"timestamp"`
	Version           string      `json:"version,omitempty"`
	Env               string      `json:"env,omitempty"`
	PHIStorageEnabled bool        `json:"phiStorageEnabled"`
	Adapters          AdapterInfo `json:"adapters"`
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

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		Timestamp:         h.now().UTC(),
		Version:           h.version,
		Env:               h.env,
		PHIStorageEnabled: h.phiEnabled,
		Adapters:          h.adapters,
	})
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "ok", Version: h.version, Env: h.env})
}

// Readiness fails only when Postgres is down. A Redis outage degrades the
// service to in-process caching and rate limiting.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	if err := ping(ctx, h.postgres); err != nil {
		deps["postgres"] = "down"
		status = "error"
	} else {
		deps["postgres"] = "ok"
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

func ping(ctx context.Context, p Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return p.Ping(ctx)
}
