package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"toolcrib-api/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerHealth reports whether the event publisher is connected.
type BrokerHealth interface {
	IsHealthy() bool
}

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct {
	service string
	version string
	store   Pinger
	cache   Pinger
	broker  BrokerHealth
}

// New creates a new handler. cache and broker may be nil.
func New(service, version string, store Pinger, cache Pinger, broker BrokerHealth) *Handler {
	return &Handler{service: service, version: version, store: store, cache: cache, broker: broker}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func pingCheck(ctx context.Context, name string, p Pinger) Check {
	if err := p.Ping(ctx); err != nil {
		return Check{Name: name, Status: "error", Error: err.Error()}
	}
	return Check{Name: name, Status: "ok"}
}

func (h *Handler) checks(ctx context.Context) []Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	checks := []Check{{Name: "api", Status: "ok"}}
	if h.store != nil {
		checks = append(checks, pingCheck(ctx, "database", h.store))
	}
	if h.cache != nil {
		checks = append(checks, pingCheck(ctx, "cache", h.cache))
	}
	if h.broker != nil {
		c := Check{Name: "broker", Status: "ok"}
		if !h.broker.IsHealthy() {
			c.Status = "degraded"
		}
		checks = append(checks, c)
	}
	return checks
}

// Ready handles GET /api/v1/ready. A disconnected broker degrades but does
// not fail readiness since ingestion never depends on it.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.checks(r.Context())

	allReady := true
	for _, check := range checks {
		if check.Status == "error" {
			allReady = false
			break
		}
	}

	resp := ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	if !allReady {
		response.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	response.OK(w, resp)
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Database string  `json:"database"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse is the compact status document used by uptime monitors.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	status, database := "ok", "ok"
	start := time.Now()
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.store.Ping(ctx)
		cancel()
		if err != nil {
			status, database = "degraded", "error"
		}
	}

	resp := StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		PingMS:        time.Since(start).Milliseconds(),
		Checks: StatusChecks{
			Database: database,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
