package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	checkers map[string]HealthChecker
	timeout  time.Duration
	now      func() time.Time
}

// HealthHandlersConfig configures the health check handlers. Nil checkers
// belong to backends that are not configured and are reported as such.
type HealthHandlersConfig struct {
	RedisChecker  HealthChecker
	DBChecker     HealthChecker
	BucketChecker HealthChecker
	Timeout       time.Duration
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	checkers := map[string]HealthChecker{
		"redis":    config.RedisChecker,
		"database": config.DBChecker,
		"bucket":   config.BucketChecker,
	}
	return &HealthHandlers{checkers: checkers, timeout: config.Timeout, now: time.Now}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	h.write(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe). Configured backends are
// checked concurrently; any failure answers 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	type outcome struct {
		name string
		err  error
	}
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(chan outcome, len(names))
	checks := map[string]string{"metrics": "ok"}
	pending := 0
	for _, name := range names {
		checker := h.checkers[name]
		if checker == nil {
			checks[name] = "not_configured"
			continue
		}
		pending++
		go func() {
			results <- outcome{name: name, err: checker.HealthCheck(ctx)}
		}()
	}

	healthy := true
	for ; pending > 0; pending-- {
		res := <-results
		if res.err != nil {
			checks[res.name] = "error"
			healthy = false
			slog.WarnContext(ctx, "readiness check failed", "check", res.name, "error", res.err)
			continue
		}
		checks[res.name] = "ok"
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	h.write(w, code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandlers) write(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
