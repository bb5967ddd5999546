package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether pprof endpoints are exposed.
	// Development only; production environments refuse it.
	Enabled bool

	// Environment is checked again so a stray flag cannot expose pprof in
	// production.
	Environment string
}

// ProfilingEndpoints lists the exposed pprof paths.
var ProfilingEndpoints = []string{
	"/debug/pprof/",
	"/debug/pprof/profile",
	"/debug/pprof/heap",
	"/debug/pprof/goroutine",
	"/debug/pprof/block",
	"/debug/pprof/mutex",
	"/debug/pprof/threadcreate",
	"/debug/pprof/allocs",
	"/debug/pprof/cmdline",
	"/debug/pprof/symbol",
	"/debug/pprof/trace",
}

func (c ProfilingConfig) active() bool {
	return c.Enabled && c.Environment != "production" && c.Environment != "prod"
}

// Profiling returns middleware that serves pprof at /debug/pprof/* when
// enabled outside production. Other requests pass through.
func Profiling(config ProfilingConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if !config.active() {
			logger.Error("refusing to enable profiling in production",
				"environment", config.Environment,
			)
			return next
		}

		logger.Warn("profiling endpoints enabled, development only",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/debug/pprof/") {
				mux.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ProfilingStatus reports whether pprof is being served.
func ProfilingStatus(config ProfilingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "disabled"
		var endpoints []string
		if config.active() {
			status = "enabled"
			endpoints = ProfilingEndpoints
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"profiling_enabled": config.active(),
			"environment":       config.Environment,
			"status":            status,
			"endpoints":         endpoints,
		})
	}
}
