package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// routePatterns are the API routes with dynamic segments. Paths are mapped
// onto them before they become metric labels, so session and media IDs do
// not explode label cardinality.
var routePatterns = [][]string{
	splitPath("/api/sessions/{id}"),
	splitPath("/api/sessions/{id}/camera/{op}"),
	splitPath("/api/sessions/{id}/galleria"),
	splitPath("/api/sessions/{id}/events"),
	splitPath("/api/catalog/categories/{id}"),
	splitPath("/api/characters/{id}"),
	splitPath("/api/media/{id}"),
	splitPath("/api/media/{id}/thumbnail"),
	splitPath("/api/scholarships/{id}"),
}

// cameraOps are the allowed values of the {op} segment.
var cameraOps = map[string]bool{
	"actions": true,
	"dials":   true,
	"power":   true,
	"capture": true,
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

// normalizePath converts paths with dynamic segments to route patterns,
// e.g. /api/sessions/7f3a/camera/dials becomes
// /api/sessions/{id}/camera/dials. Paths outside the API collapse to
// "other" apart from the health and metrics endpoints.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/ready", "/metrics":
		return path
	}
	if !strings.HasPrefix(path, "/api/") {
		return "other"
	}

	segs := splitPath(path)
	for _, pattern := range routePatterns {
		if out, ok := matchRoute(pattern, segs); ok {
			return out
		}
	}
	return path
}

func matchRoute(pattern, segs []string) (string, bool) {
	if len(pattern) != len(segs) {
		return "", false
	}
	out := make([]string, len(pattern))
	for i, p := range pattern {
		switch {
		case p == "{op}":
			if !cameraOps[segs[i]] {
				return "", false
			}
			out[i] = segs[i]
		case strings.HasPrefix(p, "{"):
			if segs[i] == "" {
				return "", false
			}
			out[i] = p
		case p != segs[i]:
			return "", false
		default:
			out[i] = p
		}
	}
	return "/" + strings.Join(out, "/"), true
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	mrw.wroteHeader = true
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap returns the underlying writer.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
