package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/viewfinder/internal/middleware"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// CachePolicy is the shared-cache lifetime of public content.
type CachePolicy struct {
	SMaxAge              time.Duration
	StaleWhileRevalidate time.Duration
}

// Header renders the Cache-Control value.
func (p CachePolicy) Header() string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		int(p.SMaxAge.Seconds()), int(p.StaleWhileRevalidate.Seconds()))
}

// DefaultCachePolicy applies to catalog, scholarship and media listings.
var DefaultCachePolicy = CachePolicy{SMaxAge: 5 * time.Minute, StaleWhileRevalidate: 10 * time.Minute}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

func writeCachedJSON(w http.ResponseWriter, r *http.Request, policy CachePolicy, v any) {
	w.Header().Set("Cache-Control", policy.Header())
	writeJSON(w, r, http.StatusOK, v)
}

// decodeJSON reads a size-limited JSON body into dst, writing the error
// response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	data, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeError(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return nil, false
		}
		writeError(w, r, ErrCodeBadRequest, "Failed to read request body")
		return nil, false
	}
	return data, true
}
