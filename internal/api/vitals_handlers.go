package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/onnwee/viewfinder/internal/vitals"
)

// VitalsRecorder records web-vitals reports.
type VitalsRecorder interface {
	Record(ctx context.Context, reports []vitals.Report, userAgent string) vitals.Outcome
	Summarize(ctx context.Context, window time.Duration) ([]vitals.Summary, error)
}

// DefaultSummaryWindow is the look-back of the vitals summary.
const DefaultSummaryWindow = 24 * time.Hour

// VitalsHandlers serves POST /api/vitals and the admin summary.
type VitalsHandlers struct {
	recorder VitalsRecorder
}

// NewVitalsHandlers creates VitalsHandlers.
func NewVitalsHandlers(recorder VitalsRecorder) *VitalsHandlers {
	return &VitalsHandlers{recorder: recorder}
}

// Report handles POST /api/vitals. Browsers send beacons and ignore the
// answer, so invalid entries inside a batch are counted rather than failing
// the request.
func (h *VitalsHandlers) Report(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	reports, err := vitals.Decode(body)
	if err != nil {
		writeError(w, r, ErrCodeValidation, err.Error())
		return
	}
	out := h.recorder.Record(r.Context(), reports, r.UserAgent())
	if out.Accepted == 0 {
		writeError(w, r, ErrCodeValidation, "no valid reports")
		return
	}
	writeJSON(w, r, http.StatusAccepted, out)
}

// Summary handles GET /api/admin/vitals?window=24h.
func (h *VitalsHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	window := DefaultSummaryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > 90*24*time.Hour {
			writeError(w, r, ErrCodeValidation, "window must be a positive duration up to 2160h")
			return
		}
		window = d
	}
	summaries, err := h.recorder.Summarize(r.Context(), window)
	if err != nil {
		if errors.Is(err, vitals.ErrNoRepository) {
			writeError(w, r, ErrCodeUnavailable, "Vitals persistence is not configured")
			return
		}
		writeError(w, r, ErrCodeInternal, "Something went wrong")
		return
	}
	if summaries == nil {
		summaries = []vitals.Summary{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"window":  window.String(),
		"metrics": summaries,
	})
}
