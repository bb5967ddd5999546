package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/onnwee/viewfinder/internal/linkpreview"
)

// Previewer resolves link previews.
type Previewer interface {
	Preview(ctx context.Context, rawURL string) (linkpreview.Preview, error)
	Batch(ctx context.Context, urls []string) ([]linkpreview.Result, error)
}

// LinkPreviewHandlers serves GET /api/link-preview.
type LinkPreviewHandlers struct {
	previewer Previewer
	cache     CachePolicy
}

// NewLinkPreviewHandlers creates LinkPreviewHandlers.
func NewLinkPreviewHandlers(previewer Previewer) *LinkPreviewHandlers {
	return &LinkPreviewHandlers{
		previewer: previewer,
		cache:     CachePolicy{SMaxAge: time.Hour, StaleWhileRevalidate: 24 * time.Hour},
	}
}

// Preview handles GET /api/link-preview?url=. Unreachable pages still answer
// 200 with a partial preview built from the URL.
func (h *LinkPreviewHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, r, ErrCodeValidation, "url is required")
		return
	}
	p, err := h.previewer.Preview(r.Context(), raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeCachedJSON(w, r, h.cache, p)
}

func (h *LinkPreviewHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, linkpreview.ErrInvalidURL):
		writeError(w, r, ErrCodeInvalidURL, "URL cannot be previewed")
	case errors.Is(err, linkpreview.ErrBatchTooLarge):
		writeError(w, r, ErrCodeValidation, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, ErrCodeUnavailable, "Preview lookup timed out")
	default:
		writeError(w, r, ErrCodeInternal, "Something went wrong")
	}
}
