package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/viewfinder/internal/catalog"
	"github.com/onnwee/viewfinder/internal/image"
	"github.com/onnwee/viewfinder/internal/media"
)

// MediaService lists media and renders thumbnails.
type MediaService interface {
	List(ctx context.Context, section catalog.Section) ([]media.Item, error)
	Get(ctx context.Context, id string) (media.Item, error)
	Thumbnail(ctx context.Context, id string, width int) (image.Thumbnail, error)
}

// MediaHandlers serves /api/media.
type MediaHandlers struct {
	service MediaService
	cache   CachePolicy
	logger  *slog.Logger
}

// NewMediaHandlers creates MediaHandlers.
func NewMediaHandlers(service MediaService, cache CachePolicy, logger *slog.Logger) *MediaHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandlers{service: service, cache: cache, logger: logger}
}

// List handles GET /api/media?section=photography. Without a section every
// section is listed.
func (h *MediaHandlers) List(w http.ResponseWriter, r *http.Request) {
	section := catalog.Section(r.URL.Query().Get("section"))
	items, err := h.service.List(r.Context(), section)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeError(w, r, ErrCodeValidation, "Unknown section")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to list media", slog.String("error", err.Error()))
		writeError(w, r, ErrCodeInternal, "Something went wrong")
		return
	}
	if items == nil {
		items = []media.Item{}
	}
	writeCachedJSON(w, r, h.cache, items)
}

// Get handles GET /api/media/{id}.
func (h *MediaHandlers) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeError(w, r, ErrCodeNotFound, "Media not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to resolve media", slog.String("error", err.Error()))
		writeError(w, r, ErrCodeInternal, "Something went wrong")
		return
	}
	writeCachedJSON(w, r, h.cache, item)
}

// Thumbnail handles GET /api/media/{id}/thumbnail?w=640. Widths snap to the
// supported set.
func (h *MediaHandlers) Thumbnail(w http.ResponseWriter, r *http.Request) {
	width := 0
	if raw := r.URL.Query().Get("w"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, ErrCodeValidation, "w must be a positive integer")
			return
		}
		width = n
	}

	thumb, err := h.service.Thumbnail(r.Context(), r.PathValue("id"), width)
	switch {
	case err == nil:
	case errors.Is(err, media.ErrNotFound):
		writeError(w, r, ErrCodeNotFound, "Media not found")
		return
	case errors.Is(err, media.ErrNotImage):
		writeError(w, r, ErrCodeValidation, "Media item has no thumbnail")
		return
	case errors.Is(err, media.ErrUnavailable):
		writeError(w, r, ErrCodeUnavailable, "Media storage is not configured")
		return
	default:
		h.logger.ErrorContext(r.Context(), "thumbnail render failed", slog.String("error", err.Error()))
		writeError(w, r, ErrCodeInternal, "Something went wrong")
		return
	}

	w.Header().Set("Content-Type", thumb.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(thumb.Data); err != nil {
		h.logger.DebugContext(r.Context(), "failed to write thumbnail", slog.String("error", err.Error()))
	}
}
