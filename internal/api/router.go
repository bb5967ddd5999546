package api

import (
	"net/http"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// RouterConfig wires handlers into routes. Nil handler groups leave their
// routes unregistered; nil middlewares are skipped.
type RouterConfig struct {
	Service string
	Version string

	Health       *HealthHandlers
	Sessions     *SessionHandlers
	Catalog      *CatalogHandlers
	Media        *MediaHandlers
	LinkPreview  *LinkPreviewHandlers
	Scholarships *ScholarshipHandlers
	Vitals       *VitalsHandlers
	Metrics      http.Handler

	// Admin authenticates /api/admin routes. Admin routes are not
	// registered without it.
	Admin Middleware

	PreviewLimit Middleware
	VitalsLimit  Middleware
	AdminLimit   Middleware

	// Idempotency wraps session creation and capture so client retries
	// replay the first response.
	Idempotency Middleware
}

// NewRouter builds the API route table.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc, mws ...Middleware) {
		var handler http.Handler = h
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				handler = mws[i](handler)
			}
		}
		mux.Handle(pattern, handler)
	}

	if cfg.Health != nil {
		handle("/health", cfg.Health.Health)
		handle("/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	if h := cfg.Sessions; h != nil {
		handle("POST /api/sessions", h.Create, cfg.Idempotency)
		handle("GET /api/sessions/{id}", h.Get)
		handle("DELETE /api/sessions/{id}", h.Delete)
		handle("POST /api/sessions/{id}/camera/actions", h.Action)
		handle("POST /api/sessions/{id}/camera/dials", h.Dials)
		handle("POST /api/sessions/{id}/camera/power", h.Power)
		handle("POST /api/sessions/{id}/camera/capture", h.Capture, cfg.Idempotency)
		handle("POST /api/sessions/{id}/galleria", h.Galleria)
		handle("GET /api/sessions/{id}/events", h.Events)
	}

	if h := cfg.Catalog; h != nil {
		handle("GET /api/catalog", h.Catalog)
		handle("GET /api/catalog/categories/{id}", h.Category)
		handle("GET /api/characters", h.Characters)
		handle("GET /api/characters/{id}", h.Character)
		if cfg.Admin != nil {
			handle("POST /api/admin/catalog/reload", h.Reload, cfg.AdminLimit, cfg.Admin)
		}
	}

	if h := cfg.Media; h != nil {
		handle("GET /api/media", h.List)
		handle("GET /api/media/{id}", h.Get)
		handle("GET /api/media/{id}/thumbnail", h.Thumbnail)
	}

	if h := cfg.LinkPreview; h != nil {
		handle("GET /api/link-preview", h.Preview, cfg.PreviewLimit)
	}

	if h := cfg.Scholarships; h != nil {
		handle("GET /api/scholarships", h.List)
		handle("GET /api/scholarships/{id}", h.Get)
		handle("GET /api/scholarship-metadata", h.Metadata, cfg.PreviewLimit)
	}

	if h := cfg.Vitals; h != nil {
		handle("POST /api/vitals", h.Report, cfg.VitalsLimit)
		if cfg.Admin != nil {
			handle("GET /api/admin/vitals", h.Summary, cfg.AdminLimit, cfg.Admin)
		}
	}

	handle("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, r, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{
			"service": cfg.Service,
			"version": cfg.Version,
		})
	})
	return mux
}
