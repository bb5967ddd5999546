package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/viewfinder/internal/catalog"
)

// CatalogStore serves and reloads the catalog.
type CatalogStore interface {
	Current() *catalog.Catalog
	LoadedAt() time.Time
	Reload(ctx context.Context) (*catalog.Catalog, error)
}

// CatalogApplier pushes a reloaded catalog into live sessions.
type CatalogApplier interface {
	ApplyCatalog(ctx context.Context, cat *catalog.Catalog) error
}

// CatalogHandlers serves portfolio content and the admin reload.
type CatalogHandlers struct {
	store    CatalogStore
	sessions CatalogApplier
	cache    CachePolicy
	logger   *slog.Logger
}

// NewCatalogHandlers creates CatalogHandlers. sessions may be nil.
func NewCatalogHandlers(store CatalogStore, sessions CatalogApplier, cache CachePolicy, logger *slog.Logger) *CatalogHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandlers{store: store, sessions: sessions, cache: cache, logger: logger}
}

// ReloadResponse summarizes a catalog reload.
type ReloadResponse struct {
	Categories int       `json:"categories"`
	Characters int       `json:"characters"`
	LoadedAt   time.Time `json:"loaded_at"`
	Changed    bool      `json:"changed"`
}

// Catalog handles GET /api/catalog.
func (h *CatalogHandlers) Catalog(w http.ResponseWriter, r *http.Request) {
	writeCachedJSON(w, r, h.cache, h.store.Current())
}

// Category handles GET /api/catalog/categories/{id}.
func (h *CatalogHandlers) Category(w http.ResponseWriter, r *http.Request) {
	cat, err := h.store.Current().Category(r.PathValue("id"))
	if err != nil {
		writeError(w, r, ErrCodeNotFound, "Category not found")
		return
	}
	writeCachedJSON(w, r, h.cache, cat)
}

// Characters handles GET /api/characters.
func (h *CatalogHandlers) Characters(w http.ResponseWriter, r *http.Request) {
	characters := h.store.Current().Characters
	if characters == nil {
		characters = []catalog.Character{}
	}
	writeCachedJSON(w, r, h.cache, characters)
}

// Character handles GET /api/characters/{id}.
func (h *CatalogHandlers) Character(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Current().Character(r.PathValue("id"))
	if err != nil {
		writeError(w, r, ErrCodeNotFound, "Character not found")
		return
	}
	writeCachedJSON(w, r, h.cache, c)
}

// Reload handles POST /api/admin/catalog/reload. A failed reload keeps the
// previous catalog.
func (h *CatalogHandlers) Reload(w http.ResponseWriter, r *http.Request) {
	prev := h.store.Current()
	cat, err := h.store.Reload(r.Context())
	if err != nil {
		if errors.Is(err, catalog.ErrInvalid) {
			writeError(w, r, ErrCodeValidation, err.Error())
			return
		}
		writeError(w, r, ErrCodeUnavailable, "Catalog source is unavailable")
		return
	}
	changed := cat != prev
	if changed && h.sessions != nil {
		if err := h.sessions.ApplyCatalog(r.Context(), cat); err != nil {
			h.logger.WarnContext(r.Context(), "some sessions kept the previous catalog", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, r, http.StatusOK, ReloadResponse{
		Categories: len(cat.Categories),
		Characters: len(cat.Characters),
		LoadedAt:   h.store.LoadedAt().UTC(),
		Changed:    changed,
	})
}
