package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/viewfinder/internal/scholarship"
)

// ScholarshipStore serves scholarship listings.
type ScholarshipStore interface {
	List(f scholarship.Filter) []scholarship.Scholarship
	Get(id string) (scholarship.Scholarship, error)
}

// ScholarshipHandlers serves /api/scholarships and /api/scholarship-metadata.
type ScholarshipHandlers struct {
	store   ScholarshipStore
	preview *LinkPreviewHandlers
	cache   CachePolicy
	now     func() time.Time
}

// NewScholarshipHandlers creates ScholarshipHandlers. previewer backs the
// metadata endpoint.
func NewScholarshipHandlers(store ScholarshipStore, previewer Previewer, cache CachePolicy) *ScholarshipHandlers {
	return &ScholarshipHandlers{
		store:   store,
		preview: NewLinkPreviewHandlers(previewer),
		cache:   cache,
		now:     time.Now,
	}
}

// List handles GET /api/scholarships?tag=&open=true.
func (h *ScholarshipHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := scholarship.Filter{Tag: q.Get("tag"), Now: h.now()}
	if raw := q.Get("open"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, ErrCodeValidation, "open must be a boolean")
			return
		}
		f.OpenOnly = open
	}
	writeCachedJSON(w, r, h.cache, h.store.List(f))
}

// Get handles GET /api/scholarships/{id}.
func (h *ScholarshipHandlers) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, scholarship.ErrNotFound) {
			writeError(w, r, ErrCodeNotFound, "Scholarship not found")
			return
		}
		writeError(w, r, ErrCodeInternal, "Something went wrong")
		return
	}
	writeCachedJSON(w, r, h.cache, s)
}

// Metadata handles GET /api/scholarship-metadata. A single url parameter
// returns one preview; repeated url parameters return a batch in request
// order with per-URL errors.
func (h *ScholarshipHandlers) Metadata(w http.ResponseWriter, r *http.Request) {
	urls := r.URL.Query()["url"]
	switch len(urls) {
	case 0:
		writeError(w, r, ErrCodeValidation, "url is required")
	case 1:
		h.preview.Preview(w, r)
	default:
		results, err := h.preview.previewer.Batch(r.Context(), urls)
		if err != nil {
			h.preview.fail(w, r, err)
			return
		}
		writeCachedJSON(w, r, h.preview.cache, results)
	}
}
