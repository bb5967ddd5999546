package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/viewfinder/internal/linkpreview"
	"github.com/onnwee/viewfinder/internal/scholarship"
)

func TestLinkPreviewHandlers_Preview(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
	}{
		{"ok", "/api/link-preview?url=https://example.com", http.StatusOK, ""},
		{"missing url", "/api/link-preview", http.StatusBadRequest, ErrCodeValidation},
		{"rejected url", "/api/link-preview?url=ftp://example.com", http.StatusBadRequest, ErrCodeInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, w); code != tt.wantCode {
					t.Errorf("expected %s, got %s", tt.wantCode, code)
				}
				return
			}
			if got := w.Header().Get("Cache-Control"); got != "public, s-maxage=3600, stale-while-revalidate=86400" {
				t.Errorf("unexpected Cache-Control %q", got)
			}
			if p := decodeBody[linkpreview.Preview](t, w); p.Title != "example.com" {
				t.Errorf("unexpected preview %+v", p)
			}
		})
	}
}

type slowPreviewer struct{ fakePreviewer }

func (s *slowPreviewer) Preview(ctx context.Context, _ string) (linkpreview.Preview, error) {
	<-ctx.Done()
	return linkpreview.Preview{}, ctx.Err()
}

func TestLinkPreviewHandlers_Timeout(t *testing.T) {
	h := NewLinkPreviewHandlers(&slowPreviewer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/link-preview?url=https://example.com", nil).WithContext(ctx)
	h.Preview(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestScholarshipHandlers_List(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantIDs    []string
	}{
		{"all", "/api/scholarships", http.StatusOK, []string{"arts-fund", "old-grant", "rolling"}},
		{"by tag", "/api/scholarships?tag=film", http.StatusOK, []string{"old-grant"}},
		{"open only", "/api/scholarships?open=true", http.StatusOK, []string{"arts-fund", "rolling"}},
		{"bad open flag", "/api/scholarships?open=maybe", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantIDs == nil {
				return
			}
			got := decodeBody[[]scholarship.Scholarship](t, w)
			ids := make(map[string]bool, len(got))
			for _, s := range got {
				ids[s.ID] = true
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected %v, got %d listings", tt.wantIDs, len(got))
			}
			for _, id := range tt.wantIDs {
				if !ids[id] {
					t.Errorf("missing %s", id)
				}
			}
		})
	}
}

func TestScholarshipHandlers_Get(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/scholarships/arts-fund", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if s := decodeBody[scholarship.Scholarship](t, w); s.Name != "Arts Fund" {
		t.Errorf("unexpected listing %+v", s)
	}

	w = env.do(t, http.MethodGet, "/api/scholarships/none", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestScholarshipHandlers_Metadata(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/scholarship-metadata", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without url, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/scholarship-metadata?url=https://arts.example.org", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if p := decodeBody[linkpreview.Preview](t, w); p.URL != "https://arts.example.org" {
		t.Errorf("unexpected single preview %+v", p)
	}

	w = env.do(t, http.MethodGet, "/api/scholarship-metadata?url=https://a.example&url=ftp://b.example", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for batch, got %d", w.Code)
	}
	results := decodeBody[[]linkpreview.Result](t, w)
	if len(results) != 2 || results[0].Preview == nil || results[1].Error == "" {
		t.Errorf("unexpected batch results %+v", results)
	}
	if len(env.previews.batches) != 1 {
		t.Errorf("expected one batch call, got %d", len(env.previews.batches))
	}

	w = env.do(t, http.MethodGet, "/api/scholarship-metadata?url=https://a&url=https://b&url=https://c&url=https://d", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized batch, got %d", w.Code)
	}
}
