package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/viewfinder/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRequireScope(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, err := auth.NewJWTService(testSecret, auth.WithClock(mock.Now), auth.WithLeeway(0))
	if err != nil {
		t.Fatal(err)
	}
	other, err := auth.NewJWTService("ffffffffffffffffffffffffffffffff", auth.WithClock(mock.Now))
	if err != nil {
		t.Fatal(err)
	}

	valid, _ := svc.Issue("curator", time.Hour)
	expired, _ := svc.Issue("curator", time.Minute)
	foreign, _ := other.Issue("curator", time.Hour)
	mock.Add(2 * time.Minute)

	tests := []struct {
		name       string
		header     string
		scope      string
		wantStatus int
		wantReason string
	}{
		{"valid token", "Bearer " + valid, auth.ScopeAdmin, http.StatusOK, ""},
		{"lower-case scheme", "bearer " + valid, auth.ScopeAdmin, http.StatusOK, ""},
		{"missing header", "", auth.ScopeAdmin, http.StatusUnauthorized, "missing"},
		{"basic auth", "Basic dXNlcjpwYXNz", auth.ScopeAdmin, http.StatusUnauthorized, "missing"},
		{"empty bearer", "Bearer ", auth.ScopeAdmin, http.StatusUnauthorized, "missing"},
		{"expired", "Bearer " + expired, auth.ScopeAdmin, http.StatusUnauthorized, "expired"},
		{"wrong secret", "Bearer " + foreign, auth.ScopeAdmin, http.StatusUnauthorized, "invalid"},
		{"garbage", "Bearer not.a.token", auth.ScopeAdmin, http.StatusUnauthorized, "invalid"},
		{"insufficient scope", "Bearer " + valid, "vitals:read", http.StatusForbidden, "scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics()
			var subject string
			handler := RequireScope(svc, tt.scope, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = GetSubject(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/admin/catalog/reload", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if subject != "curator" {
					t.Errorf("expected subject curator, got %q", subject)
				}
				return
			}

			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
			var m dto.Metric
			if err := metrics.authFailures.WithLabelValues(tt.wantReason).Write(&m); err != nil {
				t.Fatal(err)
			}
			if m.GetCounter().GetValue() != 1 {
				t.Errorf("expected auth failure counted as %q", tt.wantReason)
			}
		})
	}
}

func TestRequireScope_SubjectLogged(t *testing.T) {
	svc, err := auth.NewJWTService(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	token, err := svc.Issue("curator", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(RequireScope(svc, auth.ScopeAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/catalog/reload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if entry := parseEntry(t, buf); entry.Subject != "curator" {
		t.Errorf("expected subject in access log, got %q", entry.Subject)
	}
}

func TestRequireScope_FailureCodeLogged(t *testing.T) {
	svc, err := auth.NewJWTService(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(RequireScope(svc, auth.ScopeAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credentials")
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/admin/vitals", nil))

	entry := parseEntry(t, buf)
	if entry.Status != http.StatusUnauthorized || entry.ErrorCode != "auth_failed" {
		t.Errorf("unexpected access log entry %+v", entry)
	}
}
