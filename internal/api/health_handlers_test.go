package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err   error
	delay time.Duration
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	w := httptest.NewRecorder()
	handlers.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Status != "healthy" || response.Checks["runtime"] != "ok" {
		t.Errorf("unexpected response %+v", response)
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for _, h := range []http.HandlerFunc{handlers.Health, handlers.Ready} {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/health", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", w.Code)
		}
	}
}

func TestReady(t *testing.T) {
	failing := &mockHealthChecker{err: errors.New("connection refused")}
	ok := &mockHealthChecker{}

	tests := []struct {
		name       string
		config     HealthHandlersConfig
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "nothing configured",
			config:     HealthHandlersConfig{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"redis": "not_configured", "database": "not_configured", "bucket": "not_configured", "metrics": "ok"},
		},
		{
			name:       "all healthy",
			config:     HealthHandlersConfig{RedisChecker: ok, DBChecker: ok, BucketChecker: ok},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"redis": "ok", "database": "ok", "bucket": "ok"},
		},
		{
			name:       "redis down",
			config:     HealthHandlersConfig{RedisChecker: failing, DBChecker: ok},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"redis": "error", "database": "ok", "bucket": "not_configured"},
		},
		{
			name:       "slow bucket times out",
			config:     HealthHandlersConfig{BucketChecker: &mockHealthChecker{delay: time.Second}, Timeout: 20 * time.Millisecond},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"bucket": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandlers(tt.config).Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			response := decodeHealth(t, w)
			for name, want := range tt.wantChecks {
				if got := response.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
			wantStatus := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "unhealthy"
			}
			if response.Status != wantStatus {
				t.Errorf("expected status %q, got %q", wantStatus, response.Status)
			}
		})
	}
}
