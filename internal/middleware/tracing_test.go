package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func TestTracing_SpanNameUsesRoute(t *testing.T) {
	recorder := newSpanRecorder(t)

	var traceID, spanID string
	handler := Tracing("viewfinder-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, spanID = GetTraceID(r), GetSpanID(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s-1/camera/dials", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if want := "POST /api/sessions/{id}/camera/dials"; spans[0].Name() != want {
		t.Errorf("expected span name %q, got %q", want, spans[0].Name())
	}
	if traceID != spans[0].SpanContext().TraceID().String() || spanID != spans[0].SpanContext().SpanID().String() {
		t.Error("handler context does not carry the request span")
	}
}

func TestTracing_SkipsProbes(t *testing.T) {
	recorder := newSpanRecorder(t)
	handler := Tracing("viewfinder-test")(okHandler())

	for _, p := range []string{"/health", "/ready", "/metrics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	if n := len(recorder.Ended()); n != 0 {
		t.Errorf("expected no spans for health checks, got %d", n)
	}
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	recorder := newSpanRecorder(t)
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	handler := Tracing("viewfinder-test")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected incoming trace ID, got %s", got)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if GetTraceID(req) != "" || GetSpanID(req) != "" {
		t.Error("expected empty IDs without an active span")
	}
}
