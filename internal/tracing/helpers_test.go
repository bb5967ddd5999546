package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]string {
	m := make(map[attribute.Key]string, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value.Emit()
	}
	return m
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"insert", "web_vitals", DBOperationInsert, "insert web_vitals"},
		{"query", "web_vitals", DBOperationQuery, "query web_vitals"},
		{"delete", "web_vitals", DBOperationDelete, "delete web_vitals"},
		{"exec without table", "", DBOperationExec, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, end := StartDBSpan(context.Background(), tt.table, tt.operation)
			end(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("expected span name %q, got %q", tt.wantName, span.Name())
			}
			if span.SpanKind() != trace.SpanKindClient {
				t.Errorf("expected client span, got %v", span.SpanKind())
			}
			attrs := attrMap(span.Attributes())
			if attrs["db.system"] != "postgresql" || attrs["db.operation"] != string(tt.operation) {
				t.Errorf("unexpected attributes %v", attrs)
			}
			if _, ok := attrs["db.sql.table"]; ok != (tt.table != "") {
				t.Errorf("db.sql.table presence mismatch: %v", attrs)
			}
			if span.Status().Code == codes.Error {
				t.Error("successful span marked as error")
			}
		})
	}
}

func TestStartObjectSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, end := StartObjectSpan(context.Background(), "viewfinder", "GetObject", "photos/nw-a.jpg")
	end(errors.New("NoSuchKey"))

	span := recorder.Ended()[0]
	if span.Name() != "s3.GetObject" {
		t.Errorf("unexpected span name %q", span.Name())
	}
	attrs := attrMap(span.Attributes())
	if attrs["aws.s3.bucket"] != "viewfinder" || attrs["aws.s3.key"] != "photos/nw-a.jpg" {
		t.Errorf("unexpected attributes %v", attrs)
	}
	if span.Status().Code != codes.Error || span.Status().Description != "NoSuchKey" {
		t.Errorf("expected error status, got %+v", span.Status())
	}
	if len(span.Events()) != 1 || span.Events()[0].Name != "exception" {
		t.Errorf("expected the error recorded as an event, got %v", span.Events())
	}
}

func TestStartSpan_Nesting(t *testing.T) {
	recorder := recordSpans(t)

	ctx, endParent := StartSpan(context.Background(), "catalog.reload")
	_, endChild := StartDBSpan(ctx, "web_vitals", DBOperationQuery)
	endChild(nil)
	endParent(nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("child span is not parented to the enclosing span")
	}
	if parent.SpanKind() != trace.SpanKindInternal {
		t.Errorf("expected internal span, got %v", parent.SpanKind())
	}
}

func TestAddEventAndSetAttributes(t *testing.T) {
	recorder := recordSpans(t)

	ctx, end := StartSpan(context.Background(), "media.thumbnail")
	SetAttributes(ctx, attribute.Int("width", 640))
	AddEvent(ctx, "cache_miss", attribute.String("key", "thumbs/640/nw-a.webp"))
	end(nil)

	span := recorder.Ended()[0]
	if attrMap(span.Attributes())["width"] != "640" {
		t.Errorf("attribute not set: %v", span.Attributes())
	}
	if len(span.Events()) != 1 || span.Events()[0].Name != "cache_miss" {
		t.Errorf("unexpected events %v", span.Events())
	}
}

func TestHelpers_NoSpanInContext(t *testing.T) {
	// Without an active span both helpers are no-ops.
	AddEvent(context.Background(), "ignored")
	SetAttributes(context.Background(), attribute.Bool("ignored", true))
}
