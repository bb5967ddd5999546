package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: "viewfinder-api"}, discardLogger())
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if provider.Tracer("test") == nil {
		t.Error("disabled provider should still hand out a tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown on disabled provider failed: %v", err)
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.1}},
		{"negative sampling rate", Config{ServiceName: "viewfinder-api", Enabled: true, SamplingRate: -0.1}},
		{"sampling rate above 1", Config{ServiceName: "viewfinder-api", Enabled: true, SamplingRate: 1.5}},
		{"unknown exporter", Config{ServiceName: "viewfinder-api", Enabled: true, ExporterType: "zipkin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg, discardLogger()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewProvider_ValidConfig(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		samplingRate float64
	}{
		{"http default", "", 1},
		{"http explicit", ExporterOTLPHTTP, 0.5},
		{"grpc", ExporterOTLPGRPC, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:    "viewfinder-api",
				ServiceVersion: "test",
				Enabled:        true,
				Environment:    "test",
				ExporterType:   tt.exporterType,
				OTLPEndpoint:   "localhost:4318",
				SamplingRate:   tt.samplingRate,
				InsecureMode:   true,
			}, discardLogger())
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}

			// Nothing listens on the endpoint; Shutdown must still return.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		})
	}
}

func TestSampler(t *testing.T) {
	for rate, want := range map[float64]string{
		1:    "ParentBased{root:AlwaysOnSampler",
		0:    "ParentBased{root:AlwaysOffSampler",
		0.25: "ParentBased{root:TraceIDRatioBased{0.25}",
	} {
		if got := sampler(rate).Description(); len(got) < len(want) || got[:len(want)] != want {
			t.Errorf("sampler(%v) = %q, want prefix %q", rate, got, want)
		}
	}
}
