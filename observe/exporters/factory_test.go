package exporters

import (
	"bytes"
	"context"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	for _, name := range []string{"stdout", "none", ""} {
		exp, err := NewTracingExporter(ctx, name, &buf)
		if err != nil {
			t.Fatalf("NewTracingExporter(%q) error = %v", name, err)
		}
		_ = exp.Shutdown(ctx)
	}

	if _, err := NewTracingExporter(ctx, "zipkin", nil); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestNewTracingExporter_OTLPRequiresEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), "otlp", nil); err == nil {
		t.Error("expected error without endpoint")
	}
}

func TestNewMetricsReader(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	for _, name := range []string{"stdout", "none", ""} {
		r, err := NewMetricsReader(ctx, name, &buf)
		if err != nil {
			t.Fatalf("NewMetricsReader(%q) error = %v", name, err)
		}
		_ = r.Shutdown(ctx)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	if _, err := NewMetricsReader(ctx, "otlp", nil); err == nil {
		t.Error("expected error without endpoint")
	}
	if _, err := NewMetricsReader(ctx, "statsd", nil); err == nil {
		t.Error("expected error for unknown exporter")
	}
}
