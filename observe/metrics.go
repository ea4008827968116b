package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Prefetch events reported through Metrics.RecordPrefetch.
const (
	PrefetchLaunched = "launched"
	PrefetchClaimed  = "claimed"
	PrefetchFailed   = "failed"
)

// Metrics records tool call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records a completed call with its duration, outcome and
	// the source that produced the result (executor, cache, prefetch).
	RecordCall(ctx context.Context, meta CallMeta, source string, duration time.Duration, success bool)

	// RecordCacheLookup records a tool cache lookup.
	RecordCacheLookup(ctx context.Context, toolName string, hit bool)

	// RecordPrefetch records a prefetch lifecycle event.
	RecordPrefetch(ctx context.Context, toolName string, event string)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheLookups metric.Int64Counter
	prefetches   metric.Int64Counter
}

// NewMetrics creates Metrics backed by meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"tool.call.total",
		metric.WithDescription("Total number of tool calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"tool.call.errors",
		metric.WithDescription("Total number of failed tool calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"tool.call.duration_ms",
		metric.WithDescription("Tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"tool.cache.lookups",
		metric.WithDescription("Tool cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	prefetches, err := meter.Int64Counter(
		"tool.prefetch.events",
		metric.WithDescription("Speculative prefetch lifecycle events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheLookups: cacheLookups,
		prefetches:   prefetches,
	}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, source string, duration time.Duration, success bool) {
	attrs := append(meta.attributes(), attribute.String("tool.source", source))
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if !success {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, toolName string, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.Bool("cache.hit", hit),
	))
}

func (m *metricsImpl) RecordPrefetch(ctx context.Context, toolName string, event string) {
	m.prefetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", toolName),
		attribute.String("prefetch.event", event),
	))
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordCall(context.Context, CallMeta, string, time.Duration, bool) {}
func (nopMetrics) RecordCacheLookup(context.Context, string, bool)                   {}
func (nopMetrics) RecordPrefetch(context.Context, string, string)                    {}
