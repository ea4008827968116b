package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/toolbatch/tool"
)

// Middleware wraps tool execution with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe tool.Executor.
//   - Context: propagates context through tracing spans. Call metadata
//     attached with WithCallMeta is picked up for span and log attributes.
//   - Errors: results and errors from the wrapped executor are recorded and
//     returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the metrics recorder used by the middleware.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps an executor with tracing, metrics, and logging.
func (m *Middleware) Wrap(next tool.Executor) tool.Executor {
	return tool.ExecutorFunc(func(ctx context.Context, name string, args tool.Args, tc *tool.Context) (tool.Result, error) {
		meta := CallMetaFrom(ctx, name)
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		res, err := next.Execute(ctx, name, args, tc)
		duration := time.Since(start)

		failure := res.Error
		if err != nil {
			failure = err.Error()
		} else if !res.Success && failure == "" {
			failure = "tool reported failure"
		}

		m.tracer.EndSpan(span, failure)
		m.metrics.RecordCall(ctx, meta, "executor", duration, failure == "")

		callLogger := m.logger.WithCall(meta)
		fields := []Field{F("duration_ms", float64(duration.Milliseconds()))}
		if failure != "" {
			fields = append(fields, F("error", failure))
			callLogger.Warn(ctx, "tool execution failed", fields...)
		} else {
			callLogger.Debug(ctx, "tool execution completed", fields...)
		}

		return res, err
	})
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
