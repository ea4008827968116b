// Package observe provides observability for tool calls: OpenTelemetry
// tracing and metrics, and a zap-backed structured logger.
//
// It is a pure instrumentation library. The batch runner wraps its executor
// with Middleware and reports cache and prefetch outcomes through Metrics.
package observe
