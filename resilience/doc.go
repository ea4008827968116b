// Package resilience provides the guards wrapped around tool executions.
//
// Three patterns are used by the engine:
//
//   - Bulkhead: bounds how many speculative executions run at once.
//
//   - Circuit Breaker: stops speculating on a tool whose executions keep
//     failing, one breaker per tool via BreakerSet.
//
//   - Timeout: bounds the wall-clock time of a single call.
//
// # Usage
//
//	breakers := resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
//	    MaxFailures:  3,
//	    ResetTimeout: time.Minute,
//	})
//
//	guard := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithCircuitBreaker(breakers.For("git_diff")),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := guard.Execute(ctx, func(ctx context.Context) error {
//	    return runTool(ctx)
//	})
package resilience
