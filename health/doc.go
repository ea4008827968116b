// Package health reports the condition of the engine's components.
//
// A Checker inspects one component and returns a Result whose Status is
// Healthy, Degraded or Unhealthy. An Aggregator runs a set of checkers under
// one timeout and folds them into a Report whose status is the worst of its
// components.
//
// Checkers provided here:
//
//   - CacheChecker: degraded when the byte budget is nearly used up or when
//     evictions are frequent relative to lookups.
//   - PrefetchChecker: degraded when prefetching is disabled or its pending
//     queue is full.
//   - PersistenceChecker: unhealthy when the snapshot directory rejects writes.
//
// Usage:
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.NewCacheChecker(store, health.CacheCheckerConfig{}))
//	agg.Register("prefetch", health.NewPrefetchChecker(prefetcher))
//
//	report := agg.CheckAll(ctx)
//	if report.Status != health.StatusHealthy {
//	    ...
//	}
package health
