// Package batch executes the tool calls requested in a single model turn.
//
// Each call is classified as parallel-safe, sequential or interactive by the
// static membership of its tool name in a [Classifier]. [Runner.Run] then:
//
//  1. parses every call's JSON arguments; a malformed call fails on its own
//  2. runs the parallel-safe calls through a bounded worker pool
//  3. runs the sequential calls one at a time in input order
//  4. runs the interactive calls one at a time in input order
//
// Results are returned in input order. Before invoking the executor a call
// may be answered from the tool cache or from a pending prefetch. After it
// completes, its result is cached when allowed, writes invalidate affected
// cache entries, and the call is fed to the prefetcher.
//
// Run never returns an error: every failure is reported as a failed result
// for that one call.
package batch
