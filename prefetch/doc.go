// Package prefetch speculatively executes tool calls the agent is likely to
// request next.
//
// Predictions come from two sources: an ordered registry of static rules
// (a read_file is usually followed by a file_info on the same path) and a
// short history of recently observed calls (anything seen repeatedly within
// a window is likely to be asked for again).
//
// Prefetching is best effort. A predicted call runs in the background and
// is stored as a pending [Task]; the batch runner claims it by exact key. A
// failed, panicking or rejected prefetch resolves to nil and the real call
// simply executes normally.
//
// Background executions share a bulkhead that caps in-flight work, and each
// target tool has its own circuit breaker so a tool that keeps failing stops
// being speculated on.
package prefetch
