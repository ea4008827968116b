// Package cache provides a bounded in-memory key/value store for tool results.
//
// Store keys are derived from a tool name and its canonical JSON arguments.
// Entries expire lazily after their TTL and are evicted least-recently-used
// first whenever the byte budget or the entry budget would be exceeded.
// The package has no knowledge of tool semantics; see package toolcache.
package cache
