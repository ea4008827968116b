// Package tool defines the contract between the batch engine and the opaque
// per-tool executor: argument maps, results, the tool context and the
// well-known tool name sets used for caching, invalidation and scheduling.
package tool
