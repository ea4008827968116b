// Package toolcache binds the generic cache store to tool calls.
//
// It adds the tool-aware behaviour that a plain key/value store cannot know
// about: file tools are checked for staleness against the live modification
// time of the file they read, web tools get a short default TTL, and writes
// invalidate every entry that may reference the paths they touched.
//
// The package also snapshots the cache to a JSON file so a later process can
// start warm.
//
// # Core Components
//
//   - [Cache]: tool result cache with mtime staleness checks
//   - [Invalidator]: maps mutating calls and shell commands to invalidations
//   - [Snapshotter]: saves and restores the cache as JSON
//
// # Thread Safety
//
// All types are safe for concurrent use.
package toolcache
