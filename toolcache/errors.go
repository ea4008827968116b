package toolcache

import "errors"

// Sentinel errors for snapshot handling.
var (
	ErrSnapshotVersion = errors.New("toolcache: snapshot version mismatch")
	ErrSnapshotExpired = errors.New("toolcache: snapshot is older than max age")
)
