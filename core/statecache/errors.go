package statecache

import "errors"

var (
	// ErrNotFound is returned when no value is stored under the requested key.
	ErrNotFound = errors.New("statecache: key not found")
	// ErrVersionMismatch is returned when a record carries a schema version
	// other than the current one.
	ErrVersionMismatch = errors.New("statecache: record schema version mismatch")
	// ErrCorruptRecord is returned when a persisted record cannot be decoded.
	ErrCorruptRecord = errors.New("statecache: corrupt record")
)
