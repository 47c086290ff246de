package sync

import "errors"

// Common errors returned by sync operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, sync.ErrDeviceNotFound) {
//	    // Library was never initialized on this device
//	}
var (
	// ErrDeviceNotFound is returned when the local device has no row in
	// the device table. Backfill cannot run without it; this is a hard
	// precondition failure, surfaced before any table is touched.
	ErrDeviceNotFound = errors.New("local device not found in library database")

	// ErrEncodeOperation is returned when an operation's record id or
	// entry set cannot be serialized for storage. Indicates malformed
	// data rather than a transient condition.
	ErrEncodeOperation = errors.New("failed to encode operation record")

	// ErrBackfillInProgress is returned by TryBackfill when another
	// backfill already holds the manager's rebuild lock.
	ErrBackfillInProgress = errors.New("backfill already in progress")
)

// IsFatal returns true if the error indicates a state that re-invoking
// backfill cannot fix. Storage read/write failures are transient by
// comparison: the wipe-then-rebuild design makes retries safe.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// No device row means the library was never set up here
	if errors.Is(err, ErrDeviceNotFound) {
		return true
	}

	// Malformed stored data won't improve on retry
	if errors.Is(err, ErrEncodeOperation) {
		return true
	}

	return false
}
