// Package sync generates and maintains the CRDT operation log that lets
// loom libraries replicate across devices.
//
// Overview
//
// Every synchronizable row in the library database (devices, locations,
// objects, file paths, tags, labels, EXIF metadata and their
// associations) is mirrored as an immutable create operation in the
// crdt_operation log. Remote devices replay the log to reconstruct
// entity state; this package owns the local device's slice of it.
//
// Architecture
//
// The central type is the Manager, which carries the local device
// identity, the hybrid logical clock, and the backfill lock:
//
//	Library DB (SQLite)
//	     ├── device, location, object, file_path, ...
//	     │                 ↓  (cursor-paginated reads)
//	     │              Manager
//	     │                 ↓  (shared-create / relation-create)
//	     └── crdt_operation log
//
// Backfill
//
// Before a library can sync, Backfill converts the full relational
// snapshot into operations: it wipes the local device's log, then
// re-materializes every table in two dependency-ordered waves inside
// one long transaction. The step is idempotent - re-running it always
// regenerates the local device's history from the current snapshot.
//
// Usage
//
// Basic usage:
//
//	database, err := db.Open(".loom/library.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//
//	if err := database.InitSchema(); err != nil {
//	    return err
//	}
//
//	manager := sync.NewManager(database, devicePubID, nil)
//	if err := manager.Backfill(ctx); err != nil {
//	    return err
//	}
//
// Error Handling
//
// Backfill is all-or-nothing: any error from any table converter aborts
// the enclosing transaction, and the pre-backfill log is restored. The
// caller may simply re-invoke Backfill; the wipe-then-rebuild design
// makes retries safe.
//
// Concurrency
//
// Backfill is not re-entrant. The Manager's lock serializes repeated
// attempts, and no other sync write path may append local-device
// operations while a backfill is in flight. Within a run, each wave
// fans out its table converters concurrently; the shared transaction
// serializes the actual statements.
package sync
