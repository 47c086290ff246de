package sync

import (
	"log"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/loomdb/loom/internal/sync/db"
)

// defaultPageSize bounds the number of rows fetched per page for the
// large tables (location, object, exif_data). Tag, label, and file_path
// scans are unbounded; see backfill.go.
const defaultPageSize = 1000

// Progress phases reported to a ProgressFunc.
const (
	// ProgressStarted fires once, after the local log has been cleared
	// and before any rows are read.
	ProgressStarted = "started"

	// ProgressTable fires after each persisted page, carrying the model
	// name and the cumulative row count for that model.
	ProgressTable = "table"

	// ProgressFinished fires once, after the transaction commits.
	ProgressFinished = "finished"
)

// ProgressEvent describes a step of a running backfill.
type ProgressEvent struct {
	Phase string
	Model string
	Rows  int64
}

// ProgressFunc receives progress events during Backfill. It is called
// synchronously from worker goroutines and must be safe for concurrent
// use. Events for different models may interleave.
type ProgressFunc func(ProgressEvent)

// Manager owns the local device's view of the operation log. It hands
// out timestamps from a single hybrid logical clock and serializes
// whole-log rebuilds so at most one backfill runs at a time.
type Manager struct {
	db          *db.DB
	devicePubID uuid.UUID
	clock       *Clock
	logger      *log.Logger

	backfillMu stdsync.Mutex
	pageSize   int

	progressMu stdsync.Mutex
	progress   ProgressFunc
}

// NewManager creates a Manager for the device identified by devicePubID.
// logger may be nil, in which case a default logger is used.
func NewManager(database *db.DB, devicePubID uuid.UUID, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[sync] ", log.LstdFlags)
	}
	return &Manager{
		db:          database,
		devicePubID: devicePubID,
		clock:       NewClock(),
		logger:      logger,
		pageSize:    defaultPageSize,
	}
}

// DevicePubID returns the identity of the local device.
func (m *Manager) DevicePubID() uuid.UUID { return m.devicePubID }

// SetProgress installs fn as the progress callback for subsequent
// backfills. A nil fn disables progress reporting.
func (m *Manager) SetProgress(fn ProgressFunc) {
	m.progressMu.Lock()
	m.progress = fn
	m.progressMu.Unlock()
}

func (m *Manager) report(ev ProgressEvent) {
	m.progressMu.Lock()
	fn := m.progress
	m.progressMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// SharedCreate builds a creation operation for a standalone entity,
// stamped with the next clock tick.
func (m *Manager) SharedCreate(id RecordID, entries []Entry) Operation {
	return Operation{
		DevicePubID: m.devicePubID,
		Timestamp:   m.clock.Now(),
		Kind:        KindSharedCreate,
		RecordID:    id,
		Entries:     entries,
	}
}

// RelationCreate builds a creation operation for a relation membership,
// stamped with the next clock tick.
func (m *Manager) RelationCreate(id RecordID, entries []Entry) Operation {
	return Operation{
		DevicePubID: m.devicePubID,
		Timestamp:   m.clock.Now(),
		Kind:        KindRelationCreate,
		RecordID:    id,
		Entries:     entries,
	}
}
