// Package db provides the embedded SQLite store backing the loom sync layer.
//
// The database runs in embedded mode (ncruces/go-sqlite3) with WAL enabled
// for concurrent reads. It holds the library's relational state (devices,
// locations, objects, file paths, tags, labels, EXIF metadata and their
// associations) together with the crdt_operation log that other devices
// consume to reconstruct that state.
//
// Local integer primary keys are storage-local and only ever used as
// pagination cursors. Cross-device identity is carried by pub_id columns
// (UUIDs, or the unique name for labels), which the page queries resolve
// for related rows via LEFT JOINs so that callers never see a relative's
// local key.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection with sync-specific functionality.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it will be created; call InitSchema to
// create the tables.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	database, err := db.Open(".loom/library.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
func Open(path string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL for concurrent reads. busy_timeout and foreign_keys are
	// per-connection, so they go in the DSN where every pooled
	// connection picks them up, not a one-off Exec that only reaches
	// whichever connection the pool hands out.
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		conn: conn,
		path: path,
	}, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// This creates the library tables and the crdt_operation log along with
// the indexes backfill pagination relies on. Idempotent - safe to call
// multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS device (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		name TEXT,
		os TEXT,
		hardware_model TEXT,
		timestamp TEXT,
		date_created TEXT,
		date_deleted TEXT
	);

	CREATE TABLE IF NOT EXISTS instance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		date_created TEXT
	);

	CREATE TABLE IF NOT EXISTS storage_statistics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		total_capacity INTEGER NOT NULL DEFAULT 0,
		available_capacity INTEGER NOT NULL DEFAULT 0,
		device_id INTEGER REFERENCES device(id)
	);

	CREATE TABLE IF NOT EXISTS tag (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		name TEXT,
		color TEXT,
		date_created TEXT,
		date_modified TEXT
	);

	CREATE TABLE IF NOT EXISTS label (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		date_created TEXT,
		date_modified TEXT
	);

	CREATE TABLE IF NOT EXISTS location (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		name TEXT,
		path TEXT,
		total_capacity INTEGER,
		available_capacity INTEGER,
		size_in_bytes INTEGER,
		is_archived INTEGER,
		generate_preview_media INTEGER,
		sync_preview_media INTEGER,
		hidden INTEGER,
		date_created TEXT,
		instance_id INTEGER REFERENCES instance(id),
		device_id INTEGER REFERENCES device(id)
	);

	CREATE TABLE IF NOT EXISTS object (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		kind INTEGER,
		hidden INTEGER,
		favorite INTEGER,
		important INTEGER,
		note TEXT,
		date_created TEXT,
		date_accessed TEXT,
		device_id INTEGER REFERENCES device(id)
	);

	CREATE TABLE IF NOT EXISTS exif_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		object_id INTEGER NOT NULL UNIQUE REFERENCES object(id) ON DELETE CASCADE,
		resolution TEXT,
		media_date TEXT,
		media_location TEXT,
		camera_data TEXT,
		artist TEXT,
		description TEXT,
		copyright TEXT,
		exif_version TEXT,
		epoch_time INTEGER,
		device_id INTEGER REFERENCES device(id)
	);

	CREATE TABLE IF NOT EXISTS file_path (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pub_id BLOB NOT NULL UNIQUE,
		is_dir INTEGER,
		cas_id TEXT,
		integrity_checksum TEXT,
		location_id INTEGER REFERENCES location(id),
		object_id INTEGER REFERENCES object(id),
		materialized_path TEXT,
		name TEXT,
		extension TEXT,
		hidden INTEGER,
		size_in_bytes INTEGER,
		inode INTEGER,
		date_created TEXT,
		date_modified TEXT,
		date_indexed TEXT,
		device_id INTEGER REFERENCES device(id)
	);

	CREATE TABLE IF NOT EXISTS tag_on_object (
		tag_id INTEGER NOT NULL REFERENCES tag(id) ON DELETE CASCADE,
		object_id INTEGER NOT NULL REFERENCES object(id) ON DELETE CASCADE,
		date_created TEXT,
		device_id INTEGER REFERENCES device(id),
		PRIMARY KEY (tag_id, object_id)
	);

	CREATE TABLE IF NOT EXISTS label_on_object (
		label_id INTEGER NOT NULL REFERENCES label(id) ON DELETE CASCADE,
		object_id INTEGER NOT NULL REFERENCES object(id) ON DELETE CASCADE,
		date_created TEXT NOT NULL,
		device_id INTEGER REFERENCES device(id),
		PRIMARY KEY (label_id, object_id)
	);

	CREATE TABLE IF NOT EXISTS crdt_operation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_pub_id BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		model TEXT NOT NULL,
		record_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		data TEXT NOT NULL
	);

	-- Indexes for backfill pagination and log lookups
	CREATE INDEX IF NOT EXISTS idx_location_device ON location(device_id, id);
	CREATE INDEX IF NOT EXISTS idx_object_device ON object(device_id, id);
	CREATE INDEX IF NOT EXISTS idx_exif_data_device ON exif_data(device_id, id);
	CREATE INDEX IF NOT EXISTS idx_file_path_device ON file_path(device_id, id);
	CREATE INDEX IF NOT EXISTS idx_file_path_location ON file_path(location_id);
	CREATE INDEX IF NOT EXISTS idx_crdt_operation_device ON crdt_operation(device_pub_id);
	CREATE INDEX IF NOT EXISTS idx_crdt_operation_model ON crdt_operation(model, kind);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Tx is a transaction handle for the backfill procedure.
//
// database/sql transactions are not safe for concurrent use, so all
// statement execution on a Tx is serialized by an internal mutex. This
// lets the backfill waves fan out their converters while keeping every
// page read and batch write on the single underlying transaction.
type Tx struct {
	tx *sql.Tx
	mu sync.Mutex
}

// BeginBackfill opens the long-lived backfill transaction.
//
// The busy timeout is raised for the duration of the transaction: the
// backfill may process the entire historical dataset and must not be
// killed by the default statement budget. The caller is expected to
// pass a context without a deadline.
func (db *DB) BeginBackfill(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin backfill transaction: %w", err)
	}

	// busy_timeout is per-connection, so it must run on the
	// transaction itself; issued through the pool it could land on a
	// connection other than the one the transaction checked out.
	// Effectively unbounded; the statement deadline discipline for
	// normal queries does not apply to backfill.
	if _, err := tx.ExecContext(ctx, "PRAGMA busy_timeout=2147483647"); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to raise busy timeout: %w", err)
	}

	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit; the
// resulting sql.ErrTxDone is swallowed so it can run in a defer.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// boolToNullInt64 converts a bool pointer to a nullable SQLite integer.
func boolToNullInt64(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{Valid: false}
	}
	var v int64
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// nullInt64ToBool converts a nullable SQLite integer to a bool pointer.
func nullInt64ToBool(ni sql.NullInt64) *bool {
	if !ni.Valid {
		return nil
	}
	b := ni.Int64 != 0
	return &b
}

// int64ToNull converts an int64 pointer to a nullable SQL integer.
func int64ToNull(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullToInt64 converts a nullable SQL integer to an int64 pointer.
func nullToInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// stringToNull converts a string pointer to a nullable SQL string.
func stringToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullToString converts a nullable SQL string to a string pointer.
func nullToString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// blobToUUID parses a 16-byte pub_id column value.
func blobToUUID(b []byte) (uuid.UUID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid pub_id blob: %w", err)
	}
	return id, nil
}

// nullBlobToUUID parses an optional joined pub_id column value.
// A NULL (missing relation) yields a nil pointer.
func nullBlobToUUID(b []byte) (*uuid.UUID, error) {
	if b == nil {
		return nil, nil
	}
	id, err := blobToUUID(b)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
