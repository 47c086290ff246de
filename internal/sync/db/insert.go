package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Insert helpers used by the importer paths and by tests. The sync layer
// itself never writes library rows; it only reads them and appends to
// the crdt_operation log. Each helper fills the row's local key on
// success.

// InsertDevice inserts a device row.
func (db *DB) InsertDevice(ctx context.Context, row *DeviceRow) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO device (pub_id, name, os, hardware_model, timestamp, date_created, date_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.PubID[:], stringToNull(row.Name), stringToNull(row.OS), stringToNull(row.HardwareModel),
		timeToNullString(row.Timestamp), timeToNullString(row.DateCreated), timeToNullString(row.DateDeleted))
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertInstance inserts an instance row and returns its local key.
func (db *DB) InsertInstance(ctx context.Context, pubID uuid.UUID) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `INSERT INTO instance (pub_id) VALUES (?)`, pubID[:])
	if err != nil {
		return 0, fmt.Errorf("failed to insert instance: %w", err)
	}
	return res.LastInsertId()
}

// InsertStorageStatistics inserts the storage snapshot for a device.
func (db *DB) InsertStorageStatistics(ctx context.Context, row *StorageStatisticsRow, deviceID *int64) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO storage_statistics (pub_id, total_capacity, available_capacity, device_id)
		VALUES (?, ?, ?, ?)
	`, row.PubID[:], row.TotalCapacity, row.AvailableCapacity, int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert storage statistics: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertTag inserts a tag row.
func (db *DB) InsertTag(ctx context.Context, row *TagRow) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO tag (pub_id, name, color, date_created, date_modified)
		VALUES (?, ?, ?, ?, ?)
	`, row.PubID[:], stringToNull(row.Name), stringToNull(row.Color),
		timeToNullString(row.DateCreated), timeToNullString(row.DateModified))
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertLabel inserts a label row.
func (db *DB) InsertLabel(ctx context.Context, row *LabelRow) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO label (name, date_created, date_modified)
		VALUES (?, ?, ?)
	`, row.Name, timeToNullString(row.DateCreated), timeToNullString(row.DateModified))
	if err != nil {
		return fmt.Errorf("failed to insert label %s: %w", row.Name, err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertLocation inserts a location row. instanceID and deviceID are
// local foreign keys; nil leaves the relation unset.
func (db *DB) InsertLocation(ctx context.Context, row *LocationRow, instanceID, deviceID *int64) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO location (pub_id, name, path, total_capacity, available_capacity, size_in_bytes,
			is_archived, generate_preview_media, sync_preview_media, hidden, date_created,
			instance_id, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.PubID[:], stringToNull(row.Name), stringToNull(row.Path),
		int64ToNull(row.TotalCapacity), int64ToNull(row.AvailableCapacity), int64ToNull(row.SizeInBytes),
		boolToNullInt64(row.IsArchived), boolToNullInt64(row.GeneratePreviewMedia),
		boolToNullInt64(row.SyncPreviewMedia), boolToNullInt64(row.Hidden),
		timeToNullString(row.DateCreated), int64ToNull(instanceID), int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertObject inserts an object row.
func (db *DB) InsertObject(ctx context.Context, row *ObjectRow, deviceID *int64) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO object (pub_id, kind, hidden, favorite, important, note,
			date_created, date_accessed, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.PubID[:], int64ToNull(row.Kind), boolToNullInt64(row.Hidden),
		boolToNullInt64(row.Favorite), boolToNullInt64(row.Important), stringToNull(row.Note),
		timeToNullString(row.DateCreated), timeToNullString(row.DateAccessed), int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert object: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertExifData inserts an exif_data row for the given object.
func (db *DB) InsertExifData(ctx context.Context, row *ExifDataRow, objectID int64, deviceID *int64) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO exif_data (object_id, resolution, media_date, media_location, camera_data,
			artist, description, copyright, exif_version, epoch_time, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, objectID, stringToNull(row.Resolution), stringToNull(row.MediaDate),
		stringToNull(row.MediaLocation), stringToNull(row.CameraData), stringToNull(row.Artist),
		stringToNull(row.Description), stringToNull(row.Copyright), stringToNull(row.ExifVersion),
		int64ToNull(row.EpochTime), int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert exif_data: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertFilePath inserts a file_path row.
func (db *DB) InsertFilePath(ctx context.Context, row *FilePathRow, locationID, objectID, deviceID *int64) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO file_path (pub_id, is_dir, cas_id, integrity_checksum, location_id, object_id,
			materialized_path, name, extension, hidden, size_in_bytes, inode,
			date_created, date_modified, date_indexed, device_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.PubID[:], boolToNullInt64(row.IsDir), stringToNull(row.CasID), stringToNull(row.IntegrityChecksum),
		int64ToNull(locationID), int64ToNull(objectID),
		stringToNull(row.MaterializedPath), stringToNull(row.Name), stringToNull(row.Extension),
		boolToNullInt64(row.Hidden), int64ToNull(row.SizeInBytes), int64ToNull(row.Inode),
		timeToNullString(row.DateCreated), timeToNullString(row.DateModified),
		timeToNullString(row.DateIndexed), int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert file_path: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}

// InsertTagOnObject inserts a tag membership row.
func (db *DB) InsertTagOnObject(ctx context.Context, row *TagOnObjectRow, deviceID *int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tag_on_object (tag_id, object_id, date_created, device_id)
		VALUES (?, ?, ?, ?)
	`, row.TagID, row.ObjectID, timeToNullString(row.DateCreated), int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert tag_on_object %d--%d: %w", row.TagID, row.ObjectID, err)
	}
	return nil
}

// InsertLabelOnObject inserts a label membership row.
func (db *DB) InsertLabelOnObject(ctx context.Context, row *LabelOnObjectRow, deviceID *int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO label_on_object (label_id, object_id, date_created, device_id)
		VALUES (?, ?, ?, ?)
	`, row.LabelID, row.ObjectID, timeToNullString(&row.DateCreated), int64ToNull(deviceID))
	if err != nil {
		return fmt.Errorf("failed to insert label_on_object %d--%d: %w", row.LabelID, row.ObjectID, err)
	}
	return nil
}

// InsertOperation inserts a single pre-serialized operation record
// outside a backfill transaction. Used for seeding and tests.
func (db *DB) InsertOperation(ctx context.Context, row *OperationRow) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO crdt_operation (device_pub_id, timestamp, model, record_id, kind, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.DevicePubID[:], row.Timestamp, row.Model, row.RecordID, row.Kind, row.Data)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	row.ID, err = res.LastInsertId()
	return err
}
