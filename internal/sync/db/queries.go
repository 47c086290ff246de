package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DeviceByPubID looks up a device row by its sync identity.
// Returns (nil, nil) if no such device exists.
func (db *DB) DeviceByPubID(ctx context.Context, pubID uuid.UUID) (*DeviceRow, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, pub_id, name, os, hardware_model, timestamp, date_created, date_deleted
		FROM device
		WHERE pub_id = ?
	`, pubID[:])
	return scanDevice(row)
}

// DeviceByPubID is the transaction-scoped variant of DB.DeviceByPubID.
func (t *Tx) DeviceByPubID(ctx context.Context, pubID uuid.UUID) (*DeviceRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, pub_id, name, os, hardware_model, timestamp, date_created, date_deleted
		FROM device
		WHERE pub_id = ?
	`, pubID[:])
	return scanDevice(row)
}

func scanDevice(row *sql.Row) (*DeviceRow, error) {
	var d DeviceRow
	var pubID []byte
	var name, osName, hardwareModel, timestamp, dateCreated, dateDeleted sql.NullString

	err := row.Scan(&d.ID, &pubID, &name, &osName, &hardwareModel, &timestamp, &dateCreated, &dateDeleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	if d.PubID, err = blobToUUID(pubID); err != nil {
		return nil, err
	}
	d.Name = nullToString(name)
	d.OS = nullToString(osName)
	d.HardwareModel = nullToString(hardwareModel)
	d.Timestamp = nullStringToTime(timestamp)
	d.DateCreated = nullStringToTime(dateCreated)
	d.DateDeleted = nullStringToTime(dateDeleted)
	return &d, nil
}

// StorageStatisticsForDevice fetches the storage snapshot for a device.
// This is a singleton lookup, not a paginated table: at most one row is
// expected per device. Returns (nil, nil) if the device has none.
func (t *Tx) StorageStatisticsForDevice(ctx context.Context, deviceID int64) (*StorageStatisticsRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := t.tx.QueryRowContext(ctx, `
		SELECT s.id, s.pub_id, s.total_capacity, s.available_capacity, d.pub_id
		FROM storage_statistics s
		LEFT JOIN device d ON d.id = s.device_id
		WHERE s.device_id = ?
	`, deviceID)

	var s StorageStatisticsRow
	var pubID, devicePubID []byte

	err := row.Scan(&s.ID, &pubID, &s.TotalCapacity, &s.AvailableCapacity, &devicePubID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan storage statistics: %w", err)
	}

	if s.PubID, err = blobToUUID(pubID); err != nil {
		return nil, err
	}
	if s.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
		return nil, err
	}
	return &s, nil
}

// TagPage fetches tags with local key strictly greater than cursor, in
// ascending key order. Tags are expected to be few, so no page bound is
// applied.
func (t *Tx) TagPage(ctx context.Context, cursor int64) ([]TagRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, pub_id, name, color, date_created, date_modified
		FROM tag
		WHERE id > ?
		ORDER BY id ASC
	`, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag page: %w", err)
	}
	defer rows.Close()

	var page []TagRow
	for rows.Next() {
		var r TagRow
		var pubID []byte
		var name, color, dateCreated, dateModified sql.NullString

		if err := rows.Scan(&r.ID, &pubID, &name, &color, &dateCreated, &dateModified); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		if r.PubID, err = blobToUUID(pubID); err != nil {
			return nil, err
		}
		r.Name = nullToString(name)
		r.Color = nullToString(color)
		r.DateCreated = nullStringToTime(dateCreated)
		r.DateModified = nullStringToTime(dateModified)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return page, nil
}

// LabelPage fetches labels with local key strictly greater than cursor,
// in ascending key order. Labels are expected to be few, so no page
// bound is applied.
func (t *Tx) LabelPage(ctx context.Context, cursor int64) ([]LabelRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, name, date_created, date_modified
		FROM label
		WHERE id > ?
		ORDER BY id ASC
	`, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to query label page: %w", err)
	}
	defer rows.Close()

	var page []LabelRow
	for rows.Next() {
		var r LabelRow
		var dateCreated, dateModified sql.NullString

		if err := rows.Scan(&r.ID, &r.Name, &dateCreated, &dateModified); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		r.DateCreated = nullStringToTime(dateCreated)
		r.DateModified = nullStringToTime(dateModified)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", err)
	}
	return page, nil
}

// LocationPage fetches up to limit locations owned by the device with
// local key strictly greater than cursor, ascending, with the owning
// instance and device resolved to pub ids. limit <= 0 means unbounded.
func (t *Tx) LocationPage(ctx context.Context, deviceID, cursor int64, limit int) ([]LocationRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	query := `
		SELECT l.id, l.pub_id, l.name, l.path, l.total_capacity, l.available_capacity,
		       l.size_in_bytes, l.is_archived, l.generate_preview_media, l.sync_preview_media,
		       l.hidden, l.date_created, i.pub_id, d.pub_id
		FROM location l
		LEFT JOIN instance i ON i.id = l.instance_id
		LEFT JOIN device d ON d.id = l.device_id
		WHERE l.id > ? AND l.device_id = ?
		ORDER BY l.id ASC
	`
	args := []interface{}{cursor, deviceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query location page: %w", err)
	}
	defer rows.Close()

	var page []LocationRow
	for rows.Next() {
		var r LocationRow
		var pubID, instancePubID, devicePubID []byte
		var name, path, dateCreated sql.NullString
		var totalCapacity, availableCapacity, sizeInBytes sql.NullInt64
		var isArchived, generatePreviewMedia, syncPreviewMedia, hidden sql.NullInt64

		if err := rows.Scan(&r.ID, &pubID, &name, &path, &totalCapacity, &availableCapacity,
			&sizeInBytes, &isArchived, &generatePreviewMedia, &syncPreviewMedia,
			&hidden, &dateCreated, &instancePubID, &devicePubID); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		if r.PubID, err = blobToUUID(pubID); err != nil {
			return nil, err
		}
		if r.InstancePubID, err = nullBlobToUUID(instancePubID); err != nil {
			return nil, err
		}
		if r.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
			return nil, err
		}
		r.Name = nullToString(name)
		r.Path = nullToString(path)
		r.TotalCapacity = nullToInt64(totalCapacity)
		r.AvailableCapacity = nullToInt64(availableCapacity)
		r.SizeInBytes = nullToInt64(sizeInBytes)
		r.IsArchived = nullInt64ToBool(isArchived)
		r.GeneratePreviewMedia = nullInt64ToBool(generatePreviewMedia)
		r.SyncPreviewMedia = nullInt64ToBool(syncPreviewMedia)
		r.Hidden = nullInt64ToBool(hidden)
		r.DateCreated = nullStringToTime(dateCreated)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}
	return page, nil
}

// ObjectPage fetches up to limit objects owned by the device with local
// key strictly greater than cursor, ascending. limit <= 0 means unbounded.
func (t *Tx) ObjectPage(ctx context.Context, deviceID, cursor int64, limit int) ([]ObjectRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	query := `
		SELECT o.id, o.pub_id, o.kind, o.hidden, o.favorite, o.important,
		       o.note, o.date_created, o.date_accessed, d.pub_id
		FROM object o
		LEFT JOIN device d ON d.id = o.device_id
		WHERE o.id > ? AND o.device_id = ?
		ORDER BY o.id ASC
	`
	args := []interface{}{cursor, deviceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query object page: %w", err)
	}
	defer rows.Close()

	var page []ObjectRow
	for rows.Next() {
		var r ObjectRow
		var pubID, devicePubID []byte
		var kind sql.NullInt64
		var hidden, favorite, important sql.NullInt64
		var note, dateCreated, dateAccessed sql.NullString

		if err := rows.Scan(&r.ID, &pubID, &kind, &hidden, &favorite, &important,
			&note, &dateCreated, &dateAccessed, &devicePubID); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		if r.PubID, err = blobToUUID(pubID); err != nil {
			return nil, err
		}
		if r.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
			return nil, err
		}
		r.Kind = nullToInt64(kind)
		r.Hidden = nullInt64ToBool(hidden)
		r.Favorite = nullInt64ToBool(favorite)
		r.Important = nullInt64ToBool(important)
		r.Note = nullToString(note)
		r.DateCreated = nullStringToTime(dateCreated)
		r.DateAccessed = nullStringToTime(dateAccessed)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}
	return page, nil
}

// ExifDataPage fetches up to limit EXIF rows owned by the device with
// local key strictly greater than cursor, ascending. The owning object's
// pub id is mandatory: EXIF data derives its sync identity from it.
// limit <= 0 means unbounded.
func (t *Tx) ExifDataPage(ctx context.Context, deviceID, cursor int64, limit int) ([]ExifDataRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	query := `
		SELECT e.id, o.pub_id, e.resolution, e.media_date, e.media_location, e.camera_data,
		       e.artist, e.description, e.copyright, e.exif_version, e.epoch_time, d.pub_id
		FROM exif_data e
		JOIN object o ON o.id = e.object_id
		LEFT JOIN device d ON d.id = e.device_id
		WHERE e.id > ? AND e.device_id = ?
		ORDER BY e.id ASC
	`
	args := []interface{}{cursor, deviceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exif_data page: %w", err)
	}
	defer rows.Close()

	var page []ExifDataRow
	for rows.Next() {
		var r ExifDataRow
		var objectPubID, devicePubID []byte
		var resolution, mediaDate, mediaLocation, cameraData sql.NullString
		var artist, description, copyright, exifVersion sql.NullString
		var epochTime sql.NullInt64

		if err := rows.Scan(&r.ID, &objectPubID, &resolution, &mediaDate, &mediaLocation,
			&cameraData, &artist, &description, &copyright, &exifVersion,
			&epochTime, &devicePubID); err != nil {
			return nil, fmt.Errorf("failed to scan exif_data: %w", err)
		}
		if r.ObjectPubID, err = blobToUUID(objectPubID); err != nil {
			return nil, err
		}
		if r.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
			return nil, err
		}
		r.Resolution = nullToString(resolution)
		r.MediaDate = nullToString(mediaDate)
		r.MediaLocation = nullToString(mediaLocation)
		r.CameraData = nullToString(cameraData)
		r.Artist = nullToString(artist)
		r.Description = nullToString(description)
		r.Copyright = nullToString(copyright)
		r.ExifVersion = nullToString(exifVersion)
		r.EpochTime = nullToInt64(epochTime)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exif_data: %w", err)
	}
	return page, nil
}

// FilePathPage fetches file paths owned by the device with local key
// strictly greater than cursor, ascending, with location, object and
// device resolved to pub ids.
//
// No page bound is applied here, unlike location/object/exif_data which
// cap at the backfill page size. On very large directory trees this can
// pull the whole table into memory in one page.
func (t *Tx) FilePathPage(ctx context.Context, deviceID, cursor int64) ([]FilePathRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.tx.QueryContext(ctx, `
		SELECT f.id, f.pub_id, f.is_dir, f.cas_id, f.integrity_checksum,
		       l.pub_id, o.pub_id, f.materialized_path, f.name, f.extension,
		       f.hidden, f.size_in_bytes, f.inode,
		       f.date_created, f.date_modified, f.date_indexed, d.pub_id
		FROM file_path f
		LEFT JOIN location l ON l.id = f.location_id
		LEFT JOIN object o ON o.id = f.object_id
		LEFT JOIN device d ON d.id = f.device_id
		WHERE f.id > ? AND f.device_id = ?
		ORDER BY f.id ASC
	`, cursor, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file_path page: %w", err)
	}
	defer rows.Close()

	var page []FilePathRow
	for rows.Next() {
		var r FilePathRow
		var pubID, locationPubID, objectPubID, devicePubID []byte
		var isDir, hidden sql.NullInt64
		var casID, integrityChecksum, materializedPath, name, extension sql.NullString
		var sizeInBytes, inode sql.NullInt64
		var dateCreated, dateModified, dateIndexed sql.NullString

		if err := rows.Scan(&r.ID, &pubID, &isDir, &casID, &integrityChecksum,
			&locationPubID, &objectPubID, &materializedPath, &name, &extension,
			&hidden, &sizeInBytes, &inode,
			&dateCreated, &dateModified, &dateIndexed, &devicePubID); err != nil {
			return nil, fmt.Errorf("failed to scan file_path: %w", err)
		}
		if r.PubID, err = blobToUUID(pubID); err != nil {
			return nil, err
		}
		if r.LocationPubID, err = nullBlobToUUID(locationPubID); err != nil {
			return nil, err
		}
		if r.ObjectPubID, err = nullBlobToUUID(objectPubID); err != nil {
			return nil, err
		}
		if r.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
			return nil, err
		}
		r.IsDir = nullInt64ToBool(isDir)
		r.CasID = nullToString(casID)
		r.IntegrityChecksum = nullToString(integrityChecksum)
		r.MaterializedPath = nullToString(materializedPath)
		r.Name = nullToString(name)
		r.Extension = nullToString(extension)
		r.Hidden = nullInt64ToBool(hidden)
		r.SizeInBytes = nullToInt64(sizeInBytes)
		r.Inode = nullToInt64(inode)
		r.DateCreated = nullStringToTime(dateCreated)
		r.DateModified = nullStringToTime(dateModified)
		r.DateIndexed = nullStringToTime(dateIndexed)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file_paths: %w", err)
	}
	return page, nil
}

// TagOnObjectPage fetches tag memberships owned by the device with
// composite key (tag_id, object_id) strictly greater than the cursor
// pair under lexicographic order, ascending by tag_id then object_id.
// Uniqueness is defined over the pair, so lexicographic ascent is what
// guarantees forward progress when a tag_id repeats across pages.
func (t *Tx) TagOnObjectPage(ctx context.Context, deviceID, tagCursor, objectCursor int64) ([]TagOnObjectRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.tx.QueryContext(ctx, `
		SELECT t_o.tag_id, t_o.object_id, t.pub_id, o.pub_id, t_o.date_created, d.pub_id
		FROM tag_on_object t_o
		JOIN tag t ON t.id = t_o.tag_id
		JOIN object o ON o.id = t_o.object_id
		LEFT JOIN device d ON d.id = t_o.device_id
		WHERE t_o.device_id = ?
		  AND (t_o.tag_id > ? OR (t_o.tag_id = ? AND t_o.object_id > ?))
		ORDER BY t_o.tag_id ASC, t_o.object_id ASC
	`, deviceID, tagCursor, tagCursor, objectCursor)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag_on_object page: %w", err)
	}
	defer rows.Close()

	var page []TagOnObjectRow
	for rows.Next() {
		var r TagOnObjectRow
		var tagPubID, objectPubID, devicePubID []byte
		var dateCreated sql.NullString

		if err := rows.Scan(&r.TagID, &r.ObjectID, &tagPubID, &objectPubID, &dateCreated, &devicePubID); err != nil {
			return nil, fmt.Errorf("failed to scan tag_on_object: %w", err)
		}
		if r.TagPubID, err = blobToUUID(tagPubID); err != nil {
			return nil, err
		}
		if r.ObjectPubID, err = blobToUUID(objectPubID); err != nil {
			return nil, err
		}
		if r.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
			return nil, err
		}
		r.DateCreated = nullStringToTime(dateCreated)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag_on_object: %w", err)
	}
	return page, nil
}

// LabelOnObjectPage fetches label memberships owned by the device with
// composite key (label_id, object_id) strictly greater than the cursor
// pair under lexicographic order, ascending by label_id then object_id.
func (t *Tx) LabelOnObjectPage(ctx context.Context, deviceID, labelCursor, objectCursor int64) ([]LabelOnObjectRow, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.tx.QueryContext(ctx, `
		SELECT l_o.label_id, l_o.object_id, l.name, o.pub_id, l_o.date_created, d.pub_id
		FROM label_on_object l_o
		JOIN label l ON l.id = l_o.label_id
		JOIN object o ON o.id = l_o.object_id
		LEFT JOIN device d ON d.id = l_o.device_id
		WHERE l_o.device_id = ?
		  AND (l_o.label_id > ? OR (l_o.label_id = ? AND l_o.object_id > ?))
		ORDER BY l_o.label_id ASC, l_o.object_id ASC
	`, deviceID, labelCursor, labelCursor, objectCursor)
	if err != nil {
		return nil, fmt.Errorf("failed to query label_on_object page: %w", err)
	}
	defer rows.Close()

	var page []LabelOnObjectRow
	for rows.Next() {
		var r LabelOnObjectRow
		var objectPubID, devicePubID []byte
		var dateCreated string

		if err := rows.Scan(&r.LabelID, &r.ObjectID, &r.LabelName, &objectPubID, &dateCreated, &devicePubID); err != nil {
			return nil, fmt.Errorf("failed to scan label_on_object: %w", err)
		}
		if r.ObjectPubID, err = blobToUUID(objectPubID); err != nil {
			return nil, err
		}
		if r.DevicePubID, err = nullBlobToUUID(devicePubID); err != nil {
			return nil, err
		}
		if ts := nullStringToTime(sql.NullString{String: dateCreated, Valid: true}); ts != nil {
			r.DateCreated = *ts
		}
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating label_on_object: %w", err)
	}
	return page, nil
}

// DeleteOperations removes every operation record tagged with the given
// device identity. This is the wipe step that makes backfill idempotent:
// the local device's log is fully regenerated afterwards, while other
// devices' historical operations are untouched.
func (t *Tx) DeleteOperations(ctx context.Context, devicePubID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM crdt_operation WHERE device_pub_id = ?`, devicePubID[:]); err != nil {
		return fmt.Errorf("failed to delete operations for device: %w", err)
	}
	return nil
}

// insertChunkSize bounds the rows per multi-VALUES insert. SQLite caps a
// statement at 32,766 bind variables and each record binds 6, so unbounded
// pages (file paths especially) must be split across statements.
const insertChunkSize = 1000

// CreateOperations batch-inserts a page of operation records, chunked
// into multi-VALUES statements within the open transaction. Returns the
// number of records written.
func (t *Tx) CreateOperations(ctx context.Context, records []OperationRow) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var total int64
	for start := 0; start < len(records); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO crdt_operation (device_pub_id, timestamp, model, record_id, kind, data) VALUES `)
		args := make([]interface{}, 0, len(chunk)*6)
		for i, r := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?)")
			args = append(args, r.DevicePubID[:], r.Timestamp, r.Model, r.RecordID, r.Kind, r.Data)
		}

		res, err := t.tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return total, fmt.Errorf("failed to batch insert operations: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to count inserted operations: %w", err)
		}
		total += n
	}
	return total, nil
}

// OperationCount returns the number of operation records, optionally
// filtered to a single device identity.
func (db *DB) OperationCount(ctx context.Context, devicePubID *uuid.UUID) (int, error) {
	var count int
	var err error
	if devicePubID != nil {
		err = db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM crdt_operation WHERE device_pub_id = ?`, (*devicePubID)[:]).Scan(&count)
	} else {
		err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM crdt_operation`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

// Operations returns all operation records for a device in insertion
// order. Used by the status surfaces and tests.
func (db *DB) Operations(ctx context.Context, devicePubID uuid.UUID) ([]OperationRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, device_pub_id, timestamp, model, record_id, kind, data
		FROM crdt_operation
		WHERE device_pub_id = ?
		ORDER BY id ASC
	`, devicePubID[:])
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []OperationRow
	for rows.Next() {
		var r OperationRow
		var pubID []byte
		if err := rows.Scan(&r.ID, &pubID, &r.Timestamp, &r.Model, &r.RecordID, &r.Kind, &r.Data); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		if r.DevicePubID, err = blobToUUID(pubID); err != nil {
			return nil, err
		}
		ops = append(ops, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}
