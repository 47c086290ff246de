package db

import (
	"time"

	"github.com/google/uuid"
)

// Row types returned by the page queries. Optional columns are pointers;
// a nil pointer means the column is NULL in the store and must not
// produce a sync entry. Related rows appear only as their resolved sync
// identity (pub id, or name for labels), never as a local key.

// DeviceRow is a row of the device table.
type DeviceRow struct {
	ID            int64
	PubID         uuid.UUID
	Name          *string
	OS            *string
	HardwareModel *string
	Timestamp     *time.Time
	DateCreated   *time.Time
	DateDeleted   *time.Time
}

// StorageStatisticsRow is the per-device storage snapshot. At most one
// row is expected per device.
type StorageStatisticsRow struct {
	ID                int64
	PubID             uuid.UUID
	TotalCapacity     int64
	AvailableCapacity int64
	DevicePubID       *uuid.UUID
}

// TagRow is a row of the tag table.
type TagRow struct {
	ID           int64
	PubID        uuid.UUID
	Name         *string
	Color        *string
	DateCreated  *time.Time
	DateModified *time.Time
}

// LabelRow is a row of the label table. Labels are identified across
// devices by their unique name rather than a generated pub id.
type LabelRow struct {
	ID           int64
	Name         string
	DateCreated  *time.Time
	DateModified *time.Time
}

// LocationRow is a row of the location table with its owning instance
// and device resolved to pub ids.
type LocationRow struct {
	ID                   int64
	PubID                uuid.UUID
	Name                 *string
	Path                 *string
	TotalCapacity        *int64
	AvailableCapacity    *int64
	SizeInBytes          *int64
	IsArchived           *bool
	GeneratePreviewMedia *bool
	SyncPreviewMedia     *bool
	Hidden               *bool
	DateCreated          *time.Time
	InstancePubID        *uuid.UUID
	DevicePubID          *uuid.UUID
}

// ObjectRow is a row of the object table.
type ObjectRow struct {
	ID           int64
	PubID        uuid.UUID
	Kind         *int64
	Hidden       *bool
	Favorite     *bool
	Important    *bool
	Note         *string
	DateCreated  *time.Time
	DateAccessed *time.Time
	DevicePubID  *uuid.UUID
}

// ExifDataRow is a row of the exif_data table. EXIF data is one-to-one
// with its object, so the owning object's pub id is mandatory.
type ExifDataRow struct {
	ID            int64
	ObjectPubID   uuid.UUID
	Resolution    *string
	MediaDate     *string
	MediaLocation *string
	CameraData    *string
	Artist        *string
	Description   *string
	Copyright     *string
	ExifVersion   *string
	EpochTime     *int64
	DevicePubID   *uuid.UUID
}

// FilePathRow is a row of the file_path table with location, object and
// device resolved to pub ids.
type FilePathRow struct {
	ID                int64
	PubID             uuid.UUID
	IsDir             *bool
	CasID             *string
	IntegrityChecksum *string
	LocationPubID     *uuid.UUID
	ObjectPubID       *uuid.UUID
	MaterializedPath  *string
	Name              *string
	Extension         *string
	Hidden            *bool
	SizeInBytes       *int64
	Inode             *int64
	DateCreated       *time.Time
	DateModified      *time.Time
	DateIndexed       *time.Time
	DevicePubID       *uuid.UUID
}

// TagOnObjectRow is a row of the tag_on_object join table. The local
// (TagID, ObjectID) pair is the composite pagination cursor; both sides
// of the relation are also resolved to pub ids.
type TagOnObjectRow struct {
	TagID       int64
	ObjectID    int64
	TagPubID    uuid.UUID
	ObjectPubID uuid.UUID
	DateCreated *time.Time
	DevicePubID *uuid.UUID
}

// LabelOnObjectRow is a row of the label_on_object join table. The
// creation timestamp is NOT NULL in the schema and always synced.
type LabelOnObjectRow struct {
	LabelID     int64
	ObjectID    int64
	LabelName   string
	ObjectPubID uuid.UUID
	DateCreated time.Time
	DevicePubID *uuid.UUID
}

// OperationRow is a serialized operation record as persisted in the
// crdt_operation log. RecordID and Data carry the JSON encodings
// produced by the sync layer.
type OperationRow struct {
	ID          int64
	DevicePubID uuid.UUID
	Timestamp   int64
	Model       string
	RecordID    string
	Kind        string
	Data        string
}
