package sync

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/loomdb/loom/internal/sync/db"
)

// Kind is the operation kind persisted in the log.
type Kind string

const (
	// KindSharedCreate is the creation of a standalone entity.
	KindSharedCreate Kind = "shared-create"

	// KindRelationCreate is the creation of a join-table membership.
	// Relation operations always carry references to both sides of the
	// relation as mandatory parts of their record id.
	KindRelationCreate Kind = "relation-create"
)

// Model names of the synchronizable tables.
const (
	ModelDevice            = "device"
	ModelStorageStatistics = "storage_statistics"
	ModelTag               = "tag"
	ModelLabel             = "label"
	ModelLocation          = "location"
	ModelObject            = "object"
	ModelExifData          = "exif_data"
	ModelFilePath          = "file_path"
	ModelTagOnObject       = "tag_on_object"
	ModelLabelOnObject     = "label_on_object"
)

// Entry is one (field name, value) pair of a create operation's payload.
// Entries are serialized as a JSON array so field order is preserved.
//
// An entry exists only for fields whose value is actually present in the
// source row; absent optional fields produce no entry rather than an
// explicit null. This keeps operations minimal and avoids spurious
// overwrites when merged with concurrent edits on other devices.
type Entry struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// optEntry appends an entry for an optional field, skipping nil values.
func optEntry[T any](entries []Entry, name string, v *T) []Entry {
	if v == nil {
		return entries
	}
	return append(entries, Entry{Name: name, Value: *v})
}

// RecordID is the sync identity of an operation's target entity. The
// concrete type determines the model the operation belongs to.
type RecordID interface {
	Model() string
}

// DeviceSyncID identifies a device across the network.
type DeviceSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (DeviceSyncID) Model() string { return ModelDevice }

// StorageStatisticsSyncID identifies a device's storage snapshot.
type StorageStatisticsSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (StorageStatisticsSyncID) Model() string { return ModelStorageStatistics }

// TagSyncID identifies a tag.
type TagSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (TagSyncID) Model() string { return ModelTag }

// LabelSyncID identifies a label by its unique name. Labels carry no
// generated identifier; names are assumed unique and stable.
type LabelSyncID struct {
	Name string `json:"name"`
}

func (LabelSyncID) Model() string { return ModelLabel }

// LocationSyncID identifies a location.
type LocationSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (LocationSyncID) Model() string { return ModelLocation }

// InstanceSyncID identifies a library instance.
type InstanceSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (InstanceSyncID) Model() string { return "instance" }

// ObjectSyncID identifies an object.
type ObjectSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (ObjectSyncID) Model() string { return ModelObject }

// FilePathSyncID identifies a file path.
type FilePathSyncID struct {
	PubID uuid.UUID `json:"pub_id"`
}

func (FilePathSyncID) Model() string { return ModelFilePath }

// ExifDataSyncID identifies an EXIF row through its owning object.
// EXIF data is one-to-one with its object, so its identity is derived
// rather than drawn from an independent key space.
type ExifDataSyncID struct {
	Object ObjectSyncID `json:"object"`
}

func (ExifDataSyncID) Model() string { return ModelExifData }

// TagOnObjectSyncID identifies a tag membership by both sides of the
// relation.
type TagOnObjectSyncID struct {
	Tag    TagSyncID    `json:"tag"`
	Object ObjectSyncID `json:"object"`
}

func (TagOnObjectSyncID) Model() string { return ModelTagOnObject }

// LabelOnObjectSyncID identifies a label membership by both sides of
// the relation.
type LabelOnObjectSyncID struct {
	Label  LabelSyncID  `json:"label"`
	Object ObjectSyncID `json:"object"`
}

func (LabelOnObjectSyncID) Model() string { return ModelLabelOnObject }

// Operation is an immutable, append-only log entry describing the
// creation of an entity or relation with a set of field entries.
type Operation struct {
	DevicePubID uuid.UUID
	Timestamp   Timestamp
	Kind        Kind
	RecordID    RecordID
	Entries     []Entry
}

// row serializes the operation into its storable form.
func (o Operation) row() (db.OperationRow, error) {
	recordID, err := json.Marshal(o.RecordID)
	if err != nil {
		return db.OperationRow{}, fmt.Errorf("%w: %s record id: %v", ErrEncodeOperation, o.RecordID.Model(), err)
	}

	entries := o.Entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return db.OperationRow{}, fmt.Errorf("%w: %s entries: %v", ErrEncodeOperation, o.RecordID.Model(), err)
	}

	return db.OperationRow{
		DevicePubID: o.DevicePubID,
		Timestamp:   int64(o.Timestamp),
		Model:       o.RecordID.Model(),
		RecordID:    string(recordID),
		Kind:        string(o.Kind),
		Data:        string(data),
	}, nil
}
