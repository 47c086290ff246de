package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return database
}

func strp(s string) *string          { return &s }
func i64p(v int64) *int64            { return &v }
func timep(t time.Time) *time.Time   { return &t }

func TestInitSchemaIdempotent(t *testing.T) {
	database := newTestDB(t)

	// Running DDL again against a populated schema must be a no-op.
	if err := database.InitSchema(); err != nil {
		t.Fatalf("Second InitSchema failed: %v", err)
	}
	if err := database.InitSchema(); err != nil {
		t.Fatalf("Third InitSchema failed: %v", err)
	}
}

func TestDeviceByPubID(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	pubID := uuid.New()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	row := &DeviceRow{
		PubID:       pubID,
		Name:        strp("alpha"),
		OS:          strp("linux"),
		DateCreated: timep(created),
	}
	if err := database.InsertDevice(ctx, row); err != nil {
		t.Fatalf("Failed to insert device: %v", err)
	}
	if row.ID == 0 {
		t.Error("InsertDevice did not backfill the local key")
	}

	got, err := database.DeviceByPubID(ctx, pubID)
	if err != nil {
		t.Fatalf("DeviceByPubID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected device, got nil")
	}
	if got.PubID != pubID {
		t.Errorf("Expected pub id %s, got %s", pubID, got.PubID)
	}
	if got.Name == nil || *got.Name != "alpha" {
		t.Errorf("Expected name alpha, got %v", got.Name)
	}
	if got.HardwareModel != nil {
		t.Errorf("Expected nil hardware model, got %v", *got.HardwareModel)
	}
	if got.DateCreated == nil || !got.DateCreated.Equal(created) {
		t.Errorf("Expected date created %v, got %v", created, got.DateCreated)
	}

	missing, err := database.DeviceByPubID(ctx, uuid.New())
	if err != nil {
		t.Fatalf("DeviceByPubID for unknown id failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown device, got %+v", missing)
	}
}

func TestObjectPageCursorAndBound(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	devicePubID := uuid.New()
	device := &DeviceRow{PubID: devicePubID}
	if err := database.InsertDevice(ctx, device); err != nil {
		t.Fatalf("Failed to insert device: %v", err)
	}

	// A second device's objects must never appear in the page.
	other := &DeviceRow{PubID: uuid.New()}
	if err := database.InsertDevice(ctx, other); err != nil {
		t.Fatalf("Failed to insert second device: %v", err)
	}

	var ids []int64
	for i := 0; i < 5; i++ {
		obj := &ObjectRow{PubID: uuid.New(), Kind: i64p(int64(i)), DevicePubID: &devicePubID}
		if err := database.InsertObject(ctx, obj, &device.ID); err != nil {
			t.Fatalf("Failed to insert object: %v", err)
		}
		ids = append(ids, obj.ID)
	}
	foreign := &ObjectRow{PubID: uuid.New()}
	if err := database.InsertObject(ctx, foreign, &other.ID); err != nil {
		t.Fatalf("Failed to insert foreign object: %v", err)
	}

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	page, err := tx.ObjectPage(ctx, device.ID, -1, 2)
	if err != nil {
		t.Fatalf("ObjectPage failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected page of 2, got %d", len(page))
	}
	if page[0].ID != ids[0] || page[1].ID != ids[1] {
		t.Errorf("Expected ids %v, got %d %d", ids[:2], page[0].ID, page[1].ID)
	}
	if page[0].DevicePubID == nil || *page[0].DevicePubID != devicePubID {
		t.Error("Device pub id not resolved through join")
	}

	// Continue from the last key of the previous page.
	page, err = tx.ObjectPage(ctx, device.ID, ids[1], 10)
	if err != nil {
		t.Fatalf("ObjectPage failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("Expected remaining 3 objects, got %d", len(page))
	}
	for i, r := range page {
		if r.ID != ids[i+2] {
			t.Errorf("Row %d: expected id %d, got %d", i, ids[i+2], r.ID)
		}
	}

	// Past the end.
	page, err = tx.ObjectPage(ctx, device.ID, ids[4], 10)
	if err != nil {
		t.Fatalf("ObjectPage failed: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("Expected empty page past the end, got %d rows", len(page))
	}
}

func TestFilePathPageResolvesJoins(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	devicePubID := uuid.New()
	device := &DeviceRow{PubID: devicePubID}
	if err := database.InsertDevice(ctx, device); err != nil {
		t.Fatalf("Failed to insert device: %v", err)
	}

	instanceID, err := database.InsertInstance(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Failed to insert instance: %v", err)
	}

	loc := &LocationRow{PubID: uuid.New(), Name: strp("data"), DevicePubID: &devicePubID}
	if err := database.InsertLocation(ctx, loc, &instanceID, &device.ID); err != nil {
		t.Fatalf("Failed to insert location: %v", err)
	}

	obj := &ObjectRow{PubID: uuid.New(), DevicePubID: &devicePubID}
	if err := database.InsertObject(ctx, obj, &device.ID); err != nil {
		t.Fatalf("Failed to insert object: %v", err)
	}

	withRefs := &FilePathRow{
		PubID:       uuid.New(),
		Name:        strp("img_0001"),
		DevicePubID: &devicePubID,
	}
	if err := database.InsertFilePath(ctx, withRefs, &loc.ID, &obj.ID, &device.ID); err != nil {
		t.Fatalf("Failed to insert file_path: %v", err)
	}

	// Orphan: no location or object yet (indexer ahead of identifier).
	orphan := &FilePathRow{PubID: uuid.New(), Name: strp("img_0002"), DevicePubID: &devicePubID}
	if err := database.InsertFilePath(ctx, orphan, nil, nil, &device.ID); err != nil {
		t.Fatalf("Failed to insert orphan file_path: %v", err)
	}

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	page, err := tx.FilePathPage(ctx, device.ID, -1)
	if err != nil {
		t.Fatalf("FilePathPage failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 file paths, got %d", len(page))
	}

	if page[0].LocationPubID == nil || *page[0].LocationPubID != loc.PubID {
		t.Error("Location pub id not resolved through join")
	}
	if page[0].ObjectPubID == nil || *page[0].ObjectPubID != obj.PubID {
		t.Error("Object pub id not resolved through join")
	}
	if page[1].LocationPubID != nil || page[1].ObjectPubID != nil {
		t.Error("Orphan file path should have nil relation pub ids")
	}
}

func TestTagOnObjectPageLexicographicCursor(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	devicePubID := uuid.New()
	device := &DeviceRow{PubID: devicePubID}
	if err := database.InsertDevice(ctx, device); err != nil {
		t.Fatalf("Failed to insert device: %v", err)
	}

	tag := &TagRow{PubID: uuid.New(), Name: strp("archive")}
	if err := database.InsertTag(ctx, tag); err != nil {
		t.Fatalf("Failed to insert tag: %v", err)
	}

	var objectIDs []int64
	for i := 0; i < 3; i++ {
		obj := &ObjectRow{PubID: uuid.New(), DevicePubID: &devicePubID}
		if err := database.InsertObject(ctx, obj, &device.ID); err != nil {
			t.Fatalf("Failed to insert object: %v", err)
		}
		objectIDs = append(objectIDs, obj.ID)

		m := &TagOnObjectRow{TagID: tag.ID, ObjectID: obj.ID, DevicePubID: &devicePubID}
		if err := database.InsertTagOnObject(ctx, m, &device.ID); err != nil {
			t.Fatalf("Failed to insert tag_on_object: %v", err)
		}
	}

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	// The cursor pair (tag.ID, objectIDs[0]) must yield the remaining
	// memberships under the same tag, which a per-column comparison
	// would skip entirely.
	page, err := tx.TagOnObjectPage(ctx, device.ID, tag.ID, objectIDs[0])
	if err != nil {
		t.Fatalf("TagOnObjectPage failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 memberships after cursor, got %d", len(page))
	}
	if page[0].ObjectID != objectIDs[1] || page[1].ObjectID != objectIDs[2] {
		t.Errorf("Unexpected membership order: %d, %d", page[0].ObjectID, page[1].ObjectID)
	}
	if page[0].TagPubID != tag.PubID {
		t.Error("Tag pub id not resolved through join")
	}
}

func TestCreateAndDeleteOperations(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	devicePubID := uuid.New()
	otherPubID := uuid.New()

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	records := []OperationRow{
		{DevicePubID: devicePubID, Timestamp: 1, Model: "tag", RecordID: `{"pub_id":"a"}`, Kind: "shared-create", Data: `[]`},
		{DevicePubID: devicePubID, Timestamp: 2, Model: "tag", RecordID: `{"pub_id":"b"}`, Kind: "shared-create", Data: `[]`},
		{DevicePubID: otherPubID, Timestamp: 3, Model: "tag", RecordID: `{"pub_id":"c"}`, Kind: "shared-create", Data: `[]`},
	}
	n, err := tx.CreateOperations(ctx, records)
	if err != nil {
		t.Fatalf("CreateOperations failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 inserted operations, got %d", n)
	}

	// Empty batch is a no-op, not an error.
	n, err = tx.CreateOperations(ctx, nil)
	if err != nil {
		t.Fatalf("Empty CreateOperations failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 inserted for empty batch, got %d", n)
	}

	if err := tx.DeleteOperations(ctx, devicePubID); err != nil {
		t.Fatalf("DeleteOperations failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	count, err := database.OperationCount(ctx, &devicePubID)
	if err != nil {
		t.Fatalf("OperationCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 operations for wiped device, got %d", count)
	}

	count, err = database.OperationCount(ctx, &otherPubID)
	if err != nil {
		t.Fatalf("OperationCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 surviving operation for other device, got %d", count)
	}

	total, err := database.OperationCount(ctx, nil)
	if err != nil {
		t.Fatalf("OperationCount failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 operation total, got %d", total)
	}
}

func TestTxRollbackDiscardsWrites(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	devicePubID := uuid.New()

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	_, err = tx.CreateOperations(ctx, []OperationRow{
		{DevicePubID: devicePubID, Timestamp: 1, Model: "tag", RecordID: `{"pub_id":"a"}`, Kind: "shared-create", Data: `[]`},
	})
	if err != nil {
		t.Fatalf("CreateOperations failed: %v", err)
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	count, err := database.OperationCount(ctx, &devicePubID)
	if err != nil {
		t.Fatalf("OperationCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected rollback to discard writes, got %d operations", count)
	}
}

func TestCreateOperationsChunksLargeBatch(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	devicePubID := uuid.New()

	// Well past the 32,766 bind-variable statement cap at 6 binds per
	// record; must be split across statements rather than failing.
	records := make([]OperationRow, 6000)
	for i := range records {
		records[i] = OperationRow{
			DevicePubID: devicePubID,
			Timestamp:   int64(i + 1),
			Model:       "file_path",
			RecordID:    fmt.Sprintf(`{"pub_id":"%06d"}`, i),
			Kind:        "shared-create",
			Data:        `[]`,
		}
	}

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	n, err := tx.CreateOperations(ctx, records)
	if err != nil {
		t.Fatalf("CreateOperations failed on large batch: %v", err)
	}
	if n != 6000 {
		t.Errorf("Expected 6000 inserted operations, got %d", n)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	count, err := database.OperationCount(ctx, &devicePubID)
	if err != nil {
		t.Fatalf("OperationCount failed: %v", err)
	}
	if count != 6000 {
		t.Errorf("Expected 6000 persisted operations, got %d", count)
	}
}

func TestBackfillTxRaisesBusyTimeout(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	tx, err := database.BeginBackfill(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	// busy_timeout is per-connection, so it has to be read through the
	// transaction; checking the pooled handle could hit another conn.
	var timeout int64
	if err := tx.tx.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("Failed to read busy_timeout: %v", err)
	}
	if timeout != 2147483647 {
		t.Errorf("Expected backfill busy_timeout 2147483647, got %d", timeout)
	}
}
