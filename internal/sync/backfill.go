package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/loomdb/loom/internal/sync/db"
)

// Backfill rebuilds the local device's operation log from the current
// relational state. It deletes every operation tagged with this device's
// identity, then regenerates creation operations for all synchronizable
// rows, all inside one write transaction: observers see either the old
// log or the complete new one, never a partial rebuild.
//
// Tables are processed in two waves so that operations referencing an
// entity are never written before the operation creating it. The device
// row goes first, then the standalone tables, then everything that
// references them. Tables within a wave are drained concurrently.
//
// Backfill is serialized per Manager; a second call blocks until the
// first finishes. Timestamps are drawn from the manager's clock, so the
// regenerated log sorts after anything the device has emitted before.
func (m *Manager) Backfill(ctx context.Context) error {
	m.backfillMu.Lock()
	defer m.backfillMu.Unlock()
	return m.backfill(ctx)
}

// TryBackfill is the non-blocking variant of Backfill. It returns
// ErrBackfillInProgress immediately if another backfill holds the
// rebuild lock.
func (m *Manager) TryBackfill(ctx context.Context) error {
	if !m.backfillMu.TryLock() {
		return ErrBackfillInProgress
	}
	defer m.backfillMu.Unlock()
	return m.backfill(ctx)
}

func (m *Manager) backfill(ctx context.Context) error {
	// Cheap precheck outside the write transaction.
	device, err := m.db.DeviceByPubID(ctx, m.devicePubID)
	if err != nil {
		return fmt.Errorf("backfill precheck: %w", err)
	}
	if device == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, m.devicePubID)
	}

	m.logger.Printf("starting backfill for device %s", m.devicePubID)

	tx, err := m.db.BeginBackfill(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin backfill transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.DeleteOperations(ctx, m.devicePubID); err != nil {
		return err
	}
	m.report(ProgressEvent{Phase: ProgressStarted})

	// Re-fetch inside the transaction so the snapshot is consistent
	// with every page read below.
	device, err = tx.DeviceByPubID(ctx, m.devicePubID)
	if err != nil {
		return err
	}
	if device == nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, m.devicePubID)
	}

	if err := m.backfillDevice(ctx, tx, device); err != nil {
		return err
	}

	deviceID := device.ID
	err = runAll(ctx,
		func(ctx context.Context) error { return m.backfillStorageStatistics(ctx, tx, deviceID) },
		func(ctx context.Context) error { return m.backfillTags(ctx, tx) },
		func(ctx context.Context) error { return m.backfillLabels(ctx, tx) },
		func(ctx context.Context) error { return m.backfillLocations(ctx, tx, deviceID) },
		func(ctx context.Context) error { return m.backfillObjects(ctx, tx, deviceID) },
	)
	if err != nil {
		return err
	}

	err = runAll(ctx,
		func(ctx context.Context) error { return m.backfillExifData(ctx, tx, deviceID) },
		func(ctx context.Context) error { return m.backfillFilePaths(ctx, tx, deviceID) },
		func(ctx context.Context) error { return m.backfillTagsOnObjects(ctx, tx, deviceID) },
		func(ctx context.Context) error { return m.backfillLabelsOnObjects(ctx, tx, deviceID) },
	)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backfill: %w", err)
	}

	m.report(ProgressEvent{Phase: ProgressFinished})
	m.logger.Printf("backfill complete for device %s", m.devicePubID)
	return nil
}

// runAll runs the given steps concurrently and waits for all of them,
// returning the first error observed. Steps share one transaction; the
// transaction serializes their statements internally.
func runAll(ctx context.Context, steps ...func(context.Context) error) error {
	var wg stdsync.WaitGroup
	errs := make(chan error, len(steps))
	for _, step := range steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := step(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

// persist serializes a page of operations and writes it in one batch,
// then reports cumulative progress for the model.
func (m *Manager) persist(ctx context.Context, tx *db.Tx, model string, ops []Operation, total *int64) error {
	records := make([]db.OperationRow, 0, len(ops))
	for _, op := range ops {
		row, err := op.row()
		if err != nil {
			return err
		}
		records = append(records, row)
	}
	n, err := tx.CreateOperations(ctx, records)
	if err != nil {
		return err
	}
	*total += n
	m.report(ProgressEvent{Phase: ProgressTable, Model: model, Rows: *total})
	return nil
}

func (m *Manager) backfillDevice(ctx context.Context, tx *db.Tx, r *db.DeviceRow) error {
	var entries []Entry
	entries = optEntry(entries, "name", r.Name)
	entries = optEntry(entries, "os", r.OS)
	entries = optEntry(entries, "hardware_model", r.HardwareModel)
	entries = optEntry(entries, "timestamp", r.Timestamp)
	entries = optEntry(entries, "date_created", r.DateCreated)
	entries = optEntry(entries, "date_deleted", r.DateDeleted)

	op := m.SharedCreate(DeviceSyncID{PubID: r.PubID}, entries)
	var total int64
	return m.persist(ctx, tx, ModelDevice, []Operation{op}, &total)
}

func (m *Manager) backfillStorageStatistics(ctx context.Context, tx *db.Tx, deviceID int64) error {
	r, err := tx.StorageStatisticsForDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	if r == nil {
		// Nothing recorded for this device yet.
		return nil
	}

	entries := []Entry{
		{Name: "total_capacity", Value: r.TotalCapacity},
		{Name: "available_capacity", Value: r.AvailableCapacity},
	}
	if r.DevicePubID != nil {
		entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
	}

	op := m.SharedCreate(StorageStatisticsSyncID{PubID: r.PubID}, entries)
	var total int64
	return m.persist(ctx, tx, ModelStorageStatistics, []Operation{op}, &total)
}

func (m *Manager) backfillTags(ctx context.Context, tx *db.Tx) error {
	var total int64
	return paginate(ctx,
		func(cursor int64) ([]db.TagRow, error) { return tx.TagPage(ctx, cursor) },
		func(r db.TagRow) int64 { return r.ID },
		func(ctx context.Context, page []db.TagRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "name", r.Name)
				entries = optEntry(entries, "color", r.Color)
				entries = optEntry(entries, "date_created", r.DateCreated)
				entries = optEntry(entries, "date_modified", r.DateModified)
				ops = append(ops, m.SharedCreate(TagSyncID{PubID: r.PubID}, entries))
			}
			return m.persist(ctx, tx, ModelTag, ops, &total)
		})
}

func (m *Manager) backfillLabels(ctx context.Context, tx *db.Tx) error {
	var total int64
	return paginate(ctx,
		func(cursor int64) ([]db.LabelRow, error) { return tx.LabelPage(ctx, cursor) },
		func(r db.LabelRow) int64 { return r.ID },
		func(ctx context.Context, page []db.LabelRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "date_created", r.DateCreated)
				entries = optEntry(entries, "date_modified", r.DateModified)
				ops = append(ops, m.SharedCreate(LabelSyncID{Name: r.Name}, entries))
			}
			return m.persist(ctx, tx, ModelLabel, ops, &total)
		})
}

func (m *Manager) backfillLocations(ctx context.Context, tx *db.Tx, deviceID int64) error {
	var total int64
	return paginate(ctx,
		func(cursor int64) ([]db.LocationRow, error) {
			return tx.LocationPage(ctx, deviceID, cursor, m.pageSize)
		},
		func(r db.LocationRow) int64 { return r.ID },
		func(ctx context.Context, page []db.LocationRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "name", r.Name)
				entries = optEntry(entries, "path", r.Path)
				entries = optEntry(entries, "total_capacity", r.TotalCapacity)
				entries = optEntry(entries, "available_capacity", r.AvailableCapacity)
				entries = optEntry(entries, "size_in_bytes", r.SizeInBytes)
				entries = optEntry(entries, "is_archived", r.IsArchived)
				entries = optEntry(entries, "generate_preview_media", r.GeneratePreviewMedia)
				entries = optEntry(entries, "sync_preview_media", r.SyncPreviewMedia)
				entries = optEntry(entries, "hidden", r.Hidden)
				entries = optEntry(entries, "date_created", r.DateCreated)
				if r.InstancePubID != nil {
					entries = append(entries, Entry{Name: "instance", Value: InstanceSyncID{PubID: *r.InstancePubID}})
				}
				if r.DevicePubID != nil {
					entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
				}
				ops = append(ops, m.SharedCreate(LocationSyncID{PubID: r.PubID}, entries))
			}
			return m.persist(ctx, tx, ModelLocation, ops, &total)
		})
}

func (m *Manager) backfillObjects(ctx context.Context, tx *db.Tx, deviceID int64) error {
	var total int64
	return paginate(ctx,
		func(cursor int64) ([]db.ObjectRow, error) {
			return tx.ObjectPage(ctx, deviceID, cursor, m.pageSize)
		},
		func(r db.ObjectRow) int64 { return r.ID },
		func(ctx context.Context, page []db.ObjectRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "kind", r.Kind)
				entries = optEntry(entries, "hidden", r.Hidden)
				entries = optEntry(entries, "favorite", r.Favorite)
				entries = optEntry(entries, "important", r.Important)
				entries = optEntry(entries, "note", r.Note)
				entries = optEntry(entries, "date_created", r.DateCreated)
				entries = optEntry(entries, "date_accessed", r.DateAccessed)
				if r.DevicePubID != nil {
					entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
				}
				ops = append(ops, m.SharedCreate(ObjectSyncID{PubID: r.PubID}, entries))
			}
			return m.persist(ctx, tx, ModelObject, ops, &total)
		})
}

func (m *Manager) backfillExifData(ctx context.Context, tx *db.Tx, deviceID int64) error {
	var total int64
	return paginate(ctx,
		func(cursor int64) ([]db.ExifDataRow, error) {
			return tx.ExifDataPage(ctx, deviceID, cursor, m.pageSize)
		},
		func(r db.ExifDataRow) int64 { return r.ID },
		func(ctx context.Context, page []db.ExifDataRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "resolution", r.Resolution)
				entries = optEntry(entries, "media_date", r.MediaDate)
				entries = optEntry(entries, "media_location", r.MediaLocation)
				entries = optEntry(entries, "camera_data", r.CameraData)
				entries = optEntry(entries, "artist", r.Artist)
				entries = optEntry(entries, "description", r.Description)
				entries = optEntry(entries, "copyright", r.Copyright)
				entries = optEntry(entries, "exif_version", r.ExifVersion)
				entries = optEntry(entries, "epoch_time", r.EpochTime)
				if r.DevicePubID != nil {
					entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
				}
				id := ExifDataSyncID{Object: ObjectSyncID{PubID: r.ObjectPubID}}
				ops = append(ops, m.SharedCreate(id, entries))
			}
			return m.persist(ctx, tx, ModelExifData, ops, &total)
		})
}

func (m *Manager) backfillFilePaths(ctx context.Context, tx *db.Tx, deviceID int64) error {
	var total int64
	return paginate(ctx,
		func(cursor int64) ([]db.FilePathRow, error) { return tx.FilePathPage(ctx, deviceID, cursor) },
		func(r db.FilePathRow) int64 { return r.ID },
		func(ctx context.Context, page []db.FilePathRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "is_dir", r.IsDir)
				entries = optEntry(entries, "cas_id", r.CasID)
				entries = optEntry(entries, "integrity_checksum", r.IntegrityChecksum)
				if r.LocationPubID != nil {
					entries = append(entries, Entry{Name: "location", Value: LocationSyncID{PubID: *r.LocationPubID}})
				}
				if r.ObjectPubID != nil {
					entries = append(entries, Entry{Name: "object", Value: ObjectSyncID{PubID: *r.ObjectPubID}})
				}
				entries = optEntry(entries, "materialized_path", r.MaterializedPath)
				entries = optEntry(entries, "name", r.Name)
				entries = optEntry(entries, "extension", r.Extension)
				entries = optEntry(entries, "hidden", r.Hidden)
				entries = optEntry(entries, "size_in_bytes", r.SizeInBytes)
				entries = optEntry(entries, "inode", r.Inode)
				entries = optEntry(entries, "date_created", r.DateCreated)
				entries = optEntry(entries, "date_modified", r.DateModified)
				entries = optEntry(entries, "date_indexed", r.DateIndexed)
				if r.DevicePubID != nil {
					entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
				}
				ops = append(ops, m.SharedCreate(FilePathSyncID{PubID: r.PubID}, entries))
			}
			return m.persist(ctx, tx, ModelFilePath, ops, &total)
		})
}

func (m *Manager) backfillTagsOnObjects(ctx context.Context, tx *db.Tx, deviceID int64) error {
	var total int64
	return paginateRelation(ctx,
		func(tag, object int64) ([]db.TagOnObjectRow, error) {
			return tx.TagOnObjectPage(ctx, deviceID, tag, object)
		},
		func(r db.TagOnObjectRow) (int64, int64) { return r.TagID, r.ObjectID },
		func(ctx context.Context, page []db.TagOnObjectRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				var entries []Entry
				entries = optEntry(entries, "date_created", r.DateCreated)
				if r.DevicePubID != nil {
					entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
				}
				id := TagOnObjectSyncID{
					Tag:    TagSyncID{PubID: r.TagPubID},
					Object: ObjectSyncID{PubID: r.ObjectPubID},
				}
				ops = append(ops, m.RelationCreate(id, entries))
			}
			return m.persist(ctx, tx, ModelTagOnObject, ops, &total)
		})
}

func (m *Manager) backfillLabelsOnObjects(ctx context.Context, tx *db.Tx, deviceID int64) error {
	var total int64
	return paginateRelation(ctx,
		func(label, object int64) ([]db.LabelOnObjectRow, error) {
			return tx.LabelOnObjectPage(ctx, deviceID, label, object)
		},
		func(r db.LabelOnObjectRow) (int64, int64) { return r.LabelID, r.ObjectID },
		func(ctx context.Context, page []db.LabelOnObjectRow) error {
			ops := make([]Operation, 0, len(page))
			for _, r := range page {
				entries := []Entry{{Name: "date_created", Value: r.DateCreated}}
				if r.DevicePubID != nil {
					entries = append(entries, Entry{Name: "device", Value: DeviceSyncID{PubID: *r.DevicePubID}})
				}
				id := LabelOnObjectSyncID{
					Label:  LabelSyncID{Name: r.LabelName},
					Object: ObjectSyncID{PubID: r.ObjectPubID},
				}
				ops = append(ops, m.RelationCreate(id, entries))
			}
			return m.persist(ctx, tx, ModelLabelOnObject, ops, &total)
		})
}
