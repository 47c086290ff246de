package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// exportedOperation is the JSONL line format for operation dumps.
// RecordID and Data are stored as JSON already, so they pass through
// verbatim instead of being re-encoded.
type exportedOperation struct {
	DevicePubID string          `json:"device_pub_id"`
	Timestamp   int64           `json:"timestamp"`
	Model       string          `json:"model"`
	RecordID    json.RawMessage `json:"record_id"`
	Kind        string          `json:"kind"`
	Data        json.RawMessage `json:"data"`
}

// ExportOperations writes this device's operation log to w as JSONL,
// one operation per line in log order. Returns the number of
// operations written.
func (m *Manager) ExportOperations(ctx context.Context, w io.Writer) (int, error) {
	ops, err := m.db.Operations(ctx, m.devicePubID)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, op := range ops {
		line := exportedOperation{
			DevicePubID: op.DevicePubID.String(),
			Timestamp:   op.Timestamp,
			Model:       op.Model,
			RecordID:    json.RawMessage(op.RecordID),
			Kind:        op.Kind,
			Data:        json.RawMessage(op.Data),
		}
		if err := enc.Encode(line); err != nil {
			return 0, fmt.Errorf("failed to encode operation %d: %w", op.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush export: %w", err)
	}
	return len(ops), nil
}

// ExportToFile writes the operation log to a JSONL file. The file is
// written to a temp path and renamed into place, so readers never see
// a partial export.
func (m *Manager) ExportToFile(ctx context.Context, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}

	count, err := m.ExportOperations(ctx, f)
	if err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close export file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename export file: %w", err)
	}
	return count, nil
}
