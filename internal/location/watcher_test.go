package location

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, w *Watcher, want EventOp, timeout time.Duration) MetadataEvent {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case ev := <-w.Events():
			if ev.Op == want {
				return ev
			}
			// Editors and atomic writes can produce extra events;
			// keep draining until the one we want shows up.
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestWatcherLifecycle(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)

	assert.False(t, w.IsRunning())
	require.NoError(t, w.Start(t.TempDir()))
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// Stopping twice is a no-op.
	require.NoError(t, w.Stop())
}

func TestWatcherStartTwice(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(t.TempDir()))
	assert.Error(t, w.Start(t.TempDir()))
}

func TestWatcherSeesSidecarCreate(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(dir))

	_, err = CreateAndSave(dir, uuid.New(), uuid.New(), "Pictures")
	require.NoError(t, err)

	ev := waitForEvent(t, w, OpCreate, 5*time.Second)
	assert.Equal(t, dir, ev.LocationPath)
}

func TestWatcherSeesSidecarDelete(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateAndSave(dir, uuid.New(), uuid.New(), "Pictures")
	require.NoError(t, err)

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(dir))

	require.NoError(t, os.Remove(filepath.Join(dir, MetadataFileName)))

	ev := waitForEvent(t, w, OpDelete, 5*time.Second)
	assert.Equal(t, dir, ev.LocationPath)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("jpeg"), 0644))

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for non-sidecar file: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherAddRemoveLocation(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(first))

	require.NoError(t, w.AddLocation(second))

	_, err = CreateAndSave(second, uuid.New(), uuid.New(), "Videos")
	require.NoError(t, err)

	ev := waitForEvent(t, w, OpCreate, 5*time.Second)
	assert.Equal(t, second, ev.LocationPath)

	require.NoError(t, w.RemoveLocation(second))

	require.NoError(t, os.Remove(filepath.Join(second, MetadataFileName)))
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event after unwatch: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}
