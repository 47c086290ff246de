package location

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLoadAbsent(t *testing.T) {
	m, err := TryLoad(t.TempDir(), RecoveryStrict)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	libraryID := uuid.New()
	locationPubID := uuid.New()

	created, err := CreateAndSave(dir, libraryID, locationPubID, "Pictures")
	require.NoError(t, err)
	require.NotNil(t, created)

	loaded, err := TryLoad(dir, RecoveryStrict)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.True(t, loaded.HasLibrary(libraryID))
	assert.False(t, loaded.IsEmpty())

	pubID, err := loaded.LocationPubID(libraryID)
	require.NoError(t, err)
	assert.Equal(t, locationPubID, pubID)
}

func TestLocationPubIDUnknownLibrary(t *testing.T) {
	dir := t.TempDir()
	m, err := CreateAndSave(dir, uuid.New(), uuid.New(), "Pictures")
	require.NoError(t, err)

	_, err = m.LocationPubID(uuid.New())
	assert.True(t, errors.Is(err, ErrLibraryNotFound))
}

func TestAddAndRemoveLibrary(t *testing.T) {
	dir := t.TempDir()
	first := uuid.New()
	second := uuid.New()

	m, err := CreateAndSave(dir, first, uuid.New(), "Pictures")
	require.NoError(t, err)

	require.NoError(t, m.AddLibrary(second, uuid.New(), "Pictures"))
	assert.True(t, m.HasLibrary(second))

	require.NoError(t, m.RemoveLibrary(first))
	assert.False(t, m.HasLibrary(first))

	// Still one library left, so the file survives.
	_, err = os.Stat(filepath.Join(dir, MetadataFileName))
	require.NoError(t, err)

	// Removing the last library deletes the sidecar.
	require.NoError(t, m.RemoveLibrary(second))
	_, err = os.Stat(filepath.Join(dir, MetadataFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveLibraryNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := CreateAndSave(dir, uuid.New(), uuid.New(), "Pictures")
	require.NoError(t, err)

	err = m.RemoveLibrary(uuid.New())
	assert.True(t, errors.Is(err, ErrLibraryNotFound))
}

func TestRelink(t *testing.T) {
	oldDir := t.TempDir()
	newDir := t.TempDir()
	libraryID := uuid.New()

	_, err := CreateAndSave(oldDir, libraryID, uuid.New(), "Pictures")
	require.NoError(t, err)

	// Simulate the directory moving: the sidecar travels with it.
	require.NoError(t, os.Rename(
		filepath.Join(oldDir, MetadataFileName),
		filepath.Join(newDir, MetadataFileName),
	))

	moved, err := TryLoad(newDir, RecoveryStrict)
	require.NoError(t, err)
	require.NotNil(t, moved)

	require.NoError(t, moved.Relink(libraryID, newDir))
	assert.Equal(t, filepath.Join(newDir, MetadataFileName), moved.Path())

	// A second relink to the same path is rejected.
	err = moved.Relink(libraryID, newDir)
	assert.True(t, errors.Is(err, ErrRelinkSamePath))
}

func TestUpdateRename(t *testing.T) {
	dir := t.TempDir()
	libraryID := uuid.New()

	m, err := CreateAndSave(dir, libraryID, uuid.New(), "Pictures")
	require.NoError(t, err)
	require.NoError(t, m.Update(libraryID, "Photos"))

	loaded, err := TryLoad(dir, RecoveryStrict)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Photos", loaded.metadata.Libraries[libraryID].Name)
}

func TestCleanStaleLibraries(t *testing.T) {
	dir := t.TempDir()
	keep := uuid.New()
	stale1 := uuid.New()
	stale2 := uuid.New()

	m, err := CreateAndSave(dir, keep, uuid.New(), "Pictures")
	require.NoError(t, err)
	require.NoError(t, m.AddLibrary(stale1, uuid.New(), "Pictures"))
	require.NoError(t, m.AddLibrary(stale2, uuid.New(), "Pictures"))

	removed, err := m.CleanStaleLibraries([]uuid.UUID{keep})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, m.HasLibrary(keep))
	assert.False(t, m.HasLibrary(stale1))

	// No stale entries left; a second pass is a no-op.
	removed, err = m.CleanStaleLibraries([]uuid.UUID{keep})
	require.NoError(t, err)
	assert.Zero(t, removed)

	// Cleaning away the last library deletes the file.
	removed, err = m.CleanStaleLibraries(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(filepath.Join(dir, MetadataFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestCorruptMetadataStrict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := TryLoad(dir, RecoveryStrict)
	assert.True(t, errors.Is(err, ErrCorruptMetadata))

	// Strict mode leaves the evidence in place.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestCorruptMetadataSelfHeal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	m, err := TryLoad(dir, RecoverySelfHeal)
	require.NoError(t, err)
	assert.Nil(t, m)

	// Self-heal deletes the corrupt file so the location can be
	// re-registered cleanly.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
