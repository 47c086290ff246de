// Package location manages the metadata sidecar file that ties a
// directory on disk back to the libraries that indexed it.
//
// Every indexed location carries a hidden JSON file (MetadataFileName)
// in its root. The file maps library ids to the location's sync
// identity and display data, so a moved or re-added directory can be
// recognized instead of re-indexed from scratch. Multiple libraries can
// share one location; the file is deleted when the last library
// releases it.
package location

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// MetadataFileName is the name of the sidecar file in a location root.
const MetadataFileName = ".loom"

// metadataVersion is bumped when the on-disk layout changes.
const metadataVersion = 1

// RecoveryMode controls what TryLoad does with a metadata file that
// exists but cannot be parsed.
type RecoveryMode int

const (
	// RecoveryStrict surfaces corruption as ErrCorruptMetadata and
	// leaves the file in place for inspection.
	RecoveryStrict RecoveryMode = iota

	// RecoverySelfHeal deletes the corrupt file and reports the
	// location as having no metadata, letting the caller recreate it.
	RecoverySelfHeal
)

// String returns a human-readable representation of the mode.
func (m RecoveryMode) String() string {
	switch m {
	case RecoveryStrict:
		return "strict"
	case RecoverySelfHeal:
		return "self-heal"
	default:
		return "unknown"
	}
}

// LibraryMetadata is one library's record of a location.
type LibraryMetadata struct {
	PubID     uuid.UUID `json:"pub_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type metadata struct {
	Version   int                           `json:"version"`
	Libraries map[uuid.UUID]LibraryMetadata `json:"libraries"`
}

// MetadataFile is the in-memory handle for one location's sidecar.
// Mutating operations rewrite the file before returning.
type MetadataFile struct {
	path     string
	recovery RecoveryMode
	metadata metadata
}

// TryLoad reads the metadata file from a location root. Returns
// (nil, nil) if the location has no metadata file. A file that exists
// but fails to parse is handled per the recovery mode: strict returns
// ErrCorruptMetadata, self-heal deletes the file and reports absence.
func TryLoad(locationPath string, recovery RecoveryMode) (*MetadataFile, error) {
	path := filepath.Join(locationPath, MetadataFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read location metadata %s: %w", path, err)
	}

	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		if recovery == RecoverySelfHeal {
			if rmErr := os.Remove(path); rmErr != nil {
				return nil, fmt.Errorf("failed to remove corrupt location metadata %s: %w", path, rmErr)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, path, err)
	}
	if md.Libraries == nil {
		md.Libraries = make(map[uuid.UUID]LibraryMetadata)
	}

	return &MetadataFile{path: path, recovery: recovery, metadata: md}, nil
}

// CreateAndSave writes a fresh metadata file for a location with one
// library entry.
func CreateAndSave(locationPath string, libraryID, locationPubID uuid.UUID, name string) (*MetadataFile, error) {
	now := time.Now().UTC()
	m := &MetadataFile{
		path: filepath.Join(locationPath, MetadataFileName),
		metadata: metadata{
			Version: metadataVersion,
			Libraries: map[uuid.UUID]LibraryMetadata{
				libraryID: {
					PubID:     locationPubID,
					Name:      name,
					Path:      locationPath,
					CreatedAt: now,
					UpdatedAt: now,
				},
			},
		},
	}
	if err := m.write(); err != nil {
		return nil, err
	}
	return m, nil
}

// AddLibrary registers another library against this location.
func (m *MetadataFile) AddLibrary(libraryID, locationPubID uuid.UUID, name string) error {
	now := time.Now().UTC()
	m.metadata.Libraries[libraryID] = LibraryMetadata{
		PubID:     locationPubID,
		Name:      name,
		Path:      filepath.Dir(m.path),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.write()
}

// RemoveLibrary drops a library's entry. When the last library is
// removed the sidecar file itself is deleted.
func (m *MetadataFile) RemoveLibrary(libraryID uuid.UUID) error {
	if _, ok := m.metadata.Libraries[libraryID]; !ok {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, libraryID)
	}
	delete(m.metadata.Libraries, libraryID)

	if len(m.metadata.Libraries) == 0 {
		return m.removeFile()
	}
	return m.write()
}

// Relink updates a library's recorded path after the location directory
// was moved. The metadata file is expected to have been loaded from the
// new path already; only the stored path changes.
func (m *MetadataFile) Relink(libraryID uuid.UUID, newLocationPath string) error {
	lib, ok := m.metadata.Libraries[libraryID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, libraryID)
	}
	if lib.Path == newLocationPath {
		return fmt.Errorf("%w: %s", ErrRelinkSamePath, newLocationPath)
	}

	lib.Path = newLocationPath
	lib.UpdatedAt = time.Now().UTC()
	m.metadata.Libraries[libraryID] = lib

	m.path = filepath.Join(newLocationPath, MetadataFileName)
	return m.write()
}

// Update renames the location for one library.
func (m *MetadataFile) Update(libraryID uuid.UUID, name string) error {
	lib, ok := m.metadata.Libraries[libraryID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, libraryID)
	}

	lib.Name = name
	lib.UpdatedAt = time.Now().UTC()
	m.metadata.Libraries[libraryID] = lib
	return m.write()
}

// CleanStaleLibraries removes entries for libraries not in the given
// set, returning how many were dropped. The file is deleted if nothing
// remains.
func (m *MetadataFile) CleanStaleLibraries(existing []uuid.UUID) (int, error) {
	keep := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		keep[id] = true
	}

	removed := 0
	for id := range m.metadata.Libraries {
		if !keep[id] {
			delete(m.metadata.Libraries, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	if len(m.metadata.Libraries) == 0 {
		return removed, m.removeFile()
	}
	return removed, m.write()
}

// LocationPubID returns the location's sync identity as recorded by one
// library.
func (m *MetadataFile) LocationPubID(libraryID uuid.UUID) (uuid.UUID, error) {
	lib, ok := m.metadata.Libraries[libraryID]
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, libraryID)
	}
	return lib.PubID, nil
}

// HasLibrary reports whether a library has registered this location.
func (m *MetadataFile) HasLibrary(libraryID uuid.UUID) bool {
	_, ok := m.metadata.Libraries[libraryID]
	return ok
}

// IsEmpty reports whether no library references this location.
func (m *MetadataFile) IsEmpty() bool {
	return len(m.metadata.Libraries) == 0
}

// Path returns the sidecar file's current path.
func (m *MetadataFile) Path() string {
	return m.path
}

func (m *MetadataFile) write() error {
	data, err := json.MarshalIndent(m.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize location metadata: %w", err)
	}

	// Write-then-rename so a crash mid-write never leaves a truncated
	// sidecar behind.
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write location metadata %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace location metadata %s: %w", m.path, err)
	}
	return nil
}

func (m *MetadataFile) removeFile() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete location metadata %s: %w", m.path, err)
	}
	return nil
}
