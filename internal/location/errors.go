package location

import "errors"

// Common errors returned by location metadata operations.
//
// These errors can be checked using errors.Is() for proper error handling:
//
//	if errors.Is(err, location.ErrLibraryNotFound) {
//	    // This library never registered the location
//	}
var (
	// ErrLibraryNotFound is returned when an operation targets a library
	// that has no entry in the location's metadata file.
	ErrLibraryNotFound = errors.New("library not found in location metadata")

	// ErrRelinkSamePath is returned when a relink would record the path
	// the location already has. Relinking exists to follow a moved
	// directory, so a same-path relink is always a caller bug.
	ErrRelinkSamePath = errors.New("relink requested for the path already recorded")

	// ErrCorruptMetadata is returned in strict recovery mode when the
	// metadata file exists but cannot be parsed.
	ErrCorruptMetadata = errors.New("location metadata file is corrupt")
)
