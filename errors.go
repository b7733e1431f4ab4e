package kwfile

import "errors"

// Sentinel errors returned by File operations.
var (
	// ErrClosed is returned when an operation touches the source stream
	// after Close.
	ErrClosed = errors.New("kwfile: file is closed")

	// ErrNoRecords is returned by Open when the scan finds no keyword
	// records, which includes empty files.
	ErrNoRecords = errors.New("kwfile: no keyword records")

	// ErrBlockNotFound is returned by OpenAt when the requested block
	// does not exist in the opened file.
	ErrBlockNotFound = errors.New("kwfile: block not found")

	// ErrStaleIndex is returned when an index snapshot does not match
	// the current content of the source it was taken from.
	ErrStaleIndex = errors.New("kwfile: index snapshot is stale")

	// ErrBadSnapshot is returned when index snapshot data cannot be
	// decoded.
	ErrBadSnapshot = errors.New("kwfile: malformed index snapshot")
)
