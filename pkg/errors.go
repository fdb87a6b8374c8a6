package dirblockcheck

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDirectory is returned when a scanned directory has no entries at all
	ErrEmptyDirectory = errors.New("directory is empty")
	// ErrCancelled is returned when a scan or hash is interrupted through its context
	ErrCancelled = errors.New("operation cancelled")
	// ErrInvalidBlockSize is returned for non-positive or oversized block sizes
	ErrInvalidBlockSize = errors.New("invalid block size")
)

// DirectoryError reports a directory that could not be listed, or that was empty
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// FileReadError reports a file that could not be opened or read
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// CorruptSnapshotError reports a persisted snapshot that does not match the schema.
// Record is -1 when the problem is in the document itself rather than a record.
type CorruptSnapshotError struct {
	Path   string
	Record int
	Field  string
	Err    error
}

func (e *CorruptSnapshotError) Error() string {
	switch {
	case e.Record >= 0 && e.Field != "":
		return fmt.Sprintf("corrupt snapshot %s: record %d: field %q: %v", e.Path, e.Record, e.Field, e.Err)
	case e.Record >= 0:
		return fmt.Sprintf("corrupt snapshot %s: record %d: %v", e.Path, e.Record, e.Err)
	case e.Field != "":
		return fmt.Sprintf("corrupt snapshot %s: field %q: %v", e.Path, e.Field, e.Err)
	default:
		return fmt.Sprintf("corrupt snapshot %s: %v", e.Path, e.Err)
	}
}

func (e *CorruptSnapshotError) Unwrap() error { return e.Err }

// SerializationError reports a snapshot that could not be persisted
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to write snapshot %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// ValidateBlockSize checks that a block size can be used for hashing
func ValidateBlockSize(blockSize int) error {
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidBlockSize, blockSize)
	}
	if blockSize > MaxBlockSize {
		return fmt.Errorf("%w: %d (must not exceed %d)", ErrInvalidBlockSize, blockSize, MaxBlockSize)
	}
	return nil
}
