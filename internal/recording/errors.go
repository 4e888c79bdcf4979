package recording

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("recording not found")

// ErrInvalidIndexKey is returned for index keys that would not survive a
// String/ParseIndexKey round trip.
var ErrInvalidIndexKey = errors.New("invalid index key")

// NotFoundErrorCode identifies which part of the address was missing.
type NotFoundErrorCode string

const (
	// ErrCodeFileMissing indicates the recording file does not exist.
	ErrCodeFileMissing NotFoundErrorCode = "FILE_MISSING"

	// ErrCodeIndexMissing indicates the file has no entry for the index key.
	ErrCodeIndexMissing NotFoundErrorCode = "INDEX_MISSING"

	// ErrCodeHashMissing indicates the index has no entry for the content hash.
	ErrCodeHashMissing NotFoundErrorCode = "HASH_MISSING"
)

// NotFoundError reports a missing recording file, index or hash.
type NotFoundError struct {
	Code  NotFoundErrorCode
	Path  string
	Index string
	Hash  string
}

func (e *NotFoundError) Error() string {
	switch e.Code {
	case ErrCodeIndexMissing:
		return fmt.Sprintf("%s: index %q not found in %s", e.Code, e.Index, e.Path)
	case ErrCodeHashMissing:
		return fmt.Sprintf("%s: hash %q not found under index %q in %s", e.Code, e.Hash, e.Index, e.Path)
	default:
		return fmt.Sprintf("%s: recording file %s does not exist", e.Code, e.Path)
	}
}

// Is makes errors.Is(err, ErrNotFound) true for every NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
