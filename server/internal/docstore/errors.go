package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store operations. Match them with errors.Is.
var (
	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateID is returned by AppendDocument when the id already exists.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrMissingID is returned when a document has no non-empty string id.
	ErrMissingID = errors.New("document has no id")

	// ErrInvalidName is returned for collection names that could escape the
	// data root or collide with temp files.
	ErrInvalidName = errors.New("invalid collection name")

	// ErrParse is matched by *ParseError.
	ErrParse = errors.New("malformed json")
)

// StorageError reports an I/O failure that outlived the retry budget.
type StorageError struct {
	Op         string // "read", "write", "encode", "mkdir"
	Collection string
	Attempts   int
	Err        error
}

func (e *StorageError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("docstore: %s %q failed after %d attempts: %v", e.Op, e.Collection, e.Attempts, e.Err)
	}
	return fmt.Sprintf("docstore: %s %q: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError is returned when an update references an unknown id.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("docstore: %s/%s: %v", e.Collection, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError reports JSON that could not be decoded. Source is a collection
// name or a file path.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("docstore: parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
