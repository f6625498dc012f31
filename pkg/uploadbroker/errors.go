package uploadbroker

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrObjectNotFound indicates the identifier has no bytes in the store
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectNotReady indicates object exists but is not yet marked uploaded
	ErrObjectNotReady = errors.New("object not ready for download")

	// ErrInvalidStatus indicates a confirmation carried a missing or wrong status value
	ErrInvalidStatus = errors.New("invalid upload status")

	// ErrInvalidTTL indicates a non-positive download grant lifetime
	ErrInvalidTTL = errors.New("invalid download ttl")
)

// StorageError represents a store-side failure other than the precise
// not-found signal. It always indicates an infrastructure problem and must
// never be folded into the recoverable error kinds above.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
