package uploadbroker

import (
	"context"
	"io"
	"time"
)

// BlobStore defines the interface for storage backends.
//
// Head must return ErrObjectNotFound (possibly wrapped) when and only when
// the key has no bytes in the store; every other failure must surface as-is
// so callers can tell missing objects apart from infrastructure problems.
type BlobStore interface {
	// Head probes the store for the key's existence and metadata
	Head(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// ReplaceMetadata replaces the key's metadata attributes in place,
	// preserving the object's bytes
	ReplaceMetadata(ctx context.Context, objectKey string, metadata map[string]string) error

	// PresignUpload returns a grant for a single constrained deposit to the key
	PresignUpload(ctx context.Context, objectKey string, expiresIn time.Duration) (*UploadGrant, error)

	// PresignDownload returns a time-limited read-only URL for the key
	PresignDownload(ctx context.Context, objectKey string, expiresIn time.Duration) (string, error)

	// Upload deposits content directly, bypassing grants
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download reads content directly, bypassing grants
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error
}
