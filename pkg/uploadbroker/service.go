package uploadbroker

import "context"

// Service defines the upload lifecycle operations.
//
// An identifier moves through three states: absent (no bytes), reserved
// (grant issued, bytes may or may not exist yet), uploaded (confirmed).
// CreateUpload never touches the store; ConfirmUpload and RequestDownload
// derive all decisions from a fresh store probe.
type Service interface {
	// CreateUpload mints a new identifier and issues its upload grant
	CreateUpload(ctx context.Context) (*Upload, error)

	// ConfirmUpload marks the object as uploaded if and only if its bytes
	// exist in the store. Confirming an already-uploaded object is a no-op
	// success.
	ConfirmUpload(ctx context.Context, req ConfirmUploadRequest) error

	// RequestDownload issues a download grant if and only if the object
	// exists and is marked uploaded
	RequestDownload(ctx context.Context, req DownloadRequest) (*DownloadGrant, error)
}
