package uploadbroker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultUploadGrantTTL is the lifetime of issued upload grants.
	DefaultUploadGrantTTL = 1 * time.Hour

	// DefaultDownloadGrantTTL is used when a download request carries no TTL.
	DefaultDownloadGrantTTL = 1 * time.Hour
)

// service is the stateless lifecycle coordinator. Every decision is derived
// from a fresh store probe; nothing is cached across requests.
type service struct {
	store              BlobStore
	backendName        string
	newID              func() string
	uploadGrantTTL     time.Duration
	defaultDownloadTTL time.Duration
	maxDownloadTTL     time.Duration
}

// Option configures the service.
type Option func(*service)

// WithBlobStore sets the backing blob store. Required.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.store = store
	}
}

// WithIDGenerator overrides identifier generation. The default mints
// version-4 UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *service) {
		s.newID = fn
	}
}

// WithUploadGrantTTL sets the lifetime of issued upload grants.
func WithUploadGrantTTL(d time.Duration) Option {
	return func(s *service) {
		s.uploadGrantTTL = d
	}
}

// WithDefaultDownloadTTL sets the download grant lifetime used when a
// request does not carry one.
func WithDefaultDownloadTTL(d time.Duration) Option {
	return func(s *service) {
		s.defaultDownloadTTL = d
	}
}

// WithMaxDownloadTTL caps caller-supplied download grant lifetimes.
// Requests above the cap are clamped. Zero disables the cap.
func WithMaxDownloadTTL(d time.Duration) Option {
	return func(s *service) {
		s.maxDownloadTTL = d
	}
}

// New creates a lifecycle coordinator over the given blob store.
func New(opts ...Option) (Service, error) {
	s := &service{
		newID:              uuid.NewString,
		uploadGrantTTL:     DefaultUploadGrantTTL,
		defaultDownloadTTL: DefaultDownloadGrantTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		return nil, errors.New("blob store is required")
	}
	if s.uploadGrantTTL <= 0 || s.defaultDownloadTTL <= 0 {
		return nil, errors.New("grant TTLs must be positive")
	}

	return s, nil
}

// CreateUpload mints a fresh identifier and issues its upload grant. The
// store is not touched: the identifier cannot exist yet, so there is
// nothing to check, and validation is deferred to ConfirmUpload.
func (s *service) CreateUpload(ctx context.Context) (*Upload, error) {
	id := s.newID()

	grant, err := s.store.PresignUpload(ctx, id, s.uploadGrantTTL)
	if err != nil {
		return nil, &StorageError{Backend: s.backendName, Key: id, Op: "presign_upload", Err: err}
	}

	return &Upload{ID: id, Grant: grant}, nil
}

// ConfirmUpload verifies the claimed status and the presence of the
// object's bytes, then flips the status attribute to "uploaded" in place.
// The grant only authorized the client to write directly to the backend, so
// the bytes must be verified here before the claim is trusted.
func (s *service) ConfirmUpload(ctx context.Context, req ConfirmUploadRequest) error {
	if req.Status != string(StatusUploaded) {
		return ErrInvalidStatus
	}

	meta, err := s.head(ctx, req.ObjectID)
	if err != nil {
		return err
	}

	// Carry existing attributes forward through the replace; two concurrent
	// confirmations commute because the write is the same either way.
	attrs := make(map[string]string, len(meta.Metadata)+1)
	for k, v := range meta.Metadata {
		attrs[k] = v
	}
	attrs[MetadataStatusKey] = string(StatusUploaded)

	if err := s.store.ReplaceMetadata(ctx, req.ObjectID, attrs); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return ErrObjectNotFound
		}
		return &StorageError{Backend: s.backendName, Key: req.ObjectID, Op: "replace_metadata", Err: err}
	}

	return nil
}

// RequestDownload issues a download grant for an object that exists and has
// been confirmed. Existence alone is not enough: bytes may be present for
// an upload that was never confirmed, and those must not be exposed.
func (s *service) RequestDownload(ctx context.Context, req DownloadRequest) (*DownloadGrant, error) {
	if req.TTLSeconds < 0 {
		return nil, ErrInvalidTTL
	}

	ttl := s.defaultDownloadTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if s.maxDownloadTTL > 0 && ttl > s.maxDownloadTTL {
		ttl = s.maxDownloadTTL
	}

	meta, err := s.head(ctx, req.ObjectID)
	if err != nil {
		return nil, err
	}
	if !meta.Uploaded() {
		return nil, ErrObjectNotReady
	}

	url, err := s.store.PresignDownload(ctx, req.ObjectID, ttl)
	if err != nil {
		return nil, &StorageError{Backend: s.backendName, Key: req.ObjectID, Op: "presign_download", Err: err}
	}

	return &DownloadGrant{URL: url, ExpiresAt: time.Now().Add(ttl)}, nil
}

// head probes the store, keeping the not-found signal distinct from every
// other backend failure.
func (s *service) head(ctx context.Context, objectKey string) (*ObjectMeta, error) {
	meta, err := s.store.Head(ctx, objectKey)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, &StorageError{Backend: s.backendName, Key: objectKey, Op: "head", Err: err}
	}
	return meta, nil
}
