package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/upload-broker/pkg/uploadbroker"
)

// Backend is an in-memory implementation of the uploadbroker.BlobStore
// interface. Grants are minted locally as memory:// URLs carrying an
// expires timestamp; they are not enforceable but keep the full lifecycle
// testable without a real object store.
type Backend struct {
	mu       sync.RWMutex
	objects  map[string][]byte
	metadata map[string]map[string]string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

// Head retrieves metadata for an object in memory
func (b *Backend) Head(ctx context.Context, objectKey string) (*uploadbroker.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, uploadbroker.ErrObjectNotFound
	}

	attrs := make(map[string]string, len(b.metadata[objectKey]))
	for k, v := range b.metadata[objectKey] {
		attrs[k] = v
	}

	return &uploadbroker.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(data)),
		ContentType: "application/octet-stream",
		Metadata:    attrs,
	}, nil
}

// ReplaceMetadata replaces an object's metadata attributes, preserving its bytes
func (b *Backend) ReplaceMetadata(ctx context.Context, objectKey string, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return uploadbroker.ErrObjectNotFound
	}

	attrs := make(map[string]string, len(metadata))
	for k, v := range metadata {
		attrs[k] = v
	}
	b.metadata[objectKey] = attrs
	return nil
}

// PresignUpload returns a locally minted upload grant scoped to the key
func (b *Backend) PresignUpload(ctx context.Context, objectKey string, expiresIn time.Duration) (*uploadbroker.UploadGrant, error) {
	expiresAt := time.Now().Add(expiresIn)
	return &uploadbroker.UploadGrant{
		URL: "memory:///upload",
		Fields: map[string]string{
			"key":     objectKey,
			"expires": fmt.Sprintf("%d", expiresAt.Unix()),
		},
		ExpiresAt: expiresAt,
	}, nil
}

// PresignDownload returns a locally minted download URL for the key
func (b *Backend) PresignDownload(ctx context.Context, objectKey string, expiresIn time.Duration) (string, error) {
	expiresAt := time.Now().Add(expiresIn)
	return fmt.Sprintf("memory:///%s?expires=%d", objectKey, expiresAt.Unix()), nil
}

// Upload deposits content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	if _, exists := b.metadata[objectKey]; !exists {
		b.metadata[objectKey] = make(map[string]string)
	}
	return nil
}

// Download reads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, uploadbroker.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete deletes content and its metadata
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return uploadbroker.ErrObjectNotFound
	}

	delete(b.objects, objectKey)
	delete(b.metadata, objectKey)
	return nil
}
