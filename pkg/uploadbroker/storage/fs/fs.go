package fs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tendant/upload-broker/pkg/uploadbroker"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // URL prefix for grant URLs, e.g. "http://localhost:8080/files"
	SecretKey string // Optional HMAC key; when set, grant URLs carry a signature
}

// Backend is a filesystem implementation of the uploadbroker.BlobStore
// interface. Grants are URLs under the configured prefix, optionally signed
// with HMAC-SHA256 so the serving process can verify them. Metadata lives in
// JSON sidecar files under a .meta directory next to the objects.
type Backend struct {
	mu        sync.RWMutex
	baseDir   string
	urlPrefix string
	secretKey []byte
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.URLPrefix == "" {
		return nil, errors.New("URL prefix is required")
	}

	if err := os.MkdirAll(filepath.Join(config.BaseDir, ".meta"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: config.URLPrefix,
		secretKey: []byte(config.SecretKey),
	}, nil
}

func (b *Backend) objectPath(objectKey string) string {
	return filepath.Join(b.baseDir, objectKey)
}

func (b *Backend) metaPath(objectKey string) string {
	return filepath.Join(b.baseDir, ".meta", objectKey+".json")
}

// Head probes the filesystem for the object and its metadata sidecar
func (b *Backend) Head(ctx context.Context, objectKey string) (*uploadbroker.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	info, err := os.Stat(b.objectPath(objectKey))
	if os.IsNotExist(err) {
		return nil, uploadbroker.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	attrs := make(map[string]string)
	if raw, err := os.ReadFile(b.metaPath(objectKey)); err == nil {
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return nil, fmt.Errorf("failed to decode metadata sidecar: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read metadata sidecar: %w", err)
	}

	return &uploadbroker.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: "application/octet-stream",
		UpdatedAt:   info.ModTime(),
		Metadata:    attrs,
	}, nil
}

// ReplaceMetadata rewrites the object's metadata sidecar, preserving the bytes
func (b *Backend) ReplaceMetadata(ctx context.Context, objectKey string, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.objectPath(objectKey)); os.IsNotExist(err) {
		return uploadbroker.ErrObjectNotFound
	} else if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := os.WriteFile(b.metaPath(objectKey), raw, 0644); err != nil {
		return fmt.Errorf("failed to write metadata sidecar: %w", err)
	}

	return nil
}

// PresignUpload returns a signed upload URL grant scoped to the key
func (b *Backend) PresignUpload(ctx context.Context, objectKey string, expiresIn time.Duration) (*uploadbroker.UploadGrant, error) {
	expiresAt := time.Now().Add(expiresIn)
	url := b.signedURL("POST", "/upload/"+objectKey, expiresAt)

	return &uploadbroker.UploadGrant{
		URL: url,
		Fields: map[string]string{
			"key": objectKey,
		},
		ExpiresAt: expiresAt,
	}, nil
}

// PresignDownload returns a signed download URL for the key
func (b *Backend) PresignDownload(ctx context.Context, objectKey string, expiresIn time.Duration) (string, error) {
	expiresAt := time.Now().Add(expiresIn)
	return b.signedURL("GET", "/download/"+objectKey, expiresAt), nil
}

// Upload writes content directly to the filesystem
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	filePath := b.objectPath(objectKey)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Download reads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	file, err := os.Open(b.objectPath(objectKey))
	if os.IsNotExist(err) {
		return nil, uploadbroker.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete deletes content and its metadata sidecar
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	filePath := b.objectPath(objectKey)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return uploadbroker.ErrObjectNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Sidecar may not exist for never-confirmed objects
	if err := os.Remove(b.metaPath(objectKey)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete metadata sidecar: %w", err)
	}

	return nil
}

// signedURL builds a grant URL, appending an HMAC-SHA256 signature over
// METHOD|PATH|EXPIRES when a secret key is configured.
func (b *Backend) signedURL(method, path string, expiresAt time.Time) string {
	if len(b.secretKey) == 0 {
		return fmt.Sprintf("%s%s?expires=%d", b.urlPrefix, path, expiresAt.Unix())
	}

	payload := fmt.Sprintf("%s|%s|%d", method, path, expiresAt.Unix())
	h := hmac.New(sha256.New, b.secretKey)
	h.Write([]byte(payload))
	signature := hex.EncodeToString(h.Sum(nil))

	return fmt.Sprintf("%s%s?signature=%s&expires=%d", b.urlPrefix, path, signature, expiresAt.Unix())
}

// Validate checks a signature produced by signedURL for the given method,
// path and expiry. It reports expired grants before bad signatures and uses
// a constant-time comparison.
func (b *Backend) Validate(method, path, signature string, expiresAt int64) error {
	if time.Now().Unix() > expiresAt {
		return errors.New("grant expired")
	}

	payload := fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
	h := hmac.New(sha256.New, b.secretKey)
	h.Write([]byte(payload))
	expected := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return errors.New("invalid grant signature")
	}

	return nil
}
