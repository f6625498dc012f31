package fs_test

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/upload-broker/pkg/uploadbroker"
	fsstorage "github.com/tendant/upload-broker/pkg/uploadbroker/storage/fs"
)

func newTestBackend(t *testing.T, secretKey string) *fsstorage.Backend {
	backend, err := fsstorage.New(fsstorage.Config{
		BaseDir:   t.TempDir(),
		URLPrefix: "http://localhost:8080/files",
		SecretKey: secretKey,
	})
	require.NoError(t, err)
	return backend
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := fsstorage.New(fsstorage.Config{URLPrefix: "http://localhost"})
	assert.Error(t, err)

	_, err = fsstorage.New(fsstorage.Config{BaseDir: t.TempDir()})
	assert.Error(t, err)
}

func TestFSBackend(t *testing.T) {
	backend := newTestBackend(t, "")
	ctx := context.Background()
	testKey := "test-object-key"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		assert.NoError(t, err)
	})

	t.Run("Head", func(t *testing.T) {
		meta, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.False(t, meta.Uploaded())
	})

	t.Run("Head_NotFound", func(t *testing.T) {
		meta, err := backend.Head(ctx, "nonexistent-key")
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
		assert.Nil(t, meta)
	})

	t.Run("ReplaceMetadata", func(t *testing.T) {
		err := backend.ReplaceMetadata(ctx, testKey, map[string]string{"status": "uploaded"})
		require.NoError(t, err)

		meta, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.True(t, meta.Uploaded())
	})

	t.Run("ReplaceMetadata_NotFound", func(t *testing.T) {
		err := backend.ReplaceMetadata(ctx, "nonexistent-key", map[string]string{"status": "uploaded"})
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
	})

	t.Run("MetadataSurvivesReupload", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, testKey, strings.NewReader("new bytes")))

		meta, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.True(t, meta.Uploaded())
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, "new bytes", string(data))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))

		_, err := backend.Head(ctx, testKey)
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)

		err = backend.Delete(ctx, testKey)
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
	})
}

func TestFSBackendGrants(t *testing.T) {
	ctx := context.Background()

	t.Run("UnsignedWithoutSecret", func(t *testing.T) {
		backend := newTestBackend(t, "")

		grant, err := backend.PresignUpload(ctx, "some-key", 1*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "some-key", grant.Fields["key"])
		assert.Contains(t, grant.URL, "/upload/some-key")
		assert.Contains(t, grant.URL, "expires=")
		assert.NotContains(t, grant.URL, "signature=")
	})

	t.Run("SignedWithSecret", func(t *testing.T) {
		backend := newTestBackend(t, "test-secret")

		downloadURL, err := backend.PresignDownload(ctx, "some-key", 30*time.Second)
		require.NoError(t, err)

		parsed, err := url.Parse(downloadURL)
		require.NoError(t, err)

		signature := parsed.Query().Get("signature")
		require.NotEmpty(t, signature)

		expiresAt, err := strconv.ParseInt(parsed.Query().Get("expires"), 10, 64)
		require.NoError(t, err)
		assert.InDelta(t, time.Now().Add(30*time.Second).Unix(), expiresAt, 5)

		assert.NoError(t, backend.Validate("GET", "/download/some-key", signature, expiresAt))
		assert.Error(t, backend.Validate("GET", "/download/other-key", signature, expiresAt))
		assert.Error(t, backend.Validate("GET", "/download/some-key", "bogus", expiresAt))
	})

	t.Run("ExpiredGrantRejected", func(t *testing.T) {
		backend := newTestBackend(t, "test-secret")

		err := backend.Validate("GET", "/download/some-key", "anything", time.Now().Add(-time.Minute).Unix())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})
}
