package memory_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/upload-broker/pkg/uploadbroker"
	memorystorage "github.com/tendant/upload-broker/pkg/uploadbroker/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "test/object/key"
	testData := "Hello, World! This is test data."

	t.Run("Upload", func(t *testing.T) {
		reader := strings.NewReader(testData)
		err := backend.Upload(ctx, testKey, reader)
		assert.NoError(t, err)
	})

	t.Run("Head", func(t *testing.T) {
		meta, err := backend.Head(ctx, testKey)
		assert.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.False(t, meta.Uploaded())
	})

	t.Run("Head_NotFound", func(t *testing.T) {
		meta, err := backend.Head(ctx, "nonexistent/key")
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
		assert.Nil(t, meta)
	})

	t.Run("ReplaceMetadata", func(t *testing.T) {
		err := backend.ReplaceMetadata(ctx, testKey, map[string]string{"status": "uploaded"})
		assert.NoError(t, err)

		meta, err := backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.True(t, meta.Uploaded())

		// Replace is wholesale: earlier attributes not carried by the caller
		// disappear
		err = backend.ReplaceMetadata(ctx, testKey, map[string]string{"origin": "test"})
		require.NoError(t, err)

		meta, err = backend.Head(ctx, testKey)
		require.NoError(t, err)
		assert.False(t, meta.Uploaded())
		assert.Equal(t, "test", meta.Metadata["origin"])
	})

	t.Run("ReplaceMetadata_NotFound", func(t *testing.T) {
		err := backend.ReplaceMetadata(ctx, "nonexistent/key", map[string]string{"status": "uploaded"})
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
	})

	t.Run("PresignUpload", func(t *testing.T) {
		grant, err := backend.PresignUpload(ctx, "fresh/key", 1*time.Hour)
		require.NoError(t, err)
		require.NotNil(t, grant)
		assert.Equal(t, "fresh/key", grant.Fields["key"])
		assert.WithinDuration(t, time.Now().Add(1*time.Hour), grant.ExpiresAt, 5*time.Second)
	})

	t.Run("PresignDownload", func(t *testing.T) {
		url, err := backend.PresignDownload(ctx, testKey, 30*time.Second)
		require.NoError(t, err)
		assert.Contains(t, url, testKey)
		assert.Contains(t, url, "expires=")
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		downloadedData, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, testData, string(downloadedData))
	})

	t.Run("Delete", func(t *testing.T) {
		deleteKey := "test/object/delete"

		reader := strings.NewReader(testData)
		require.NoError(t, backend.Upload(ctx, deleteKey, reader))

		err := backend.Delete(ctx, deleteKey)
		assert.NoError(t, err)

		_, err = backend.Head(ctx, deleteKey)
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
	})

	t.Run("ErrorCases", func(t *testing.T) {
		nonExistentKey := "nonexistent/key"

		reader, err := backend.Download(ctx, nonExistentKey)
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
		assert.Nil(t, reader)

		err = backend.Delete(ctx, nonExistentKey)
		assert.ErrorIs(t, err, uploadbroker.ErrObjectNotFound)
	})
}

func TestMemoryBackendMetadataIsolation(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "isolation/key"

	require.NoError(t, backend.Upload(ctx, testKey, strings.NewReader("data")))
	require.NoError(t, backend.ReplaceMetadata(ctx, testKey, map[string]string{"status": "uploaded"}))

	// Mutating a returned metadata map must not leak into the store
	meta, err := backend.Head(ctx, testKey)
	require.NoError(t, err)
	meta.Metadata["status"] = "tampered"

	meta, err = backend.Head(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, "uploaded", meta.Metadata["status"])
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()

	const numGoroutines = 10
	const numOperations = 50

	done := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(goroutineID int) {
			defer func() { done <- true }()

			for j := 0; j < numOperations; j++ {
				testKey := fmt.Sprintf("concurrent/test/%d/%d", goroutineID, j)
				testData := fmt.Sprintf("Test data from goroutine %d, operation %d", goroutineID, j)

				reader := strings.NewReader(testData)
				require.NoError(t, backend.Upload(ctx, testKey, reader))

				require.NoError(t, backend.ReplaceMetadata(ctx, testKey, map[string]string{"status": "uploaded"}))

				meta, err := backend.Head(ctx, testKey)
				require.NoError(t, err)
				assert.True(t, meta.Uploaded())

				require.NoError(t, backend.Delete(ctx, testKey))
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}
}

func BenchmarkMemoryBackendHead(b *testing.B) {
	backend := memorystorage.New()
	ctx := context.Background()

	if err := backend.Upload(ctx, "bench/key", strings.NewReader("benchmark data")); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := backend.Head(ctx, "bench/key"); err != nil {
			b.Fatal(err)
		}
	}
}
