package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/upload-broker/pkg/uploadbroker"
	fsstorage "github.com/tendant/upload-broker/pkg/uploadbroker/storage/fs"
	memorystorage "github.com/tendant/upload-broker/pkg/uploadbroker/storage/memory"
	s3storage "github.com/tendant/upload-broker/pkg/uploadbroker/storage/s3"
)

// ServerConfig is the full configuration for the upload broker server
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	Storage StorageConfig
	Grants  GrantConfig
}

// StorageConfig selects and configures the blob store backend
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" env-default:"memory"`
	FS      FSConfig
	S3      S3Config
}

// FSConfig configures the filesystem backend
type FSConfig struct {
	BaseDir   string `env:"FS_BASE_DIR"`
	URLPrefix string `env:"FS_URL_PREFIX" env-default:"http://localhost:8080/files"`
	SecretKey string `env:"FS_SECRET_KEY"`
}

// S3Config configures the S3 backend
type S3Config struct {
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Bucket          string `env:"AWS_S3_BUCKET"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// GrantConfig configures grant lifetimes, in seconds
type GrantConfig struct {
	UploadTTLSeconds          int `env:"UPLOAD_GRANT_TTL" env-default:"3600"`
	DefaultDownloadTTLSeconds int `env:"DEFAULT_DOWNLOAD_TTL" env-default:"3600"`
	MaxDownloadTTLSeconds     int `env:"MAX_DOWNLOAD_TTL" env-default:"86400"`
}

// Load reads the server configuration from environment variables
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for internal consistency
func (c *ServerConfig) Validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "fs":
		if c.Storage.FS.BaseDir == "" {
			return errors.New("FS_BASE_DIR is required for the fs backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (use 'memory', 'fs' or 's3')", c.Storage.Backend)
	}

	if c.Grants.UploadTTLSeconds <= 0 {
		return errors.New("upload grant TTL must be positive")
	}
	if c.Grants.DefaultDownloadTTLSeconds <= 0 {
		return errors.New("default download TTL must be positive")
	}
	if c.Grants.MaxDownloadTTLSeconds < 0 {
		return errors.New("max download TTL must not be negative")
	}
	if c.Grants.MaxDownloadTTLSeconds > 0 &&
		c.Grants.MaxDownloadTTLSeconds < c.Grants.DefaultDownloadTTLSeconds {
		return errors.New("max download TTL must not be below the default")
	}

	return nil
}

// BuildService constructs the lifecycle service from the configuration
func (c *ServerConfig) BuildService() (uploadbroker.Service, error) {
	store, err := c.buildBlobStore()
	if err != nil {
		return nil, err
	}

	return uploadbroker.New(
		uploadbroker.WithBlobStore(c.Storage.Backend, store),
		uploadbroker.WithUploadGrantTTL(time.Duration(c.Grants.UploadTTLSeconds)*time.Second),
		uploadbroker.WithDefaultDownloadTTL(time.Duration(c.Grants.DefaultDownloadTTLSeconds)*time.Second),
		uploadbroker.WithMaxDownloadTTL(time.Duration(c.Grants.MaxDownloadTTLSeconds)*time.Second),
	)
}

func (c *ServerConfig) buildBlobStore() (uploadbroker.BlobStore, error) {
	switch c.Storage.Backend {
	case "memory":
		return memorystorage.New(), nil
	case "fs":
		backend, err := fsstorage.New(fsstorage.Config{
			BaseDir:   c.Storage.FS.BaseDir,
			URLPrefix: c.Storage.FS.URLPrefix,
			SecretKey: c.Storage.FS.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem backend: %w", err)
		}
		return backend, nil
	case "s3":
		backend, err := s3storage.New(s3storage.Config{
			Region:                 c.Storage.S3.Region,
			Bucket:                 c.Storage.S3.Bucket,
			AccessKeyID:            c.Storage.S3.AccessKeyID,
			SecretAccessKey:        c.Storage.S3.SecretAccessKey,
			Endpoint:               c.Storage.S3.Endpoint,
			UsePathStyle:           c.Storage.S3.UsePathStyle,
			CreateBucketIfNotExist: c.Storage.S3.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 backend: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
}
