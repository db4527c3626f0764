package storage

import (
	"context"
	"fmt"
	"time"
)

// Backend is a flat key/value blob store. Keys use forward slashes on every
// backend. Missing keys are reported with errors wrapping fs.ErrNotExist.
type Backend interface {
	// Name identifies the backend in metrics and logs
	Name() string

	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key and reports whether it existed
	Delete(ctx context.Context, key string) (bool, error)

	// Walk calls fn for every blob under prefix. It stops at the first
	// error returned by fn or when ctx is done.
	Walk(ctx context.Context, prefix string, fn func(key string, size int64) error) error

	Ping(ctx context.Context) error
}

// Config for storage backend
type Config struct {
	Type string // "filesystem" or "s3"

	// Filesystem config
	FilesystemRoot string

	// S3 config
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3CreateBucket bool

	// Upload limits in bytes
	MaxUploadSize  int64
	MaxReplaceSize int64

	// ScanBudget bounds a usage scan
	ScanBudget time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:           "filesystem",
		FilesystemRoot: "/var/lib/docvault",
		S3Region:       "us-east-1",
		MaxUploadSize:  MaxUploadSize,
		MaxReplaceSize: MaxReplaceSize,
		ScanBudget:     DefaultScanBudget,
	}
}

// NewBackend creates the backend selected by cfg.Type
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case "filesystem":
		return NewFilesystemBackend(cfg.FilesystemRoot)
	case "s3":
		return NewS3Backend(ctx, cfg)
	default:
		return nil, fmt.Errorf("invalid storage type: %s (must be filesystem or s3)", cfg.Type)
	}
}
