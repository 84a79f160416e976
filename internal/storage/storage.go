// Package storage provides the object stores storybook builds are
// written to: a local-disk backend for single-node deployments and an
// S3 backend for anything shared.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrObjectNotFound reports a read of a key that does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the blob interface the upload pipeline writes through.
// Keys are slash-separated paths; a build occupies a key prefix and is
// deleted as one.
type ObjectStore interface {
	// Put stores body under key, replacing any existing object, and
	// returns the number of bytes written.
	Put(ctx context.Context, key string, body io.Reader) (int64, error)

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Stat describes the object at key without opening it.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns the objects under prefix sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// ListPrefixes returns the immediate child prefixes under prefix,
	// without the trailing slash. Listing "projects/p/builds" yields one
	// entry per build id.
	ListPrefixes(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a single object. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Ping verifies the backend is reachable and writable.
	Ping(ctx context.Context) error
}

// Config selects and parameterizes the object store backend.
type Config struct {
	// Backend is "local" or "s3". Empty means local.
	Backend string

	// LocalDir is the root directory of the local backend.
	LocalDir string

	S3 S3Config
}

// Open builds the configured object store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalDir, logger)
	case "s3":
		return NewS3(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (available: local, s3)", cfg.Backend)
	}
}
