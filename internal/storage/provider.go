// Package storage archives edition artifacts in a blob store. Providers for
// Google Cloud Storage, S3-compatible services (including Cloudflare R2), the
// local filesystem, and a no-op dry-run store are included.
package storage

import (
	"context"
	"errors"
	"path"
	"time"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object describes one stored artifact.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Provider is a blob store for edition artifacts and thumbnails.
type Provider interface {
	// Name identifies the provider in logs and run records.
	Name() string
	// Upload stores the local file under key and returns a provider URI.
	Upload(ctx context.Context, key, localPath, contentType string) (string, error)
	// List returns the objects under prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a time-limited download link for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Close releases provider resources.
	Close() error
}

// Key joins a configured prefix and an object name into a store key.
func Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
