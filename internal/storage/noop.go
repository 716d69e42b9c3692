package storage

import (
	"context"
	"time"
)

// NoopProvider discards everything. Used for dry runs where the edition is
// fetched but nothing may leave the machine.
type NoopProvider struct{}

// Name identifies the provider.
func (NoopProvider) Name() string { return "noop" }

// Upload reports a fake URI without storing anything.
func (NoopProvider) Upload(_ context.Context, key, _, _ string) (string, error) {
	return "noop://" + key, nil
}

// List reports an empty archive.
func (NoopProvider) List(context.Context, string) ([]Object, error) { return nil, nil }

// Delete does nothing.
func (NoopProvider) Delete(context.Context, string) error { return nil }

// SignedURL reports a fake link.
func (NoopProvider) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "noop://" + key, nil
}

// Close does nothing.
func (NoopProvider) Close() error { return nil }
