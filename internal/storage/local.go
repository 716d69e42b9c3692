package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalProvider archives artifacts under a directory on disk. It is the
// default provider for single-machine deployments.
type LocalProvider struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*LocalProvider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{root: abs}, nil
}

// Name identifies the provider.
func (*LocalProvider) Name() string { return "local" }

// resolve maps a key to a path under root, rejecting traversal outside it.
func (p *LocalProvider) resolve(key string) (string, error) {
	full := filepath.Join(p.root, filepath.FromSlash(key))
	if full != p.root && !strings.HasPrefix(full, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return full, nil
}

// Upload copies the local file into the archive.
func (p *LocalProvider) Upload(_ context.Context, key, localPath, _ string) (string, error) {
	dest, err := p.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	_, err = io.Copy(out, src)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("copy to %s: %w", dest, err)
	}
	return (&url.URL{Scheme: "file", Path: dest}).String(), nil
}

// List walks the archive under prefix.
func (p *LocalProvider) List(_ context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := filepath.Walk(p.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		out = append(out, Object{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list local archive: %w", err)
	}
	return out, nil
}

// Delete removes a file; missing files are ignored.
func (p *LocalProvider) Delete(_ context.Context, key string) error {
	full, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", full, err)
	}
	return nil
}

// SignedURL returns a file:// link; local files need no signing, so the TTL
// is ignored.
func (p *LocalProvider) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	full, err := p.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("stat %s: %w", full, err)
	}
	return (&url.URL{Scheme: "file", Path: full}).String(), nil
}

// Close is a no-op.
func (*LocalProvider) Close() error { return nil }
