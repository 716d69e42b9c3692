package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/paperboydev/paperboy/internal/browser"
)

// HTMLRenderer screenshots an HTML edition in headless Chrome. It reuses the
// shared browser manager, so a run that fetched over plain HTTP only launches
// Chrome if the edition is HTML.
type HTMLRenderer struct {
	manager *browser.Manager
	width   int64
	height  int64
}

// NewHTMLRenderer builds an HTMLRenderer with a newspaper-ish viewport.
func NewHTMLRenderer(manager *browser.Manager) *HTMLRenderer {
	return &HTMLRenderer{manager: manager, width: 1024, height: 1448}
}

// Name identifies the renderer in results and metrics.
func (*HTMLRenderer) Name() string { return "chromium" }

// Supports reports whether the renderer can handle the content type.
func (*HTMLRenderer) Supports(contentType string) bool {
	return strings.Contains(contentType, "html")
}

// Render loads the artifact as a file:// URL and captures the viewport.
func (r *HTMLRenderer) Render(ctx context.Context, path string) (image.Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact path: %w", err)
	}
	fileURL := url.URL{Scheme: "file", Path: abs}

	shot, err := r.manager.Screenshot(ctx, fileURL.String(), r.width, r.height)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}
