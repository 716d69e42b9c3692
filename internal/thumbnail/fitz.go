package thumbnail

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes the first PDF page with MuPDF. It is the preferred
// PDF renderer since it needs no external binary.
type FitzRenderer struct{}

// NewFitzRenderer builds a FitzRenderer.
func NewFitzRenderer() *FitzRenderer { return &FitzRenderer{} }

// Name identifies the renderer in results and metrics.
func (*FitzRenderer) Name() string { return "mupdf" }

// Supports reports whether the renderer can handle the content type.
func (*FitzRenderer) Supports(contentType string) bool {
	return strings.Contains(contentType, "pdf")
}

// Render opens the document and rasterizes page one.
func (*FitzRenderer) Render(ctx context.Context, path string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rasterize first page: %w", err)
	}
	return img, nil
}
