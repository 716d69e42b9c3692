package thumbnail

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// PopplerRenderer shells out to pdftoppm as the secondary PDF renderer, for
// documents MuPDF chokes on.
type PopplerRenderer struct {
	binary string
}

// NewPopplerRenderer builds a PopplerRenderer. An empty binary defaults to
// "pdftoppm" on PATH.
func NewPopplerRenderer(binary string) *PopplerRenderer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PopplerRenderer{binary: binary}
}

// Name identifies the renderer in results and metrics.
func (*PopplerRenderer) Name() string { return "poppler" }

// Supports reports whether the renderer can handle the content type.
func (*PopplerRenderer) Supports(contentType string) bool {
	return strings.Contains(contentType, "pdf")
}

// Available reports whether the pdftoppm binary is installed.
func (r *PopplerRenderer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Render converts the first page to JPEG in a scratch dir and loads it.
func (r *PopplerRenderer) Render(ctx context.Context, path string) (image.Image, error) {
	if _, err := exec.LookPath(r.binary); err != nil {
		return nil, fmt.Errorf("%s not installed: %w", r.binary, err)
	}

	scratch, err := os.MkdirTemp("", "paperboy-thumb-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	prefix := filepath.Join(scratch, "page")
	cmd := exec.CommandContext(ctx, r.binary,
		"-f", "1", "-l", "1",
		"-jpeg", "-singlefile",
		"-r", "150",
		path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.binary, err, strings.TrimSpace(string(out)))
	}

	img, err := imaging.Open(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("load rendered page: %w", err)
	}
	return img, nil
}
