// Package thumbnail renders a small preview image of the day's edition. The
// preview is best-effort: a run with no thumbnail is still a successful run.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
)

var thumbnailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paperboy_thumbnails_total",
	Help: "The total number of thumbnail attempts by renderer and outcome.",
}, []string{"renderer", "outcome"})

// Renderer produces a raster image of an artifact's first page.
type Renderer interface {
	Name() string
	Supports(contentType string) bool
	Render(ctx context.Context, path string) (image.Image, error)
}

// Pipeline tries each renderer in order until one produces an image, then
// bounds it and writes a JPEG next to the artifact.
type Pipeline struct {
	renderers []Renderer
	maxDim    int
	quality   int
	logger    *zap.Logger
}

// NewPipeline builds a Pipeline over an ordered renderer cascade.
func NewPipeline(renderers []Renderer, maxDim, quality int, logger *zap.Logger) *Pipeline {
	if maxDim <= 0 {
		maxDim = 480
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{renderers: renderers, maxDim: maxDim, quality: quality, logger: logger}
}

// Generate renders a preview of the artifact. It returns nil when no renderer
// can produce one; that is a degraded outcome, not a failure.
func (p *Pipeline) Generate(ctx context.Context, artifactPath, contentType, outDir, baseName string) *edition.ThumbnailResult {
	var img image.Image
	var used string

	for _, r := range p.renderers {
		if !r.Supports(contentType) {
			continue
		}
		rendered, err := r.Render(ctx, artifactPath)
		if err != nil {
			thumbnailsTotal.WithLabelValues(r.Name(), "error").Inc()
			p.logger.Warn("thumbnail renderer failed",
				zap.String("renderer", r.Name()),
				zap.String("artifact", artifactPath),
				zap.Error(err))
			continue
		}
		img = rendered
		used = r.Name()
		break
	}
	if img == nil {
		p.logger.Warn("no thumbnail produced",
			zap.String("artifact", artifactPath),
			zap.String("content_type", contentType))
		return nil
	}

	result, err := p.write(img, used, outDir, baseName)
	if err != nil {
		thumbnailsTotal.WithLabelValues(used, "error").Inc()
		p.logger.Warn("thumbnail write failed", zap.Error(err))
		return nil
	}
	thumbnailsTotal.WithLabelValues(used, "success").Inc()
	p.logger.Info("thumbnail generated",
		zap.String("renderer", used),
		zap.String("path", result.LocalPath),
		zap.Int("width", result.Width),
		zap.Int("height", result.Height))
	return result
}

func (p *Pipeline) write(img image.Image, renderer, outDir, baseName string) (*edition.ThumbnailResult, error) {
	bounded := imaging.Fit(img, p.maxDim, p.maxDim, imaging.Lanczos)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	outPath := filepath.Join(outDir, baseName+"_thumb.jpg")
	if err := imaging.Save(bounded, outPath, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("save thumbnail: %w", err)
	}

	b := bounded.Bounds()
	return &edition.ThumbnailResult{
		LocalPath: outPath,
		Renderer:  renderer,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}
