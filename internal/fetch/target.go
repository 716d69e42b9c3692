package fetch

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/paperboydev/paperboy/internal/edition"
)

// Target describes one edition acquisition: where the edition page lives and
// where the artifact lands on disk.
type Target struct {
	Run         edition.RunContext
	PageURL     string
	DownloadDir string
}

// artifactExtensions, checked in preference order for existing artifacts.
var artifactExtensions = []string{".pdf", ".html"}

// BaseName is the canonical artifact name for the run date, without extension.
func (t Target) BaseName() string {
	return t.Run.DateString() + "_edition"
}

// PathFor returns the canonical artifact path for a content type.
func (t Target) PathFor(contentType string) string {
	ext := ".html"
	if strings.Contains(contentType, "pdf") {
		ext = ".pdf"
	}
	return filepath.Join(t.DownloadDir, t.BaseName()+ext)
}

// StagingPath is where strategies write before the content type is known.
func (t Target) StagingPath() string {
	return filepath.Join(t.DownloadDir, t.BaseName()+".download")
}

// ExistingArtifact reports a previously downloaded artifact for the run date,
// if one exists.
func (t Target) ExistingArtifact() (string, bool) {
	for _, ext := range artifactExtensions {
		p := filepath.Join(t.DownloadDir, t.BaseName()+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return p, true
		}
	}
	return "", false
}

// BuildPageURL substitutes the run date into the edition path template and
// resolves it against the site base URL.
func BuildPageURL(baseURL, editionPath string, run edition.RunContext) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	path := strings.ReplaceAll(editionPath, "{date}", run.DateString())
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse edition path: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
