package fetch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paperboydev/paperboy/internal/edition"
)

func writeArtifact(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestValidateAcceptsPDF(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "edition.pdf", validPDFBytes())
	contentType, size, err := Validate(path, 10, edition.StrategyHTTP)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if contentType != "application/pdf" {
		t.Fatalf("content type = %q, want application/pdf", contentType)
	}
	if size != int64(len(validPDFBytes())) {
		t.Fatalf("size = %d, want %d", size, len(validPDFBytes()))
	}
}

func TestValidateAcceptsHTMLEdition(t *testing.T) {
	t.Parallel()

	body := `<html><body><article>` + strings.Repeat("Front page news. ", 20) + `</article></body></html>`
	path := writeArtifact(t, "edition.html", []byte(body))
	contentType, _, err := Validate(path, 10, edition.StrategyHTTP)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if contentType != "text/html" {
		t.Fatalf("content type = %q, want text/html", contentType)
	}
}

func TestValidateRejectsUndersizedArtifact(t *testing.T) {
	t.Parallel()

	path := writeArtifact(t, "edition.pdf", []byte("%PDF-"))
	_, _, err := Validate(path, 1024, edition.StrategyHTTP)
	if err == nil {
		t.Fatal("Validate() expected error for tiny artifact")
	}
	if !edition.IsKind(err, edition.KindValidationFailed) {
		t.Fatalf("expected KindValidationFailed, got %v (kind %q)", err, edition.KindOf(err))
	}
}

func TestValidateRejectsLoginPage(t *testing.T) {
	t.Parallel()

	body := `<html><body><form>` + strings.Repeat(" ", 100) +
		`<input type="password" name="pass"></form></body></html>`
	path := writeArtifact(t, "edition.html", []byte(body))
	_, _, err := Validate(path, 10, edition.StrategyBrowser)
	if err == nil {
		t.Fatal("Validate() expected error for login page")
	}
	if !edition.IsKind(err, edition.KindValidationFailed) {
		t.Fatalf("expected KindValidationFailed, got %v (kind %q)", err, edition.KindOf(err))
	}
}

func TestValidateMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := Validate(filepath.Join(t.TempDir(), "absent.pdf"), 10, edition.StrategyLocal)
	if err == nil {
		t.Fatal("Validate() expected error for missing file")
	}
	if !edition.IsKind(err, edition.KindValidationFailed) {
		t.Fatalf("expected KindValidationFailed, got %v", err)
	}
}
