package fetch

import (
	"bytes"
	"fmt"
	"net/http"
	"os"

	"github.com/paperboydev/paperboy/internal/edition"
)

var pdfMagic = []byte("%PDF-")

// Validate checks that the file at path looks like a real edition artifact:
// large enough, a recognizable content type, and not a login page the site
// served in place of the download. It returns the sniffed content type.
func Validate(path string, minBytes int64, strategy edition.Strategy) (string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, edition.E(edition.KindValidationFailed, strategy,
			fmt.Errorf("stat artifact: %w", err))
	}
	size := info.Size()
	if size < minBytes {
		return "", size, edition.E(edition.KindValidationFailed, strategy,
			fmt.Errorf("artifact is %d bytes, below minimum %d", size, minBytes))
	}

	contentType, err := sniffContentType(path)
	if err != nil {
		return "", size, edition.E(edition.KindValidationFailed, strategy, err)
	}

	if contentType == "text/html" {
		hasLogin, err := containsPasswordField(path)
		if err != nil {
			return contentType, size, edition.E(edition.KindValidationFailed, strategy, err)
		}
		if hasLogin {
			return contentType, size, edition.E(edition.KindValidationFailed, strategy,
				fmt.Errorf("download produced a login page, session was not honored"))
		}
	}
	return contentType, size, nil
}

// sniffContentType reads the file head and classifies it. PDF is checked by
// magic bytes first since DetectContentType reports it as octet-stream in
// some builds.
func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if n == 0 && err != nil {
		return "", fmt.Errorf("read artifact head: %w", err)
	}
	head = head[:n]

	if bytes.HasPrefix(head, pdfMagic) {
		return "application/pdf", nil
	}
	detected := http.DetectContentType(head)
	if i := bytes.IndexByte([]byte(detected), ';'); i > 0 {
		detected = detected[:i]
	}
	return detected, nil
}

func containsPasswordField(path string) (bool, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read artifact: %w", err)
	}
	return bytes.Contains(bytes.ToLower(body), []byte(`type="password"`)) ||
		bytes.Contains(bytes.ToLower(body), []byte(`type='password'`)), nil
}
