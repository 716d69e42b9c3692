package mail

import (
	"strings"
	"testing"

	"github.com/paperboydev/paperboy/internal/storage"
)

func TestRenderDaily(t *testing.T) {
	t.Parallel()

	body, err := RenderDaily(DailyData{
		Date:         "2024-05-04",
		ArtifactURL:  "https://archive.example.com/2024-05-04_edition.pdf?sig=abc",
		ThumbnailCID: "2024-05-04_edition_thumb.jpg",
		PastEditions: []storage.PastEdition{
			{Date: "2024-05-03", URL: "https://archive.example.com/2024-05-03"},
			{Date: "2024-05-02", URL: "https://archive.example.com/2024-05-02"},
		},
	})
	if err != nil {
		t.Fatalf("RenderDaily() error = %v", err)
	}

	for _, want := range []string{
		"Your paper for 2024-05-04",
		`cid:2024-05-04_edition_thumb.jpg`,
		"2024-05-03",
		"2024-05-02",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderDailyWithoutThumbnail(t *testing.T) {
	t.Parallel()

	body, err := RenderDaily(DailyData{
		Date:        "2024-05-04",
		ArtifactURL: "https://archive.example.com/x.pdf",
	})
	if err != nil {
		t.Fatalf("RenderDaily() error = %v", err)
	}
	if strings.Contains(body, "cid:") {
		t.Fatal("body references an inline image with no thumbnail set")
	}
	if strings.Contains(body, "Recent editions") {
		t.Fatal("body lists past editions with none set")
	}
}

func TestRenderDailyEscapesURLs(t *testing.T) {
	t.Parallel()

	body, err := RenderDaily(DailyData{
		Date:        "2024-05-04",
		ArtifactURL: `https://archive.example.com/x.pdf?a=1&b="<script>`,
	})
	if err != nil {
		t.Fatalf("RenderDaily() error = %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatal("template did not escape the URL")
	}
}

func TestRenderAlert(t *testing.T) {
	t.Parallel()

	body, err := RenderAlert(AlertData{
		Date:      "2024-05-04",
		ErrorKind: "strategy_exhausted",
		Reason:    "all strategies failed: login rejected with status 403",
		Attempts:  []string{"http: auth_failed (1.2s)", "browser: auth_failed (14.8s)"},
	})
	if err != nil {
		t.Fatalf("RenderAlert() error = %v", err)
	}
	for _, want := range []string{
		"Edition fetch failed for 2024-05-04",
		"strategy_exhausted",
		"browser: auth_failed",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}
