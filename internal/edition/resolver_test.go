package edition

import (
	"net/url"
	"testing"
)

const archivePage = `<html><body>
<div id="archive">
  <a href="/static/style.css">styles</a>
  <a href="/editions/2024-05-04_edition.pdf?session=1">Today's paper</a>
  <a class="weblink" href="/editions/2024-05-04_edition.html">Read online</a>
</div>
</body></html>`

func mustBase(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	return u
}

func TestResolveFirstCandidateWins(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := mustBase(t, "https://paper.example.com/archive")

	// Both candidates match; the declared order decides.
	candidates := []Locator{
		{Kind: LocatorCSS, Expr: "a.weblink"},
		{Kind: LocatorPattern, Expr: ".pdf"},
	}
	got, err := r.Resolve(archivePage, base, candidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "https://paper.example.com/editions/2024-05-04_edition.html"
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveSkipsMissedCandidates(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := mustBase(t, "https://paper.example.com/archive")

	// First candidate matches nothing; second matches via attribute suffix.
	candidates := []Locator{
		{Kind: LocatorCSS, Expr: "a.pdflink"},
		{Kind: LocatorCSS, Expr: "a[href$='.pdf']"},
	}
	got, err := r.Resolve(`<a href="/daily.pdf">paper</a>`, base, candidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := "https://paper.example.com/daily.pdf"; got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolvePatternIgnoresQueryString(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := mustBase(t, "https://paper.example.com/")

	got, err := r.Resolve(archivePage, base, []Locator{{Kind: LocatorPattern, Expr: ".pdf"}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "https://paper.example.com/editions/2024-05-04_edition.pdf?session=1"
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveDefaultsWhenUnconfigured(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := mustBase(t, "https://paper.example.com/")
	var set SelectorSet

	got, err := r.Resolve(archivePage, base, set.DownloadCandidates())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := "https://paper.example.com/editions/2024-05-04_edition.pdf?session=1"
	if got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveReturnsClassifiedNotFound(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := mustBase(t, "https://paper.example.com/")

	_, err := r.Resolve(`<html><body><p>no links here</p></body></html>`, base, []Locator{
		{Kind: LocatorPattern, Expr: ".pdf"},
	})
	if err == nil {
		t.Fatal("Resolve() expected error on empty page")
	}
	if !IsKind(err, KindLinkNotFound) {
		t.Fatalf("expected KindLinkNotFound, got %v (kind %q)", err, KindOf(err))
	}
}

func TestResolveNestedAnchorInsideCSSMatch(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil)
	base := mustBase(t, "https://paper.example.com/")

	page := `<div class="download-box"><span>Latest</span><a href="/latest.pdf">get</a></div>`
	got, err := r.Resolve(page, base, []Locator{{Kind: LocatorCSS, Expr: "div.download-box"}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := "https://paper.example.com/latest.pdf"; got != want {
		t.Fatalf("Resolve() = %q, want %q", got, want)
	}
}
