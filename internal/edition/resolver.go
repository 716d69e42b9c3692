package edition

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Resolver locates the edition download link in a fetched page. It works the
// same over raw HTML and over a DOM snapshot extracted from a live browser.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver builds a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve iterates the ordered candidate locators and returns the absolute
// URL of the first matching element of the first candidate that matches
// anything. base resolves relative hrefs. A miss on every candidate returns a
// KindLinkNotFound error, which callers treat as a reason to escalate, not as
// a fatal condition.
func (r *Resolver) Resolve(pageHTML string, base *url.URL, candidates []Locator) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", E(KindLinkNotFound, "", fmt.Errorf("parse page: %w", err))
	}

	for _, cand := range candidates {
		href, ok := r.matchCandidate(doc, cand)
		if !ok {
			r.logger.Debug("download locator missed", zap.String("locator", cand.String()))
			continue
		}
		resolved, err := resolveHref(base, href)
		if err != nil {
			r.logger.Warn("matched link is not a valid URL",
				zap.String("locator", cand.String()),
				zap.String("href", href),
				zap.Error(err),
			)
			continue
		}
		r.logger.Debug("download link resolved",
			zap.String("locator", cand.String()),
			zap.String("url", resolved),
		)
		return resolved, nil
	}
	return "", E(KindLinkNotFound, "", fmt.Errorf("no download locator matched (%d candidates)", len(candidates)))
}

// matchCandidate returns the href of the first element matching one locator.
func (r *Resolver) matchCandidate(doc *goquery.Document, cand Locator) (string, bool) {
	switch cand.Kind {
	case LocatorCSS:
		return firstHref(doc.Find(cand.Expr))
	case LocatorPattern:
		var (
			href  string
			found bool
		)
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			h, ok := sel.Attr("href")
			if !ok || !hrefMatchesSuffix(h, cand.Expr) {
				return true
			}
			href, found = h, true
			return false
		})
		return href, found
	default:
		return "", false
	}
}

// firstHref extracts a usable href from the first matched element, looking at
// the element itself and then at a descendant anchor.
func firstHref(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	first := sel.First()
	if href, ok := first.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return href, true
	}
	if href, ok := first.Find("a[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return href, true
	}
	return "", false
}

// hrefMatchesSuffix compares the URL path, ignoring query and fragment.
func hrefMatchesSuffix(href, suffix string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), suffix)
}

func resolveHref(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", ref.Scheme)
	}
	return ref.String(), nil
}
