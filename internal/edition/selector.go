package edition

import (
	"fmt"
	"strings"
)

// LocatorKind distinguishes the two locator variants accepted from
// configuration.
type LocatorKind string

// Locator kinds.
const (
	// LocatorCSS matches page elements with a CSS selector expression.
	LocatorCSS LocatorKind = "css"
	// LocatorPattern matches link targets whose URL path ends with a suffix,
	// e.g. ".pdf". For login-success checks it is matched against the final
	// URL instead.
	LocatorPattern LocatorKind = "pattern"
)

// Locator is a single declarative page-element or URL-pattern expression.
type Locator struct {
	Kind LocatorKind
	Expr string
}

func (l Locator) String() string { return fmt.Sprintf("%s:%s", l.Kind, l.Expr) }

// ParseLocator normalizes a raw locator string from configuration.
// Accepted forms: "css:<selector>", "suffix:<ext>", or a bare CSS selector.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}
	switch {
	case strings.HasPrefix(raw, "css:"):
		expr := strings.TrimSpace(strings.TrimPrefix(raw, "css:"))
		if expr == "" {
			return Locator{}, fmt.Errorf("empty css locator")
		}
		return Locator{Kind: LocatorCSS, Expr: expr}, nil
	case strings.HasPrefix(raw, "suffix:"):
		expr := strings.TrimSpace(strings.TrimPrefix(raw, "suffix:"))
		if expr == "" {
			return Locator{}, fmt.Errorf("empty suffix locator")
		}
		return Locator{Kind: LocatorPattern, Expr: strings.ToLower(expr)}, nil
	default:
		return Locator{Kind: LocatorCSS, Expr: raw}, nil
	}
}

// ParseLocators normalizes an ordered list, preserving declared order.
func ParseLocators(raw []string) ([]Locator, error) {
	out := make([]Locator, 0, len(raw))
	for i, r := range raw {
		loc, err := ParseLocator(r)
		if err != nil {
			return nil, fmt.Errorf("locator %d: %w", i, err)
		}
		out = append(out, loc)
	}
	return out, nil
}

// SelectorSet is the immutable locator configuration for a run. Each field is
// an ordered candidate list tried first-to-last.
type SelectorSet struct {
	Username     []Locator
	Password     []Locator
	Submit       []Locator
	LoginSuccess []Locator
	DownloadLink []Locator
}

// defaultDownloadLocators is used when no download-link locators are
// configured. Order matters: PDF editions are preferred over HTML.
var defaultDownloadLocators = []Locator{
	{Kind: LocatorPattern, Expr: ".pdf"},
	{Kind: LocatorPattern, Expr: ".html"},
}

// DownloadCandidates returns the configured download-link locators, falling
// back to the built-in default pair when the list is empty.
func (s SelectorSet) DownloadCandidates() []Locator {
	if len(s.DownloadLink) > 0 {
		return s.DownloadLink
	}
	return defaultDownloadLocators
}

// FirstCSS returns the first CSS locator in candidates, for contexts that
// require a structural expression (typing into a field, clicking a control).
func FirstCSS(candidates []Locator) (Locator, bool) {
	for _, l := range candidates {
		if l.Kind == LocatorCSS {
			return l, true
		}
	}
	return Locator{}, false
}

// NewSelectorSet normalizes raw locator lists from configuration into an
// immutable SelectorSet. Raw lists may be empty; resolution falls back to
// defaults where the contract allows it.
func NewSelectorSet(username, password, submit, loginSuccess, downloadLink []string) (SelectorSet, error) {
	var (
		set SelectorSet
		err error
	)
	if set.Username, err = ParseLocators(username); err != nil {
		return SelectorSet{}, fmt.Errorf("username selectors: %w", err)
	}
	if set.Password, err = ParseLocators(password); err != nil {
		return SelectorSet{}, fmt.Errorf("password selectors: %w", err)
	}
	if set.Submit, err = ParseLocators(submit); err != nil {
		return SelectorSet{}, fmt.Errorf("submit selectors: %w", err)
	}
	if set.LoginSuccess, err = ParseLocators(loginSuccess); err != nil {
		return SelectorSet{}, fmt.Errorf("login_success selectors: %w", err)
	}
	if set.DownloadLink, err = ParseLocators(downloadLink); err != nil {
		return SelectorSet{}, fmt.Errorf("download_link selectors: %w", err)
	}
	return set, nil
}
