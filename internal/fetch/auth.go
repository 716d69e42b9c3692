package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/edition"
	"github.com/paperboydev/paperboy/internal/logging"
)

// Authenticator drives the session login over plain HTTP. It fills the login
// form the way a reader's browser would: hidden fields (CSRF tokens and the
// like) are carried over untouched.
type Authenticator struct {
	loginURL  string
	creds     edition.Credentials
	selectors edition.SelectorSet
	logger    *zap.Logger
}

// NewAuthenticator builds an Authenticator. An empty loginURL means the site
// needs no session; Login becomes a no-op.
func NewAuthenticator(loginURL string, creds edition.Credentials, selectors edition.SelectorSet, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{loginURL: loginURL, creds: creds, selectors: selectors, logger: logger}
}

// Login establishes an authenticated session on the client's cookie jar.
func (a *Authenticator) Login(ctx context.Context, client *Client) error {
	if a.loginURL == "" || a.creds.Empty() {
		a.logger.Debug("no login configured, skipping authentication")
		return nil
	}

	page, err := client.Get(ctx, a.loginURL)
	if err != nil {
		return edition.E(edition.KindAuthenticationFailed, edition.StrategyHTTP,
			fmt.Errorf("load login page: %w", err))
	}

	form, err := a.extractLoginForm(page)
	if err != nil {
		return edition.E(edition.KindAuthenticationFailed, edition.StrategyHTTP, err)
	}

	a.logger.Info("submitting login form",
		zap.String("action", form.Action),
		zap.String("user", logging.Redact(a.creds.Identity)))

	resp, err := client.PostForm(ctx, form.Action, form.Values)
	if err != nil {
		return edition.E(edition.KindAuthenticationFailed, edition.StrategyHTTP,
			fmt.Errorf("submit login form: %w", err))
	}

	ok, err := a.loginSucceeded(resp)
	if err != nil {
		return edition.E(edition.KindAuthenticationFailed, edition.StrategyHTTP, err)
	}
	if !ok {
		return edition.E(edition.KindAuthenticationFailed, edition.StrategyHTTP,
			fmt.Errorf("login rejected with status %d", resp.StatusCode))
	}
	return nil
}

// loginForm is the extracted submission target.
type loginForm struct {
	Action string
	Values map[string]string
}

func (a *Authenticator) extractLoginForm(page Response) (loginForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return loginForm{}, fmt.Errorf("parse login page: %w", err)
	}

	passwordField := a.findField(doc, a.selectors.Password, "input[type='password']")
	if passwordField == nil {
		return loginForm{}, fmt.Errorf("no password field on login page")
	}
	form := passwordField.Closest("form")
	if form.Length() == 0 {
		return loginForm{}, fmt.Errorf("password field is not inside a form")
	}

	usernameField := a.findFieldIn(form, a.selectors.Username,
		"input[type='email'], input[type='text'], input[name='username'], input[name='email'], input[name='login']")
	if usernameField == nil {
		return loginForm{}, fmt.Errorf("no username field on login page")
	}

	values := map[string]string{}
	form.Find("input").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		typ, _ := s.Attr("type")
		if typ == "submit" || typ == "button" {
			return
		}
		values[name], _ = s.Attr("value")
	})

	userName, ok := usernameField.Attr("name")
	if !ok {
		return loginForm{}, fmt.Errorf("username field has no name attribute")
	}
	passName, ok := passwordField.Attr("name")
	if !ok {
		return loginForm{}, fmt.Errorf("password field has no name attribute")
	}
	values[userName] = a.creds.Identity
	values[passName] = a.creds.Secret

	action, err := a.resolveAction(page.URL, form)
	if err != nil {
		return loginForm{}, err
	}
	return loginForm{Action: action, Values: values}, nil
}

// findField tries the configured CSS locators first, then the fallback
// selector, anywhere in the document.
func (a *Authenticator) findField(doc *goquery.Document, locators []edition.Locator, fallback string) *goquery.Selection {
	for _, l := range locators {
		if l.Kind != edition.LocatorCSS {
			continue
		}
		if sel := doc.Find(l.Expr); sel.Length() > 0 {
			return sel.First()
		}
	}
	if sel := doc.Find(fallback); sel.Length() > 0 {
		return sel.First()
	}
	return nil
}

// findFieldIn is findField scoped to a form.
func (a *Authenticator) findFieldIn(form *goquery.Selection, locators []edition.Locator, fallback string) *goquery.Selection {
	for _, l := range locators {
		if l.Kind != edition.LocatorCSS {
			continue
		}
		if sel := form.Find(l.Expr); sel.Length() > 0 {
			return sel.First()
		}
	}
	if sel := form.Find(fallback); sel.Length() > 0 {
		return sel.First()
	}
	return nil
}

func (a *Authenticator) resolveAction(pageURL string, form *goquery.Selection) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse login page url: %w", err)
	}
	action, _ := form.Attr("action")
	if action == "" {
		return base.String(), nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("parse form action %q: %w", action, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// loginSucceeded evaluates the post-submit response. With explicit
// login-success locators configured, any match wins. Without them, a 2xx
// response that no longer shows a password field counts as success.
func (a *Authenticator) loginSucceeded(resp Response) (bool, error) {
	if len(a.selectors.LoginSuccess) > 0 {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return false, fmt.Errorf("parse post-login page: %w", err)
		}
		final, err := url.Parse(resp.URL)
		if err != nil {
			return false, fmt.Errorf("parse post-login url: %w", err)
		}
		for _, l := range a.selectors.LoginSuccess {
			switch l.Kind {
			case edition.LocatorCSS:
				if doc.Find(l.Expr).Length() > 0 {
					return true, nil
				}
			case edition.LocatorPattern:
				if strings.HasSuffix(strings.ToLower(final.Path), l.Expr) {
					return true, nil
				}
			}
		}
		return false, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return false, fmt.Errorf("parse post-login page: %w", err)
	}
	return doc.Find("input[type='password']").Length() == 0, nil
}
