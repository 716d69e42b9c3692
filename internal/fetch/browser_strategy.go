package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/browser"
	"github.com/paperboydev/paperboy/internal/edition"
	"github.com/paperboydev/paperboy/internal/logging"
)

// Fallback selectors used when no explicit login locators are configured.
const (
	fallbackUsernameSel = `input[type="email"], input[type="text"]`
	fallbackPasswordSel = `input[type="password"]`
	fallbackSubmitSel   = `button[type="submit"], input[type="submit"]`
)

// tabRenderer is the slice of browser.Manager the strategy depends on, so
// tests can substitute a fake without a running Chrome.
type tabRenderer interface {
	NewTab(ctx context.Context) (context.Context, context.CancelFunc, error)
	PrepareTab(tab context.Context, headers http.Header) error
	RenderInTab(tab context.Context, url string) (browser.Page, error)
}

// BrowserStrategy acquires the edition through headless Chrome. It exists for
// sites where the plain HTTP path fails: JavaScript-rendered pages, bot
// checks, or login flows that need real browser behavior. The artifact
// itself is still streamed over HTTP, reusing the browser's session cookies.
type BrowserStrategy struct {
	manager   tabRenderer
	client    *Client
	resolver  *edition.Resolver
	selectors edition.SelectorSet
	loginURL  string
	creds     edition.Credentials
	retry     *RetryPolicy
	minBytes  int64
	logger    *zap.Logger
}

// NewBrowserStrategy wires the escalation strategy.
func NewBrowserStrategy(
	manager *browser.Manager,
	client *Client,
	resolver *edition.Resolver,
	selectors edition.SelectorSet,
	loginURL string,
	creds edition.Credentials,
	retry *RetryPolicy,
	minBytes int64,
	logger *zap.Logger,
) *BrowserStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserStrategy{
		manager:   manager,
		client:    client,
		resolver:  resolver,
		selectors: selectors,
		loginURL:  loginURL,
		creds:     creds,
		retry:     retry,
		minBytes:  minBytes,
		logger:    logger,
	}
}

// Name identifies the strategy in attempt records.
func (s *BrowserStrategy) Name() edition.Strategy { return edition.StrategyBrowser }

// Fetch logs in and renders the edition page in a real browser, then resolves
// the download link and streams the artifact with the session cookies.
func (s *BrowserStrategy) Fetch(ctx context.Context, target Target) (edition.DownloadResult, error) {
	tab, cancel, err := s.manager.NewTab(ctx)
	if err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, edition.StrategyBrowser, err)
	}
	defer cancel()

	if err := s.manager.PrepareTab(tab, nil); err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, edition.StrategyBrowser,
			fmt.Errorf("prepare tab: %w", err))
	}

	if err := s.login(tab); err != nil {
		return edition.DownloadResult{}, err
	}

	var page browser.Page
	err = s.retry.Do(ctx, func(context.Context) error {
		var err error
		page, err = s.manager.RenderInTab(tab, target.PageURL)
		if err != nil {
			return fmt.Errorf("render edition page: %w", err)
		}
		if page.Status < 200 || page.Status > 299 {
			return fmt.Errorf("edition page returned status %d", page.Status)
		}
		return nil
	})
	if err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindDownloadFailed, edition.StrategyBrowser, err)
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return edition.DownloadResult{}, edition.E(edition.KindLinkNotFound, edition.StrategyBrowser,
			fmt.Errorf("parse rendered page url: %w", err))
	}

	link, err := s.resolver.Resolve(page.HTML, base, s.selectors.DownloadCandidates())
	if err != nil {
		return edition.DownloadResult{}, err
	}

	s.logger.Info("resolved download link",
		zap.String("strategy", string(edition.StrategyBrowser)),
		zap.String("url", link))

	if err := s.adoptCookies(tab, link); err != nil {
		return edition.DownloadResult{}, err
	}

	return downloadAndValidate(ctx, s.client, link, target, edition.StrategyBrowser, s.retry, s.minBytes)
}

// login drives the interactive login flow inside the tab. Skipped when no
// login is configured.
func (s *BrowserStrategy) login(tab context.Context) error {
	if s.loginURL == "" || s.creds.Empty() {
		return nil
	}

	userSel := cssOrFallback(s.selectors.Username, fallbackUsernameSel)
	passSel := cssOrFallback(s.selectors.Password, fallbackPasswordSel)
	submitSel := cssOrFallback(s.selectors.Submit, fallbackSubmitSel)

	s.logger.Info("performing browser login",
		zap.String("url", s.loginURL),
		zap.String("user", logging.Redact(s.creds.Identity)))

	err := chromedp.Run(tab,
		chromedp.Navigate(s.loginURL),
		chromedp.WaitVisible(passSel, chromedp.ByQuery),
		chromedp.SendKeys(userSel, s.creds.Identity, chromedp.ByQuery),
		chromedp.SendKeys(passSel, s.creds.Secret, chromedp.ByQuery),
		chromedp.Click(submitSel, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return edition.E(edition.KindAuthenticationFailed, edition.StrategyBrowser,
			fmt.Errorf("browser login: %w", err))
	}
	return nil
}

// adoptCookies copies the browser session into the download client's jar so
// the streamed download is authenticated.
func (s *BrowserStrategy) adoptCookies(tab context.Context, link string) error {
	cookies, err := browser.Cookies(tab)
	if err != nil {
		return edition.E(edition.KindDownloadFailed, edition.StrategyBrowser,
			fmt.Errorf("read session cookies: %w", err))
	}
	u, err := url.Parse(link)
	if err != nil {
		return edition.E(edition.KindDownloadFailed, edition.StrategyBrowser,
			fmt.Errorf("parse download url: %w", err))
	}
	s.client.SetCookies(u, cookies)
	return nil
}

func cssOrFallback(locators []edition.Locator, fallback string) string {
	if l, ok := edition.FirstCSS(locators); ok {
		return l.Expr
	}
	return fallback
}
