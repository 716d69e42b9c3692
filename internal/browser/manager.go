// Package browser owns the headless Chrome process used for escalated fetches
// and page screenshots.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config controls the shared browser process.
type Config struct {
	UserAgent  string
	NavTimeout time.Duration
	// NavQPS throttles navigations across all tabs. Zero disables throttling.
	NavQPS float64
}

// Manager lazily launches one Chrome process and hands out per-task tab
// contexts. The process is only started when a task actually escalates, so
// HTTP-only runs never pay the browser cost.
type Manager struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter

	mu          sync.Mutex
	allocator   context.Context
	allocCancel context.CancelFunc
	closed      bool
}

// NewManager builds a Manager. Chrome is not launched until the first NewTab.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.NavQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.NavQPS), 1)
	}
	return &Manager{cfg: cfg, logger: logger, limiter: limiter}
}

// Close tears down the Chrome process. Safe to call multiple times and safe
// to call when the browser was never launched.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCancel = nil
	}
}

func (m *Manager) ensureAllocator() (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("browser manager is closed")
	}
	if m.allocator != nil {
		return m.allocator, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	m.allocator, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	m.logger.Info("launching headless browser")
	return m.allocator, nil
}

// NewTab creates a fresh tab context bounded by the navigation timeout. The
// returned cancel func must be called when the task finishes.
func (m *Manager) NewTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("navigation throttle: %w", err)
		}
	}

	allocator, err := m.ensureAllocator()
	if err != nil {
		return nil, nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(allocator)
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, m.cfg.NavTimeout)
	stop := forwardCancel(ctx, timeoutCancel)

	cancel := func() {
		stop()
		timeoutCancel()
		tabCancel()
	}
	return tabCtx, cancel, nil
}

// forwardCancel propagates cancellation of the caller context into the tab
// context, which chromedp does not do on its own. The returned stop func
// releases the forwarding goroutine once the tab is done; it is safe to call
// more than once.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// SetupAction enables the network domain and applies the user agent and any
// extra headers. Run it before the first navigation in a tab.
func (m *Manager) SetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if m.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(m.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// PrepareTab runs SetupAction in the tab. Call it once before the first
// navigation.
func (m *Manager) PrepareTab(tab context.Context, headers http.Header) error {
	return chromedp.Run(tab, m.SetupAction(headers))
}

// Page is the rendered result of a navigation.
type Page struct {
	HTML     string
	FinalURL string
	Status   int
	Headers  http.Header
}

// RenderInTab navigates to url in an existing tab context and returns the
// rendered DOM with the main-document response metadata. The tab must already
// have the network domain enabled (SetupAction).
func (m *Manager) RenderInTab(tabCtx context.Context, url string) (Page, error) {
	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return Page{}, fmt.Errorf("render %s: %w", url, err)
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	return Page{HTML: html, FinalURL: responseURL, Status: status, Headers: headers}, nil
}

// Screenshot navigates to url in a fresh tab and captures a full viewport
// screenshot as PNG bytes.
func (m *Manager) Screenshot(ctx context.Context, url string, width, height int64) ([]byte, error) {
	tabCtx, cancel, err := m.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var shot []byte
	actions := []chromedp.Action{
		m.SetupAction(nil),
		chromedp.EmulateViewport(width, height),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.CaptureScreenshot(&shot),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", url, err)
	}
	return shot, nil
}

// Cookies reads all cookies visible to the tab, so a download started in the
// browser can be completed over plain HTTP with the same session.
func Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var out []*http.Cookie
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return fmt.Errorf("get cookies: %w", err)
		}
		for _, c := range cookies {
			out = append(out, &http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		return nil
	})
	if err := chromedp.Run(ctx, action); err != nil {
		return nil, err
	}
	return out, nil
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	status, headers, url := m.snapshot()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
