// Package fetch implements the edition acquisition pipeline: session login,
// link resolution, and the HTTP-first / browser-escalation strategy chain.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gocolly/colly/v2"
)

// ClientConfig controls the session-aware HTTP client.
type ClientConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Response is a completed page request.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client is a cookie-persistent HTTP client. Page requests go through Colly;
// artifact downloads stream through a plain http.Client sharing the same jar
// so large editions never sit in memory.
type Client struct {
	cfg        ClientConfig
	jar        http.CookieJar
	base       *colly.Collector
	downloader *http.Client
}

// NewClient builds a Client with a fresh cookie jar.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	// The client acts on behalf of a subscribed reader, not a crawler, so
	// robots.txt does not apply.
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	c.SetCookieJar(jar)

	return &Client{
		cfg:  cfg,
		jar:  jar,
		base: c,
		downloader: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: newHTTPTransport(),
		},
	}, nil
}

// Get fetches a page, following redirects and persisting cookies.
func (c *Client) Get(ctx context.Context, pageURL string) (Response, error) {
	return c.run(ctx, func(collector *colly.Collector) error {
		return collector.Visit(pageURL)
	})
}

// PostForm submits an application/x-www-form-urlencoded request, persisting
// cookies from the response.
func (c *Client) PostForm(ctx context.Context, pageURL string, form map[string]string) (Response, error) {
	return c.run(ctx, func(collector *colly.Collector) error {
		return collector.Post(pageURL, form)
	})
}

func (c *Client) run(ctx context.Context, visit func(*colly.Collector) error) (Response, error) {
	collector := c.base.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.SetCookieJar(c.jar)

	var (
		result   Response
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- visit(collector)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("request canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Response{}, fmt.Errorf("request failed: %w", err)
		}
		if fetchErr != nil {
			return Response{}, fmt.Errorf("response failed: %w", fetchErr)
		}
		return result, nil
	}
}

// SetCookies seeds the jar with cookies obtained elsewhere, typically from a
// browser session.
func (c *Client) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.jar.SetCookies(u, cookies)
}

// Download streams the artifact at rawURL into destPath, creating parent
// directories as needed. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.downloader.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("download %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}

	tmp := destPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", destPath, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("finalize %s: %w", destPath, err)
	}
	return written, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
