// Package fetch acquires page documents. The cheap path is a single HTTP
// GET; when the returned markup is an SPA shell with no real content the
// loader escalates to a headless browser and serialises the rendered DOM.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/pagesync/dom"
)

// Loader fetches URLs and parses them into documents.
type Loader struct {
	client  *http.Client
	ua      string
	browser *Browser
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(l *Loader) { l.ua = ua }
}

// WithBrowser enables escalation to a headless browser for pages whose
// plain HTML is insufficient. Without it, insufficient pages are served
// as-is.
func WithBrowser(b *Browser) Option {
	return func(l *Loader) { l.browser = b }
}

// WithLogger sets a custom logger.
func WithLogger(lg *slog.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// New creates a Loader with sensible defaults.
func New(opts ...Option) *Loader {
	l := &Loader{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; PageSync/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load fetches a URL and returns the parsed document. Escalation to the
// browser happens only when a browser is configured and the HTTP body
// looks like a script shell.
func (l *Loader) Load(ctx context.Context, pageURL string) (*dom.Document, error) {
	body, err := l.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if !IsSufficient(body) && l.browser != nil {
		l.logger.Info("fetch: escalating to browser", "url", pageURL, "size", len(body))
		rendered, err := l.browser.Render(ctx, pageURL)
		if err != nil {
			l.logger.Warn("fetch: browser render failed, using http body",
				"url", pageURL, "error", err)
		} else {
			body = rendered
		}
	}

	doc, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func (l *Loader) get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", l.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch: %s: status %d", pageURL, resp.StatusCode)
	}

	// Cap read to 10MB to prevent runaway downloads.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	l.logger.Debug("fetch: fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))
	return body, nil
}
