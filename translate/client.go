package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client is a remote translation backend over HTTP: ordered batches in,
// ordered batches out. Batches are chunked so progress can be reported
// and one oversized page does not become one oversized request.
type Client struct {
	endpoint  string
	hc        *http.Client
	batchSize int
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithBatchSize sets how many texts go into one request. Default: 16.
func WithBatchSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithClientLogger sets a custom logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the given backend endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:  endpoint,
		hc:        &http.Client{Timeout: 60 * time.Second},
		batchSize: 16,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type translateRequest struct {
	Texts      []string `json:"texts"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
	Code         string   `json:"code,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// Translate implements Translator against the remote backend.
func (c *Client) Translate(ctx context.Context, texts []string, sourceLang, targetLang string, onProgress Progress) ([]string, error) {
	src, dst, err := ValidatePair(sourceLang, targetLang)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := c.translateBatch(ctx, texts[start:end], src, dst)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if onProgress != nil {
			onProgress(len(out), len(texts))
		}
	}
	return out, nil
}

func (c *Client) translateBatch(ctx context.Context, texts []string, src, dst string) ([]string, error) {
	body, err := json.Marshal(translateRequest{Texts: texts, SourceLang: src, TargetLang: dst})
	if err != nil {
		return nil, fmt.Errorf("translate: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("translate: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate: do: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("translate: read body: %w", err)
	}

	var tr translateResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("translate: decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		switch tr.Code {
		case "unsupported_pair":
			return nil, ErrUnsupportedPair
		case "download_required":
			return nil, ErrDownloadRequired
		default:
			return nil, fmt.Errorf("translate: backend status %d: %s", resp.StatusCode, tr.Message)
		}
	}

	if len(tr.Translations) != len(texts) {
		return nil, fmt.Errorf("translate: backend returned %d translations for %d texts", len(tr.Translations), len(texts))
	}
	return tr.Translations, nil
}
