// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gather collects raw company text from outside the pipeline: web
// pages and uploaded documents. Nothing here knows about the schema; the
// output is plain text for the bundle builder.
package gather

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/bundle"
	"github.com/pdiddy/partnerform/internal/httputil"
	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/pkg/types"
)

const (
	defaultUserAgent    = "partnerform/0.1"
	defaultFetchTimeout = 20 * time.Second

	// fetchRetries is the number of 429 retries for a page fetch.
	fetchRetries = 2
)

// Page is the text extracted from one web page.
type Page struct {
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Text  string `json:"text" yaml:"text"`
}

// WebsiteFetcher downloads a page and reduces it to visible text.
type WebsiteFetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewWebsiteFetcher returns a fetcher. A nil client uses http.DefaultClient.
func NewWebsiteFetcher(cfg types.HTTPConfig, client *http.Client, logger *zap.Logger) *WebsiteFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &WebsiteFetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    logging.OrNop(logger),
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.timeout <= 0 {
		f.timeout = defaultFetchTimeout
	}
	return f
}

// Fetch downloads rawURL and returns its text. A URL without a scheme is
// taken as https. HTML is converted to Markdown-flavoured text; plain text
// is returned as is with blank lines dropped.
func (f *WebsiteFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request for %s: %w", u, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, f.client, req, fetchRetries, f.logger)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", u, err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	}

	page := Page{URL: u}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/plain":
		page.Text = bundle.Clean(string(body))
	case mediaType == "" || strings.Contains(mediaType, "html"):
		page.Title, page.Text, err = htmlToText(body)
		if err != nil {
			return Page{}, fmt.Errorf("extracting text from %s: %w", u, err)
		}
	default:
		return Page{}, fmt.Errorf("fetching %s: unsupported content type %q", u, mediaType)
	}

	f.logger.Info("gather.website",
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Int("text_bytes", len(page.Text)),
		zap.Duration("elapsed", time.Since(start)))
	return page, nil
}

// NormalizeURL trims rawURL, adds https:// when no scheme is given, and
// rejects anything that is not an absolute http(s) URL.
func NormalizeURL(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return u.String(), nil
}
