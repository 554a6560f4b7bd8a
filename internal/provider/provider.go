// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider implements extract.Provider for the supported
// text-generation services: OpenAI, Anthropic, Cohere, Gemini and a static
// provider for offline runs.
//
// HTTP providers report non-2xx replies as extract.ProviderErrorResponse
// and wrap network failures in extract.TransportError. None of them retry;
// the orchestrator owns the single automatic retry.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/extract"
	"github.com/pdiddy/partnerform/internal/httputil"
	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/pkg/types"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultCohereModel    = "command"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// Option configures a provider built by New.
type Option func(*options)

type options struct {
	client *http.Client
	logger *zap.Logger
}

// WithHTTPClient sets the HTTP client used by HTTP providers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = logging.OrNop(l) }
}

// New builds the provider selected by cfg.Name. An empty name selects
// OpenAI. A missing API key is not an error here: the provider reports
// itself unconfigured and the orchestrator fails fast.
func New(ctx context.Context, cfg types.ProviderConfig, opts ...Option) (extract.Provider, error) {
	o := options{client: http.DefaultClient, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Name {
	case types.ProviderOpenAI, "":
		return NewOpenAI(cfg, o.client, o.logger), nil
	case types.ProviderAnthropic:
		return NewAnthropic(cfg, o.client, o.logger), nil
	case types.ProviderCohere:
		return NewCohere(cfg, o.client, o.logger), nil
	case types.ProviderGemini:
		return NewGemini(ctx, cfg, o.client)
	case types.ProviderStatic:
		return NewStatic(cfg.StaticResponse), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, anthropic, cohere, gemini or static)", cfg.Name)
	}
}

// httpBase carries what every JSON-over-HTTP provider shares.
type httpBase struct {
	name   string
	model  string
	apiKey string
	url    string
	client *http.Client
	logger *zap.Logger
}

func newHTTPBase(name, defaultModel, defaultURL string, cfg types.ProviderConfig, client *http.Client, logger *zap.Logger) httpBase {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	url := defaultURL
	if cfg.BaseURL != "" {
		url = cfg.BaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return httpBase{
		name:   name,
		model:  model,
		apiKey: strings.TrimSpace(cfg.APIKey),
		url:    url,
		client: client,
		logger: logging.OrNop(logger).With(zap.String("provider", name)),
	}
}

func (b *httpBase) Name() string     { return b.name }
func (b *httpBase) Model() string    { return b.model }
func (b *httpBase) Configured() bool { return b.apiKey != "" && b.url != "" }

// postJSON sends body to url. A non-2xx reply comes back as a
// ProviderErrorResponse with the message pulled out by errMessage.
func (b *httpBase) postJSON(ctx context.Context, url string, headers map[string]string, body any, errMessage func([]byte) string) ([]byte, *extract.ProviderErrorResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling %s request: %w", b.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s request: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	b.logger.Debug("provider.request", zap.String("url", url), zap.Int("bytes", len(payload)))

	resp, err := httputil.DoWithRetry(ctx, b.client, req, 0, b.logger)
	if err != nil {
		return nil, nil, extract.NewTransportError("calling "+b.name, err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, nil, extract.NewTransportError("reading "+b.name+" response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errMessage(data)
		if msg == "" {
			msg = httputil.Snippet(data)
		}
		return nil, &extract.ProviderErrorResponse{Status: resp.StatusCode, Message: msg}, nil
	}
	return data, nil, nil
}

// errorEnvelope matches {"error": {"message": ...}} (OpenAI, Anthropic)
// and {"message": ...} (Cohere).
type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func envelopeMessage(data []byte) string {
	var env errorEnvelope
	if json.Unmarshal(data, &env) != nil {
		return ""
	}
	if env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return env.Message
}
