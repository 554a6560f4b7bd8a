// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract sends a RawInputBundle to one text-generation provider and
// turns whatever comes back into a single ExtractionResult.
//
// Provider failures never escape as errors. A missing credential, a
// transport failure, a non-success status and an empty reply each become a
// Failed result with a distinct reason; anything else is Recovered with the
// raw text for the parser.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

const (
	// DefaultTimeout bounds one provider call.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens matches the response budget of the original form filler.
	DefaultMaxTokens = 1500

	// DefaultMaxContextChars caps the company text sent to the provider.
	DefaultMaxContextChars = 12000
)

// backoffBase controls the wait before the single transport retry. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Orchestrator runs extraction attempts against one provider.
type Orchestrator struct {
	provider Provider
	reg      *schema.Registry
	cfg      types.ProviderConfig
	maxChars int
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(l) }
}

// WithMaxContextChars caps the bundle text sent to the provider.
func WithMaxContextChars(n int) Option {
	return func(o *Orchestrator) { o.maxChars = n }
}

// New returns an Orchestrator for p. cfg supplies the timeout, retry limit
// and generation settings.
func New(p Provider, reg *schema.Registry, cfg types.ProviderConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: p,
		reg:      reg,
		cfg:      cfg,
		maxChars: DefaultMaxContextChars,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extract is a one-shot helper around New(...).Extract.
func Extract(ctx context.Context, bundle types.RawInputBundle, p Provider, reg *schema.Registry, cfg types.ProviderConfig) types.ExtractionResult {
	return New(p, reg, cfg).Extract(ctx, bundle)
}

// Extract makes one extraction attempt. It retries at most once, and only
// after a transport failure.
func (o *Orchestrator) Extract(ctx context.Context, bundle types.RawInputBundle) types.ExtractionResult {
	if o.provider == nil {
		return types.Failed(types.FailureMissingCredential, "no provider configured")
	}

	name, model := o.provider.Name(), o.provider.Model()
	log := o.logger.With(zap.String("provider", name), zap.String("model", model))

	result := o.extract(ctx, bundle, log)
	result.Provider, result.Model = name, model

	if result.OK() {
		log.Info("extract.done", zap.Int("raw_bytes", len(result.RawText)))
	} else {
		log.Warn("extract.failed", zap.String("reason", string(result.Reason)), zap.String("detail", result.Detail))
	}
	return result
}

func (o *Orchestrator) extract(ctx context.Context, bundle types.RawInputBundle, log *zap.Logger) types.ExtractionResult {
	if !o.provider.Configured() {
		return types.Failed(types.FailureMissingCredential,
			fmt.Sprintf("no API key or endpoint configured for provider %q", o.provider.Name()))
	}

	req, err := BuildRequest(o.reg, bundle, o.cfg, o.maxChars)
	if err != nil {
		return types.Failed(types.FailureProviderError, fmt.Sprintf("building request: %v", err))
	}

	log.Info("extract.start", zap.Int("context_bytes", len(req.Context)))

	resp, err := callWithRetry(ctx, o.provider, req, o.timeout(), clampRetries(o.cfg.MaxRetries), log)
	if err != nil {
		if IsTransport(err) {
			return types.Failed(types.FailureTransport, err.Error())
		}
		return types.Failed(types.FailureProviderError, err.Error())
	}

	return Normalize(resp)
}

func (o *Orchestrator) timeout() time.Duration {
	if o.cfg.Timeout > 0 {
		return o.cfg.Timeout
	}
	return DefaultTimeout
}

// clampRetries keeps the automatic retry count in [0, 1].
func clampRetries(n int) int {
	return max(0, min(n, 1))
}

// callWithRetry calls the provider under a per-attempt timeout. Only
// transport failures are retried, with exponential backoff.
func callWithRetry(ctx context.Context, p Provider, req Request, timeout time.Duration, maxRetries int, log *zap.Logger) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			log.Debug("extract.retry", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, NewTransportError("waiting to retry", ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err := generate(ctx, p, req, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransport(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

type reply struct {
	resp Response
	err  error
}

// generate runs one call with its own deadline. The call is abandoned when
// the deadline passes, even if the provider ignores its context; a reply
// that arrives later is discarded.
func generate(ctx context.Context, p Provider, req Request, timeout time.Duration) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := callCtx.Err(); err != nil {
		return nil, NewTransportError("calling "+p.Name(), err)
	}

	done := make(chan reply, 1)
	go func() {
		resp, err := p.Generate(callCtx, req)
		done <- reply{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if callCtx.Err() != nil {
			return nil, NewTransportError("calling "+p.Name(), callCtx.Err())
		}
		return r.resp, nil
	case <-callCtx.Done():
		return nil, NewTransportError("calling "+p.Name(), callCtx.Err())
	}
}

// Normalize reduces any response variant to an ExtractionResult.
func Normalize(resp Response) types.ExtractionResult {
	var text string
	switch r := deref(resp).(type) {
	case TextCompletion:
		text = r.Text
	case ChatMessage:
		text = joinParts(r.Parts)
	case StructuredPayload:
		return normalizeStructured(r.Object)
	case ProviderErrorResponse:
		return providerFailure(r)
	case nil:
		return types.Failed(types.FailureEmptyOutput, "provider returned no response")
	default:
		return types.Failed(types.FailureProviderError, fmt.Sprintf("unsupported response type %T", resp))
	}

	if strings.TrimSpace(text) == "" {
		return types.Failed(types.FailureEmptyOutput, "provider returned empty content")
	}
	return types.Recovered(text)
}

// deref turns pointer variants into values. A typed nil pointer becomes nil.
func deref(resp Response) Response {
	switch r := resp.(type) {
	case *TextCompletion:
		if r != nil {
			return *r
		}
	case *ChatMessage:
		if r != nil {
			return *r
		}
	case *StructuredPayload:
		if r != nil {
			return *r
		}
	case *ProviderErrorResponse:
		if r != nil {
			return *r
		}
	default:
		return resp
	}
	return nil
}

func joinParts(parts []ContentPart) string {
	var texts []string
	for _, p := range parts {
		if p.Type != "" && p.Type != "text" {
			continue
		}
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func normalizeStructured(obj map[string]any) types.ExtractionResult {
	if len(obj) == 0 {
		return types.Failed(types.FailureEmptyOutput, "provider returned an empty object")
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return types.Failed(types.FailureProviderError, fmt.Sprintf("re-encoding structured payload: %v", err))
	}
	return types.Recovered(string(b))
}

func providerFailure(r ProviderErrorResponse) types.ExtractionResult {
	msg := strings.TrimSpace(r.Message)
	if short := truncate(msg, 200); short != msg {
		msg = short + "..."
	}
	if r.Status == 0 {
		return types.Failed(types.FailureProviderError, msg)
	}
	return types.Failed(types.FailureProviderError, fmt.Sprintf("status %d: %s", r.Status, msg))
}
