// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one extraction attempt end to end: provider call,
// response parsing and reconciliation into a complete FormRecord. Run never
// fails; every provider or parsing problem is folded into the Outcome with a
// message for the user.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/calllog"
	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/internal/parse"
	"github.com/pdiddy/partnerform/internal/reconcile"
	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

// Extractor produces raw provider text for a bundle.
type Extractor interface {
	Extract(ctx context.Context, bundle types.RawInputBundle) types.ExtractionResult
}

// Outcome is everything one run produced.
type Outcome struct {
	RequestID string
	Result    types.ExtractionResult
	Candidate types.CandidateObject
	Phase     parse.Phase

	// Fallback is set when the candidate came from the label scan rather
	// than from provider output.
	Fallback bool

	Record  types.FormRecord
	Report  reconcile.Report
	Message string
}

// Pipeline wires an Extractor to the parser and the reconciler.
type Pipeline struct {
	extractor Extractor
	reg       *schema.Registry
	fallback  types.FallbackMode
	calls     *calllog.Log
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l) }
}

// WithCallLog records every attempt in l.
func WithCallLog(l *calllog.Log) Option {
	return func(p *Pipeline) { p.calls = l }
}

// WithFallback selects the candidate source used when extraction fails.
func WithFallback(mode types.FallbackMode) Option {
	return func(p *Pipeline) {
		if mode != "" {
			p.fallback = mode
		}
	}
}

// New returns a Pipeline. The fallback defaults to the label scan.
func New(x Extractor, reg *schema.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: x,
		reg:       reg,
		fallback:  types.FallbackLabels,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the schema the pipeline reconciles against.
func (p *Pipeline) Registry() *schema.Registry { return p.reg }

type sessionKey struct{}

// WithSession tags ctx with a session ID recorded in the call log.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFrom returns the session ID carried by ctx, or "".
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Run extracts bundle and reconciles the candidate onto previous. The
// bundle's overrides always win.
func (p *Pipeline) Run(ctx context.Context, bundle types.RawInputBundle, previous types.FormRecord) Outcome {
	out := Outcome{RequestID: uuid.NewString()}
	log := p.logger.With(zap.String("req_id", out.RequestID))
	if sid := SessionFrom(ctx); sid != "" {
		log = log.With(zap.String("session_id", sid))
	}
	start := time.Now()

	if p.extractor == nil {
		out.Result = types.Failed(types.FailureMissingCredential, "no provider configured")
	} else {
		out.Result = p.extractor.Extract(ctx, bundle)
	}

	out.Candidate, out.Phase = types.CandidateObject{}, parse.PhaseUnparseable
	if out.Result.OK() {
		out.Candidate, out.Phase = parse.ParseWithReport(out.Result.RawText)
		if out.Phase == parse.PhaseUnparseable {
			out.Result.Reason = types.FailureUnparseable
			out.Result.Detail = "no JSON object found in provider output"
		}
	}
	elapsed := time.Since(start)

	if !out.Result.OK() && p.fallback == types.FallbackLabels {
		out.Candidate = ScanLabels(p.reg, bundle.Text)
		out.Fallback = len(out.Candidate) > 0
	}

	out.Record, out.Report = reconcile.ReconcileWithReport(p.reg, out.Candidate, previous, bundle.Overrides)
	out.Message = message(out)

	log.Info("pipeline.done",
		zap.String("outcome", calllog.Outcome(out.Result)),
		zap.String("parse_phase", string(out.Phase)),
		zap.Bool("fallback", out.Fallback),
		zap.Int("filled", out.Report.Filled),
		zap.Int("kept", out.Report.Kept),
		zap.Int("overridden", out.Report.Overridden))
	if len(out.Report.Dropped) > 0 {
		log.Debug("reconcile.dropped", zap.Strings("keys", out.Report.Dropped))
	}

	p.record(ctx, out, start, elapsed, log)
	return out
}

func (p *Pipeline) record(ctx context.Context, out Outcome, start time.Time, elapsed time.Duration, log *zap.Logger) {
	if p.calls == nil {
		return
	}
	phase := ""
	if out.Result.RawText != "" {
		phase = string(out.Phase)
	}
	_, err := p.calls.Record(ctx, calllog.Attempt{
		ID:         out.RequestID,
		SessionID:  SessionFrom(ctx),
		Provider:   out.Result.Provider,
		Model:      out.Result.Model,
		Outcome:    calllog.Outcome(out.Result),
		ParsePhase: phase,
		RawBytes:   len(out.Result.RawText),
		Duration:   elapsed,
		StartedAt:  start,
	})
	if err != nil {
		log.Warn("calllog.record_failed", zap.Error(err))
	}
}

// message renders the user-facing summary of out.
func message(out Outcome) string {
	var msg string
	switch out.Result.Reason {
	case types.FailureNone:
		return fmt.Sprintf("Extracted %d field(s) from the provided information.", out.Report.Filled)
	case types.FailureMissingCredential:
		msg = "No API key is configured for the extraction service. Configure a provider key, or fill the form manually."
	case types.FailureProviderError:
		msg = fmt.Sprintf("The extraction service returned an error (%s). Check the provider configuration, or fill the form manually.", out.Result.Detail)
	case types.FailureTransport:
		msg = "Could not reach the extraction service. Check your connection and try again, or fill the form manually."
	case types.FailureEmptyOutput:
		msg = "The extraction service returned no content. Please fill the form manually."
	case types.FailureUnparseable:
		msg = "The extraction output could not be read as form data. Please fill the form manually."
	default:
		msg = fmt.Sprintf("Extraction failed (%s). Please fill the form manually.", out.Result.Reason)
	}
	if out.Fallback {
		msg += fmt.Sprintf(" %d field(s) were filled from labelled lines in your input.", out.Report.Filled)
	}
	return msg
}
