// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package wizard sequences one form-filling session:
//
//	ChooseMethod -> ProvideInput -> ExtractAndReview -> EditForm -> Export
//
// Forward moves are gated; backward moves are always allowed and never
// clear state. A Session is driven by one goroutine; the only guard against
// concurrent use is the single in-flight extraction check.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/bundle"
	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/internal/pipeline"
	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

// Step is a position in the wizard.
type Step int

const (
	StepChooseMethod Step = iota
	StepProvideInput
	StepExtractAndReview
	StepEditForm
	StepExport
)

var stepNames = [...]string{"choose_method", "provide_input", "extract_and_review", "edit_form", "export"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

var (
	ErrNoMethod           = errors.New("choose an input method first")
	ErrUnknownMethod      = errors.New("unknown input method")
	ErrInputNotParsed     = errors.New("input has not been parsed yet")
	ErrEmptyInput         = errors.New("parsed input contains no text")
	ErrEmptyRecord        = errors.New("form has no values to export")
	ErrExtractionInFlight = errors.New("an extraction is already running")
	ErrUnknownField       = errors.New("unknown form field")
	ErrWrongStep          = errors.New("operation not available at this step")
	ErrFinalStep          = errors.New("already at the final step")
)

// Runner runs one extraction attempt.
type Runner interface {
	Run(ctx context.Context, bundle types.RawInputBundle, previous types.FormRecord) pipeline.Outcome
}

// State is a snapshot of the session's workflow position.
type State struct {
	Step            Step              `json:"step" yaml:"step"`
	Method          types.InputMethod `json:"method" yaml:"method"`
	WebsiteParsed   bool              `json:"website_parsed" yaml:"website_parsed"`
	DocumentsParsed bool              `json:"documents_parsed" yaml:"documents_parsed"`
	Extracted       bool              `json:"extracted" yaml:"extracted"`
}

// Session holds the state of one wizard run.
type Session struct {
	id     string
	reg    *schema.Registry
	runner Runner
	logger *zap.Logger

	inFlight atomic.Bool

	mu        sync.Mutex
	state     State
	website   string
	siteText  string
	documents []string
	docText   string
	manual    map[string]string
	edits     map[string]string
	record    types.FormRecord
	last      *pipeline.Outcome
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = logging.OrNop(l) }
}

// WithID fixes the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New starts a session at ChooseMethod.
func New(reg *schema.Registry, runner Runner, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		reg:    reg,
		runner: runner,
		logger: zap.NewNop(),
		manual: map[string]string{},
		edits:  map[string]string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the workflow position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Step returns the current step.
func (s *Session) Step() Step { return s.State().Step }

// ChooseMethod selects how company information is supplied. It is available
// at ChooseMethod and ProvideInput; go Back to change the method later.
// Switching methods keeps previously parsed input. Manual entry starts from
// a blank form when none exists yet.
func (s *Session) ChooseMethod(m types.InputMethod) error {
	switch m {
	case types.MethodWebsite, types.MethodDocuments, types.MethodManual:
	case types.MethodNone:
		return ErrNoMethod
	default:
		return fmt.Errorf("%w %q", ErrUnknownMethod, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step > StepProvideInput {
		return fmt.Errorf("%w: choose method at %s", ErrWrongStep, s.state.Step)
	}
	s.state.Method = m
	if m == types.MethodManual && s.record == nil {
		s.record = s.reg.Empty()
	}
	s.logger.Debug("wizard.method", zap.String("method", string(m)))
	return nil
}

// SetWebsite stores text parsed from url and marks website input parsed.
// The flag stays set until Reset.
func (s *Session) SetWebsite(url, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.website, s.siteText = url, text
	s.state.WebsiteParsed = true
}

// SetDocuments stores text parsed from paths and marks document input
// parsed. The flag stays set until Reset.
func (s *Session) SetDocuments(paths []string, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append([]string(nil), paths...)
	s.docText = text
	s.state.DocumentsParsed = true
}

// SetManual records a manually typed value for a field, addressed by key
// or label. Manual values override extraction on every run.
func (s *Session) SetManual(name, value string) error {
	_, field, ok := s.reg.ResolveField(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual[field] = value
	delete(s.edits, field)
	return nil
}

// ClearManual forgets a manual value so extraction may fill the field again.
func (s *Session) ClearManual(name string) error {
	_, field, ok := s.reg.ResolveField(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.manual, field)
	delete(s.edits, field)
	return nil
}

// Next moves one step forward when the current step's exit condition holds.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canLeave(s.state.Step); err != nil {
		return err
	}
	from := s.state.Step
	s.state.Step++
	if s.state.Step >= StepEditForm && s.record == nil {
		s.record = s.reg.Empty()
	}
	s.logger.Debug("wizard.step", zap.Stringer("from", from), zap.Stringer("to", s.state.Step))
	return nil
}

func (s *Session) canLeave(step Step) error {
	switch step {
	case StepChooseMethod:
		if s.state.Method == types.MethodNone {
			return ErrNoMethod
		}
	case StepProvideInput:
		switch s.state.Method {
		case types.MethodWebsite:
			return parsedInput(s.state.WebsiteParsed, s.siteText)
		case types.MethodDocuments:
			return parsedInput(s.state.DocumentsParsed, s.docText)
		case types.MethodNone:
			return ErrNoMethod
		}
	case StepEditForm:
		if !s.record.HasContent() {
			return ErrEmptyRecord
		}
	case StepExport:
		return ErrFinalStep
	}
	return nil
}

func parsedInput(parsed bool, text string) error {
	if !parsed {
		return ErrInputNotParsed
	}
	if bundle.Clean(text) == "" {
		return ErrEmptyInput
	}
	return nil
}

// Back moves one step backward. It is a no-op at the first step and never
// clears input, flags or the record.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Step > StepChooseMethod {
		s.state.Step--
	}
}

// Bundle builds the extraction input from everything parsed so far and the
// manual values.
func (s *Session) Bundle() types.RawInputBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundleLocked()
}

func (s *Session) bundleLocked() types.RawInputBundle {
	var site string
	var docs []string
	if s.state.WebsiteParsed {
		site = s.siteText
	}
	if s.state.DocumentsParsed {
		docs = []string{s.docText}
	}
	return bundle.WithEdits(bundle.Build(site, docs, s.manual), s.edits)
}

// Extract runs the pipeline on the current bundle and overlays the result
// onto the existing record. It is available at ExtractAndReview and
// EditForm. Only one extraction may run at a time.
func (s *Session) Extract(ctx context.Context) (pipeline.Outcome, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return pipeline.Outcome{}, ErrExtractionInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	if s.state.Step != StepExtractAndReview && s.state.Step != StepEditForm {
		step := s.state.Step
		s.mu.Unlock()
		return pipeline.Outcome{}, fmt.Errorf("%w: extract at %s", ErrWrongStep, step)
	}
	b := s.bundleLocked()
	previous := s.record.Clone()
	s.mu.Unlock()

	s.logger.Info("wizard.extract", zap.Int("text_bytes", len(b.Text)), zap.Int("overrides", len(b.Overrides)))
	out := s.runner.Run(pipeline.WithSession(ctx, s.id), b, previous)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = out.Record.Clone()
	s.state.Extracted = true
	s.last = &out
	return out, nil
}

// LastOutcome returns the most recent extraction outcome.
func (s *Session) LastOutcome() (pipeline.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return pipeline.Outcome{}, false
	}
	return *s.last, true
}

// Record returns a copy of the form record; nil before the form exists.
func (s *Session) Record() types.FormRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// EditField sets a form value by field key or label. The value, blank
// included, is kept as an override so a later extraction cannot replace it.
func (s *Session) EditField(name, value string) error {
	sec, field, ok := s.reg.ResolveField(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		s.record = s.reg.Empty()
	}
	s.record[sec][field] = value
	s.edits[field] = value
	delete(s.manual, field)
	return nil
}

// Final returns the record for export. It fails with ErrEmptyRecord when
// no field holds a value.
func (s *Session) Final() (types.FormRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.record.HasContent() {
		return nil, ErrEmptyRecord
	}
	return s.record.Clone(), nil
}

// Reset returns the session to ChooseMethod and forgets all input, flags
// and the record. The session ID is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	s.website, s.siteText = "", ""
	s.documents, s.docText = nil, ""
	s.manual = map[string]string{}
	s.edits = map[string]string{}
	s.record = nil
	s.last = nil
	s.logger.Debug("wizard.reset")
}

// Website returns the URL of the parsed website input.
func (s *Session) Website() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.website
}

// ParsedWebsite returns the parsed website input. ok is false until
// SetWebsite has been called.
func (s *Session) ParsedWebsite() (url, text string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.website, s.siteText, s.state.WebsiteParsed
}

// ParsedDocuments returns the parsed document input. ok is false until
// SetDocuments has been called.
func (s *Session) ParsedDocuments() (paths []string, text string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.documents...), s.docText, s.state.DocumentsParsed
}

// Documents returns the paths of the parsed document input.
func (s *Session) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.documents...)
}
