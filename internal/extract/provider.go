// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"net"
)

// Provider abstracts one external text-generation service so the
// orchestrator can drive any of them, and tests can supply a fake.
type Provider interface {
	// Name identifies the provider (e.g. "openai").
	Name() string

	// Model is the configured model identifier.
	Model() string

	// Configured reports whether a credential or endpoint is available.
	// An unconfigured provider is never called.
	Configured() bool

	// Generate sends one request. Network-level failures are returned as
	// errors (ideally wrapped in TransportError); a non-success status from
	// the service is a ProviderErrorResponse, not an error.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is the provider-neutral payload for one extraction attempt.
type Request struct {
	// Instruction tells the model what to produce.
	Instruction string

	// Context is the collected company text and manual input.
	Context string

	// ResponseSchema is an optional JSON Schema hint for JSON-mode providers.
	ResponseSchema map[string]any

	MaxTokens   int
	Temperature *float64
}

// Response is the closed set of shapes a provider may return. Only the
// types in this package implement it.
type Response interface {
	response()
}

// TextCompletion is a single completion string.
type TextCompletion struct {
	Text string
}

// ContentPart is one block of a chat message.
type ContentPart struct {
	Type string // "text" for textual parts; other types are ignored
	Text string
}

// ChatMessage is an assistant message made of one or more content parts.
type ChatMessage struct {
	Role  string
	Parts []ContentPart
}

// StructuredPayload is an object the provider already decoded (JSON mode).
type StructuredPayload struct {
	Object map[string]any
}

// ProviderErrorResponse is a non-success status reported by the service.
type ProviderErrorResponse struct {
	Status  int
	Message string
}

func (TextCompletion) response()        {}
func (ChatMessage) response()           {}
func (StructuredPayload) response()     {}
func (ProviderErrorResponse) response() {}

// TransportError marks a failure to reach the provider or read its reply.
// Providers wrap network errors in it so the orchestrator can classify
// them with errors.As.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return "transport: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError for operation op.
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is a transport failure: a TransportError,
// a net.Error, or an expired or cancelled context.
func IsTransport(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
