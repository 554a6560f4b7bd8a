// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Field is one labelled entry of a schema section.
type Field struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

// Section groups related fields under a stable key.
type Section struct {
	Key         string  `json:"key" yaml:"key"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Schema is the ordered definition every FormRecord must conform to.
// Field keys are unique across all sections.
type Schema struct {
	Version  string    `json:"version,omitempty" yaml:"version,omitempty"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// FormRecord maps section key to field key to value.
type FormRecord map[string]map[string]string

// Clone returns a deep copy of r. A nil record clones to nil.
func (r FormRecord) Clone() FormRecord {
	if r == nil {
		return nil
	}
	out := make(FormRecord, len(r))
	for sec, fields := range r {
		cp := make(map[string]string, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		out[sec] = cp
	}
	return out
}

// Get returns the value of field in section, or "" when absent.
func (r FormRecord) Get(section, field string) string {
	return r[section][field]
}

// HasContent reports whether at least one field holds a non-blank value.
func (r FormRecord) HasContent() bool {
	for _, fields := range r {
		for _, v := range fields {
			if strings.TrimSpace(v) != "" {
				return true
			}
		}
	}
	return false
}

// CandidateObject is the untyped object recovered from provider output.
type CandidateObject map[string]any

// InputMethod is how the user supplies company information.
type InputMethod string

const (
	MethodNone      InputMethod = ""
	MethodWebsite   InputMethod = "website"
	MethodDocuments InputMethod = "documents"
	MethodManual    InputMethod = "manual"
)

// RawInputBundle is the merged input to one extraction attempt: website text
// followed by document text, plus the user's manual overrides by field key.
type RawInputBundle struct {
	Text      string            `json:"text" yaml:"text"`
	Overrides map[string]string `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// FailureReason classifies why an extraction attempt produced no usable text.
type FailureReason string

const (
	FailureNone              FailureReason = ""
	FailureMissingCredential FailureReason = "missing_credential"
	FailureTransport         FailureReason = "transport"
	FailureProviderError     FailureReason = "provider_error"
	FailureEmptyOutput       FailureReason = "empty_output"

	// FailureUnparseable is reported by the pipeline when the provider
	// returned text but no JSON object could be recovered from it.
	FailureUnparseable FailureReason = "unparseable"
)

// ExtractionResult is the outcome of one provider invocation: either
// Recovered (RawText set, Reason empty) or Failed (Reason set).
type ExtractionResult struct {
	RawText  string        `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
	Reason   FailureReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Provider string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string        `json:"model,omitempty" yaml:"model,omitempty"`
}

// Recovered builds a successful result.
func Recovered(raw string) ExtractionResult {
	return ExtractionResult{RawText: raw}
}

// Failed builds a failed result with a human-readable detail.
func Failed(reason FailureReason, detail string) ExtractionResult {
	return ExtractionResult{Reason: reason, Detail: detail}
}

// OK reports whether the result is Recovered.
func (r ExtractionResult) OK() bool {
	return r.Reason == FailureNone
}
