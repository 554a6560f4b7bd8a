// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bundle merges collected inputs into the RawInputBundle handed to
// one extraction attempt.
package bundle

import (
	"strings"

	"github.com/pdiddy/partnerform/pkg/types"
)

// Build returns a fresh bundle. Text holds the website text followed by
// each document's text in order, separated by blank lines; blank sources
// are skipped. Manual entries become overrides. Entries with a blank key
// or a blank value are left out, so an untouched manual form never masks
// extracted values.
func Build(website string, documents []string, manual map[string]string) types.RawInputBundle {
	var parts []string
	if t := Clean(website); t != "" {
		parts = append(parts, t)
	}
	for _, d := range documents {
		if t := Clean(d); t != "" {
			parts = append(parts, t)
		}
	}

	b := types.RawInputBundle{Text: strings.Join(parts, "\n\n")}
	for k, v := range manual {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if b.Overrides == nil {
			b.Overrides = make(map[string]string)
		}
		b.Overrides[k] = v
	}
	return b
}

// WithEdits adds fields the user edited directly as overrides. Unlike
// manual entries a blank edit is kept: clearing a field is an explicit
// value that later extractions must not refill.
func WithEdits(b types.RawInputBundle, edits map[string]string) types.RawInputBundle {
	for k, v := range edits {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if b.Overrides == nil {
			b.Overrides = make(map[string]string, len(edits))
		}
		b.Overrides[k] = strings.TrimSpace(v)
	}
	return b
}

// IsEmpty reports whether b carries neither text nor overrides.
func IsEmpty(b types.RawInputBundle) bool {
	return strings.TrimSpace(b.Text) == "" && len(b.Overrides) == 0
}

// Clean trims every line and drops the blank ones.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if l := strings.TrimSpace(line); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
