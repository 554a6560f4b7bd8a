// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse recovers a JSON object from free-form provider output.
//
// Recovery runs in phases. The whole text is tried as one object first.
// Failing that, the span from the first '{' to the last '}' is tried as is,
// then again with line comments and trailing commas removed. Anything that
// still does not decode to an object yields an empty candidate; Parse never
// returns an error.
package parse

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/pdiddy/partnerform/pkg/types"
)

// Phase names the recovery step that produced a candidate.
type Phase string

const (
	PhaseStrict      Phase = "strict"
	PhaseSubstring   Phase = "substring"
	PhaseRepaired    Phase = "repaired"
	PhaseUnparseable Phase = "unparseable"
)

// trailingCommaPattern matches a comma directly before a closing } or ].
var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// Parse returns the JSON object embedded in raw, or an empty object.
func Parse(raw string) types.CandidateObject {
	obj, _ := ParseWithReport(raw)
	return obj
}

// ParseWithReport is Parse plus the phase that succeeded. The returned
// object is never nil.
func ParseWithReport(raw string) (types.CandidateObject, Phase) {
	if obj, ok := decodeObject(raw); ok {
		return obj, PhaseStrict
	}

	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return types.CandidateObject{}, PhaseUnparseable
	}
	span := raw[start : end+1]

	if obj, ok := decodeObject(span); ok {
		return obj, PhaseSubstring
	}
	if obj, ok := decodeObject(repair(span)); ok {
		return obj, PhaseRepaired
	}
	return types.CandidateObject{}, PhaseUnparseable
}

// decodeObject strictly decodes s as exactly one JSON object. Numbers are
// kept as json.Number so large integers survive stringification.
func decodeObject(s string) (types.CandidateObject, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, false
	}
	return types.CandidateObject(obj), true
}

// repair strips // comments outside string literals and trailing commas.
func repair(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment removes a // comment from one line, leaving "//" inside
// string values (URLs) alone.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
