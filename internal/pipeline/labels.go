// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"strings"

	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

// labelDecoration is stripped from both ends of a label: Markdown list
// markers, headings, emphasis and table pipes.
const labelDecoration = " \t-*#>|_`"

// ScanLabels builds a candidate from "Label: value" lines of text. A label
// matches a field key or display label, ignoring case and separators. The
// first line for a field wins.
func ScanLabels(reg *schema.Registry, text string) types.CandidateObject {
	cand := types.CandidateObject{}
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.Trim(label, labelDecoration)
		value = strings.Trim(value, labelDecoration)
		if label == "" || value == "" {
			continue
		}
		_, field, ok := reg.ResolveField(label)
		if !ok {
			continue
		}
		if _, seen := cand[field]; !seen {
			cand[field] = value
		}
	}
	return cand
}
