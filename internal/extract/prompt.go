// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"sort"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

// SystemPrompt frames the model for every provider that takes a separate
// system message.
const SystemPrompt = "You are an expert in corporate partnerships, helping to fill partnership forms accurately."

// instructionTmpl lists the schema so the model answers with flat field keys.
var instructionTmpl = template.Must(template.New("instruction").Parse(`Fill the partnership form from the context below.

Respond with a single JSON object whose keys are the field keys listed here and whose values are strings. Use an empty string when the context does not state a value. Do not invent facts and do not include any text outside the JSON object.

Fields:
{{- range .Sections}}
# {{.Title}}{{if .Description}} ({{.Description}}){{end}}
{{- range .Fields}}
- {{.Key}}: {{.Label}}
{{- end}}
{{- end}}
`))

// contextTmpl lays out the collected text followed by manual input.
var contextTmpl = template.Must(template.New("context").Parse(`Company Info:
{{if .Text}}{{.Text}}{{else}}(none){{end}}

Manual Input:
{{- if .Manual}}
{{- range .Manual}}
{{.Key}}: {{.Value}}
{{- end}}
{{- else}}
(none)
{{- end}}
`))

type manualEntry struct{ Key, Value string }

// BuildRequest renders the instruction and context for bundle. Text longer
// than maxChars runes is cut; maxChars <= 0 means no limit.
func BuildRequest(reg *schema.Registry, bundle types.RawInputBundle, cfg types.ProviderConfig, maxChars int) (Request, error) {
	var ins bytes.Buffer
	if err := instructionTmpl.Execute(&ins, struct{ Sections []types.Section }{reg.Sections()}); err != nil {
		return Request{}, err
	}

	manual := make([]manualEntry, 0, len(bundle.Overrides))
	for k, v := range bundle.Overrides {
		manual = append(manual, manualEntry{Key: k, Value: v})
	}
	sort.Slice(manual, func(i, j int) bool { return manual[i].Key < manual[j].Key })

	var ctxBuf bytes.Buffer
	err := contextTmpl.Execute(&ctxBuf, struct {
		Text   string
		Manual []manualEntry
	}{Text: truncate(strings.TrimSpace(bundle.Text), maxChars), Manual: manual})
	if err != nil {
		return Request{}, err
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return Request{
		Instruction:    ins.String(),
		Context:        ctxBuf.String(),
		ResponseSchema: reg.ResponseSchema(),
		MaxTokens:      maxTokens,
		Temperature:    cfg.Temperature,
	}, nil
}

// Prompt joins a request into one text for completion-style providers.
func (r Request) Prompt() string {
	return SystemPrompt + "\n\n" + r.Instruction + "\n" + r.Context
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
