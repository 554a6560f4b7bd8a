// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"

	"github.com/pdiddy/partnerform/internal/extract"
)

// Static answers every request with a fixed text. It is configured when
// the text is non-empty and is used for offline demos and tests.
type Static struct {
	text string
}

// NewStatic returns a Static provider answering with text.
func NewStatic(text string) *Static { return &Static{text: text} }

func (s *Static) Name() string     { return "static" }
func (s *Static) Model() string    { return "" }
func (s *Static) Configured() bool { return s.text != "" }

// Generate returns the configured text as a completion.
func (s *Static) Generate(ctx context.Context, _ extract.Request) (extract.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, extract.NewTransportError("static", err)
	}
	return extract.TextCompletion{Text: s.text}, nil
}
