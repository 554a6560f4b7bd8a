// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/extract"
	"github.com/pdiddy/partnerform/pkg/types"
)

const cohereURL = "https://api.cohere.ai/v1/generate"

// Cohere calls the single-prompt generate endpoint and returns a plain text
// completion.
type Cohere struct {
	httpBase
}

// NewCohere returns a Cohere provider.
func NewCohere(cfg types.ProviderConfig, client *http.Client, logger *zap.Logger) *Cohere {
	return &Cohere{httpBase: newHTTPBase(string(types.ProviderCohere), DefaultCohereModel, cohereURL, cfg, client, logger)}
}

type cohereRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type cohereResponse struct {
	Generations []struct {
		Text string `json:"text"`
	} `json:"generations"`
}

// Generate sends the whole request as one prompt.
func (c *Cohere) Generate(ctx context.Context, req extract.Request) (extract.Response, error) {
	body := cohereRequest{
		Model:       c.model,
		Prompt:      req.Prompt(),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	data, perr, err := c.postJSON(ctx, c.url, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Accept":        "application/json",
	}, body, envelopeMessage)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		return *perr, nil
	}

	var resp cohereResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding cohere response: %w", err)
	}
	if len(resp.Generations) == 0 {
		return extract.TextCompletion{}, nil
	}
	return extract.TextCompletion{Text: resp.Generations[0].Text}, nil
}
