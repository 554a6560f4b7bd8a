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

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Anthropic calls the Claude Messages API.
type Anthropic struct {
	httpBase
}

// NewAnthropic returns an Anthropic provider.
func NewAnthropic(cfg types.ProviderConfig, client *http.Client, logger *zap.Logger) *Anthropic {
	return &Anthropic{httpBase: newHTTPBase(string(types.ProviderAnthropic), DefaultAnthropicModel, anthropicURL, cfg, client, logger)}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Generate sends one Messages request. The reply's content blocks become
// the parts of a ChatMessage.
func (a *Anthropic) Generate(ctx context.Context, req extract.Request) (extract.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = extract.DefaultMaxTokens
	}
	body := anthropicRequest{
		Model:       a.model,
		MaxTokens:   maxTokens,
		System:      extract.SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Instruction + "\n" + req.Context}},
		Temperature: req.Temperature,
	}

	data, perr, err := a.postJSON(ctx, a.url, map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}, body, envelopeMessage)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		return *perr, nil
	}

	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding anthropic response: %w", err)
	}

	msg := extract.ChatMessage{Role: resp.Role}
	for _, block := range resp.Content {
		msg.Parts = append(msg.Parts, extract.ContentPart{Type: block.Type, Text: block.Text})
	}
	return msg, nil
}
