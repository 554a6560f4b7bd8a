// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/extract"
	"github.com/pdiddy/partnerform/pkg/types"
)

const openAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI calls the chat completions endpoint in JSON mode. BaseURL may
// point at any compatible server; "/chat/completions" is appended unless
// already present.
type OpenAI struct {
	httpBase
}

// NewOpenAI returns an OpenAI provider.
func NewOpenAI(cfg types.ProviderConfig, client *http.Client, logger *zap.Logger) *OpenAI {
	if cfg.BaseURL != "" && !strings.HasSuffix(cfg.BaseURL, "/chat/completions") {
		cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions"
	}
	return &OpenAI{httpBase: newHTTPBase(string(types.ProviderOpenAI), DefaultOpenAIModel, openAIURL, cfg, client, logger)}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends one chat completion request.
func (o *OpenAI) Generate(ctx context.Context, req extract.Request) (extract.Response, error) {
	body := openAIRequest{
		Model: o.model,
		Messages: []openAIMessage{
			{Role: "system", Content: extract.SystemPrompt},
			{Role: "user", Content: req.Instruction + "\n" + req.Context},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.ResponseSchema != nil {
		body.ResponseFormat = map[string]string{"type": "json_object"}
	}

	data, perr, err := o.postJSON(ctx, o.url, map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, body, envelopeMessage)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		return *perr, nil
	}

	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return extract.ChatMessage{Role: "assistant"}, nil
	}

	msg := resp.Choices[0].Message
	if msg.Content == "" && msg.Refusal != "" {
		return extract.ProviderErrorResponse{Status: http.StatusOK, Message: "model refused: " + msg.Refusal}, nil
	}
	return extract.ChatMessage{
		Role:  msg.Role,
		Parts: []extract.ContentPart{{Type: "text", Text: msg.Content}},
	}, nil
}
