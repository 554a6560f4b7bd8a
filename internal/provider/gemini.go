// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/partnerform/internal/extract"
	"github.com/pdiddy/partnerform/pkg/types"
)

// Gemini calls GenerateContent through the genai SDK with a JSON response
// MIME type, so a well-behaved reply arrives as a structured payload.
type Gemini struct {
	client *genai.Client
	model  string
	apiKey string
}

// NewGemini returns a Gemini provider. Without an API key no SDK client is
// built and the provider reports itself unconfigured.
func NewGemini(ctx context.Context, cfg types.ProviderConfig, httpClient *http.Client) (*Gemini, error) {
	g := &Gemini{model: cfg.Model, apiKey: strings.TrimSpace(cfg.APIKey)}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.apiKey == "" {
		return g, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string     { return string(types.ProviderGemini) }
func (g *Gemini) Model() string    { return g.model }
func (g *Gemini) Configured() bool { return g.client != nil }

// Generate sends one GenerateContent call.
func (g *Gemini) Generate(ctx context.Context, req extract.Request) (extract.Response, error) {
	if g.client == nil {
		return nil, errors.New("gemini client not configured")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(extract.SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		config.Temperature = &t
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Instruction+"\n"+req.Context), config)
	if err != nil {
		if status, msg, ok := apiError(err); ok {
			return extract.ProviderErrorResponse{Status: status, Message: msg}, nil
		}
		return nil, extract.NewTransportError("calling gemini", err)
	}

	text := resp.Text()
	var obj map[string]any
	if json.Unmarshal([]byte(text), &obj) == nil && obj != nil {
		return extract.StructuredPayload{Object: obj}, nil
	}
	return extract.TextCompletion{Text: text}, nil
}

// apiError unpacks a service-side error returned by the SDK.
func apiError(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
