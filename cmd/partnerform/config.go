// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/partnerform/internal/extract"
	"github.com/pdiddy/partnerform/pkg/types"
)

// envKeyReplacer maps nested keys to env names: provider.model becomes
// PARTNERFORM_PROVIDER_MODEL.
var envKeyReplacer = strings.NewReplacer(".", "_")

const defaultUserAgent = "partnerform/0.1"

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", string(types.ProviderOpenAI))
	v.SetDefault("provider.timeout", extract.DefaultTimeout)
	v.SetDefault("provider.max_retries", 1)
	v.SetDefault("provider.max_tokens", extract.DefaultMaxTokens)
	v.SetDefault("extraction.fallback", string(types.FallbackLabels))
	v.SetDefault("extraction.max_context_chars", extract.DefaultMaxContextChars)
	v.SetDefault("gather.timeout", "20s")
	v.SetDefault("gather.user_agent", defaultUserAgent)
	v.SetDefault("logging.level", "info")
}

// loadConfig reads the merged flag, env and file configuration.
func loadConfig() (types.PipelineConfig, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}

	switch cfg.Provider.Name {
	case types.ProviderOpenAI, types.ProviderAnthropic, types.ProviderCohere, types.ProviderGemini, types.ProviderStatic:
	default:
		return cfg, fmt.Errorf("unknown provider %q (want openai, anthropic, cohere, gemini or static)", cfg.Provider.Name)
	}
	switch cfg.Extraction.Fallback {
	case types.FallbackLabels, types.FallbackNone:
	default:
		return cfg, fmt.Errorf("unknown fallback %q (want labels or none)", cfg.Extraction.Fallback)
	}
	return cfg, nil
}
