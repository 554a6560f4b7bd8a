// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "partnerform/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// ProviderName identifies a text-generation provider implementation.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderCohere    ProviderName = "cohere"
	ProviderGemini    ProviderName = "gemini"
	ProviderStatic    ProviderName = "static"
)

// ProviderConfig holds settings for the external text-generation provider.
type ProviderConfig struct {
	// Name selects the provider implementation.
	Name ProviderName `json:"name" yaml:"name" mapstructure:"name"`

	// Model is the provider model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key. Empty means "not configured".
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (proxies, compatible servers, tests).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout is the bounded wait for one provider call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of automatic retries on transport failure.
	// Values above 1 are clamped to 1.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens limits the response length (default 1500).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Temperature is passed through when non-nil.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`

	// StaticResponse is the canned output of the static provider.
	StaticResponse string `json:"static_response,omitempty" yaml:"static_response,omitempty" mapstructure:"static_response"`
}

// FallbackMode selects how a candidate is produced when the provider fails.
type FallbackMode string

const (
	// FallbackLabels scans the bundle text for "Label: value" lines.
	FallbackLabels FallbackMode = "labels"
	// FallbackNone reconciles an empty candidate.
	FallbackNone FallbackMode = "none"
)

// ExtractionConfig holds settings for the extraction pipeline.
type ExtractionConfig struct {
	// SchemaPath points at a schema file; empty uses the built-in partnership schema.
	SchemaPath string `json:"schema_path,omitempty" yaml:"schema_path,omitempty" mapstructure:"schema_path"`

	// Fallback selects the candidate source when the provider fails (default labels).
	Fallback FallbackMode `json:"fallback" yaml:"fallback" mapstructure:"fallback"`

	// MaxContextChars truncates the context text sent to the provider (default 12000).
	MaxContextChars int `json:"max_context_chars" yaml:"max_context_chars" mapstructure:"max_context_chars"`
}

// GatherConfig holds settings for the website and document collaborators.
type GatherConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// UseContainer enables PDF/DOCX conversion through the markitdown container.
	UseContainer bool `json:"use_container" yaml:"use_container" mapstructure:"use_container"`
}

// CallLogConfig holds settings for the extraction attempt log.
type CallLogConfig struct {
	// Path is the SQLite database path; empty keeps the log in memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty" mapstructure:"path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Debug switches to a human-readable console encoder at debug level.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`

	// Level is the minimum level for the production logger (default "info").
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// PipelineConfig groups all component configurations.
type PipelineConfig struct {
	Provider   ProviderConfig   `json:"provider" yaml:"provider" mapstructure:"provider"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Gather     GatherConfig     `json:"gather" yaml:"gather" mapstructure:"gather"`
	CallLog    CallLogConfig    `json:"calllog" yaml:"calllog" mapstructure:"calllog"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
}
