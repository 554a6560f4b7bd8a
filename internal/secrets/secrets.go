// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: openai-api-key, anthropic-api-key, cohere-api-key, gemini-api-key.
// Each has an environment variable fallback (OPENAI_API_KEY and so on).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/partnerform/internal/logging"
	"github.com/pdiddy/partnerform/pkg/types"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

type keySource struct {
	file string
	env  string
}

var providerKeys = map[types.ProviderName]keySource{
	types.ProviderOpenAI:    {file: "openai-api-key", env: "OPENAI_API_KEY"},
	types.ProviderAnthropic: {file: "anthropic-api-key", env: "ANTHROPIC_API_KEY"},
	types.ProviderCohere:    {file: "cohere-api-key", env: "COHERE_API_KEY"},
	types.ProviderGemini:    {file: "gemini-api-key", env: "GEMINI_API_KEY"},
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	logger = logging.OrNop(logger)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("secrets.unreadable", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// FileName returns the secrets file that holds the key for provider, or ""
// when the provider needs no key.
func FileName(provider types.ProviderName) string {
	return providerKeys[provider].file
}

// EnvVar returns the environment variable consulted for provider's key.
func EnvVar(provider types.ProviderName) string {
	return providerKeys[provider].env
}

// APIKey returns the key for provider from loaded secrets, falling back to
// the environment. It returns "" when neither has one.
func APIKey(loaded map[string]string, provider types.ProviderName) string {
	return apiKey(loaded, provider, os.Getenv)
}

func apiKey(loaded map[string]string, provider types.ProviderName, getenv func(string) string) string {
	src, ok := providerKeys[provider]
	if !ok {
		return ""
	}
	if v := loaded[src.file]; v != "" {
		return v
	}
	return strings.TrimSpace(getenv(src.env))
}
