// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package openrouter configures the OpenAI-compatible client for OpenRouter.
package openrouter

import (
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/provider/openai"
)

const baseURL = "https://openrouter.ai/api/v1"

type Config struct {
	APIKey  string
	BaseURL string // optional, for mock servers
}

// New returns an OpenAI-compatible provider named "openrouter". Model IDs
// keep OpenRouter's vendor prefix, e.g. "openrouter/google/gemini-2.5-flash".
func New(cfg Config) (*openai.Provider, error) {
	base := cfg.BaseURL
	if base == "" {
		base = baseURL
	}
	return openai.New(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: base,
		Name:    string(provider.NameOpenRouter),
		Models:  knownModels(),
	})
}

func knownModels() []provider.ModelInfo {
	caps := provider.ModelCapabilities{
		SupportsStreaming: true,
		MaxContextTokens:  128000,
		MaxOutputTokens:   16384,
	}
	name := string(provider.NameOpenRouter)
	return []provider.ModelInfo{
		{ID: "google/gemini-2.5-flash", Name: "Gemini 2.5 Flash (OpenRouter)", Provider: name, Capabilities: caps},
		{ID: "anthropic/claude-sonnet-4.5", Name: "Claude Sonnet 4.5 (OpenRouter)", Provider: name, Capabilities: caps},
		{ID: "openai/gpt-4.1-mini", Name: "GPT-4.1 Mini (OpenRouter)", Provider: name, Capabilities: caps},
	}
}
