// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package google implements provider.Provider on the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

const name = string(provider.NameGoogle)

type Config struct {
	APIKey string
}

// Provider streams Gemini completions.
type Provider struct {
	client *genai.Client
	health *provider.HealthTracker
}

// New creates a Gemini provider. The key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "google: missing api_key in config", pgerr.FieldProvider(name))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	return &Provider{
		client: client,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
	}, nil
}

func (p *Provider) Name() string { return name }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure()                        { p.health.RecordFailure() }
func (p *Provider) RecordSuccess()                        { p.health.RecordSuccess() }
func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

func knownModels() []provider.ModelInfo {
	caps := func(out int) provider.ModelCapabilities {
		return provider.ModelCapabilities{
			SupportsStreaming: true,
			SupportsJSONMode:  true,
			MaxContextTokens:  1000000,
			MaxOutputTokens:   out,
		}
	}
	return []provider.ModelInfo{
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: name, Capabilities: caps(65536)},
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: name, Capabilities: caps(65536)},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: name, Capabilities: caps(8192)},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req)

	ch := make(chan provider.ChatEvent, 100)
	go func() {
		defer close(ch)
		p.streamChat(ctx, req.Model, contents, config, ch)
	}()
	return ch, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

func buildConfig(req provider.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}
	if req.Options.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}

	return cfg
}

// convertMessages maps history onto Gemini contents. Gemini names the
// assistant role "model"; system turns travel in SystemInstruction.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var out []*genai.Content
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case provider.MessageRoleUser:
			role = "user"
		case provider.MessageRoleAssistant:
			role = "model"
		case provider.MessageRoleSystem:
			continue
		default:
			return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return out, nil
}

func (p *Provider) streamChat(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	ch chan<- provider.ChatEvent,
) {
	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			p.health.RecordFailure()
			ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
			return
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: part.Text}
				}
			}
		}

		if result.UsageMetadata != nil {
			ch <- provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(result.UsageMetadata.PromptTokenCount),
					OutputTokens:    int(result.UsageMetadata.CandidatesTokenCount),
					CacheReadTokens: int(result.UsageMetadata.CachedContentTokenCount),
				},
			}
		}
	}

	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
