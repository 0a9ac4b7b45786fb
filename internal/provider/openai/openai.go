// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package openai implements provider.Provider on the Chat Completions API.
// Compatible gateways reuse it with a different name and base URL.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

type Config struct {
	APIKey  string
	BaseURL string // optional, for mock servers and compatible gateways
	// Name overrides the provider name. Defaults to "openai".
	Name string
	// Models overrides the advertised model list.
	Models []provider.ModelInfo
}

type Provider struct {
	client openaisdk.Client
	name   string
	models []provider.ModelInfo
	health *provider.HealthTracker
}

// New creates an OpenAI provider. The key is required.
func New(cfg Config) (*Provider, error) {
	name := cfg.Name
	if name == "" {
		name = string(provider.NameOpenAI)
	}
	if cfg.APIKey == "" {
		return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, name+": missing api_key in config", pgerr.FieldProvider(name))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	models := cfg.Models
	if models == nil {
		models = knownModels()
	}

	return &Provider{
		client: openaisdk.NewClient(opts...),
		name:   name,
		models: models,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
	}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) RecordFailure()                        { p.health.RecordFailure() }
func (p *Provider) RecordSuccess()                        { p.health.RecordSuccess() }
func (p *Provider) HealthMetrics() provider.HealthMetrics { return p.health.HealthMetrics() }

func knownModels() []provider.ModelInfo {
	caps := func(ctxTokens, out int) provider.ModelCapabilities {
		return provider.ModelCapabilities{
			SupportsStreaming: true,
			SupportsJSONMode:  true,
			MaxContextTokens:  ctxTokens,
			MaxOutputTokens:   out,
		}
	}
	return []provider.ModelInfo{
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "openai", Capabilities: caps(128000, 32768)},
		{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: "openai", Capabilities: caps(128000, 16384)},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", Capabilities: caps(128000, 16384)},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return p.models, nil
}

func (p *Provider) Chat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.ChatEvent, 100)
	go func() {
		defer close(ch)
		p.streamChat(ctx, params, ch)
	}()
	return ch, nil
}

func (p *Provider) Status(ctx context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{
		Available: p.Available(ctx),
		Provider:  p.name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildParams maps a request onto ChatCompletionNewParams. JSON output is
// requested through the prompt rather than response_format, which not
// every compatible gateway accepts.
func buildParams(req provider.ChatRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Options.Temperature))
	}
	if len(req.Options.StopSequences) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Options.StopSequences,
		}
	}

	return params, nil
}

// convertMessages prepends the system prompt as a system message.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var out []openaisdk.ChatCompletionMessageParamUnion
	if systemPrompt != "" {
		out = append(out, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			out = append(out, openaisdk.AssistantMessage(msg.Content))
		case provider.MessageRoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		default:
			return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func (p *Provider) streamChat(ctx context.Context, params openaisdk.ChatCompletionNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: choice.Delta.Content}
			}
		}

		// include_usage puts totals on the final chunk
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			ch <- provider.ChatEvent{
				Type: provider.EventTypeUsage,
				Usage: &provider.Usage{
					InputTokens:     int(chunk.Usage.PromptTokens),
					OutputTokens:    int(chunk.Usage.CompletionTokens),
					CacheReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
				},
			}
		}
	}

	if err := stream.Err(); err != nil {
		p.health.RecordFailure()
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: err.Error()}
		return
	}

	p.health.RecordSuccess()
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
}
