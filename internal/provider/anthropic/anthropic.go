// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package anthropic implements provider.Provider on the Messages API.
package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

const (
	name             = string(provider.NameAnthropic)
	defaultMaxTokens = 4096
)

type Config struct {
	APIKey  string
	BaseURL string // optional, for mock servers
}

type Provider struct {
	client anthropicsdk.Client
	health *provider.HealthTracker
}

// New creates an Anthropic provider. The key is required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config", pgerr.FieldProvider(name))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
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
			MaxContextTokens:  200000,
			MaxOutputTokens:   out,
		}
	}
	return []provider.ModelInfo{
		{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4.5", Provider: name, Capabilities: caps(16000)},
		{ID: "claude-haiku-4-5", Name: "Claude Haiku 4.5", Provider: name, Capabilities: caps(8192)},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
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
		Provider:  name,
		Message:   "ok",
	}, nil
}

func (p *Provider) Close() error { return nil }

// buildParams maps a request onto MessageNewParams. The Messages API has
// no JSON mode; the system prompt asks for JSON instead.
func buildParams(req provider.ChatRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}
	if len(req.Options.StopSequences) > 0 {
		params.StopSequences = req.Options.StopSequences
	}

	return params, nil
}

func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, error) {
	var out []anthropicsdk.MessageParam
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleAssistant:
			out = append(out, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case provider.MessageRoleSystem:
			// carried by the top-level system param
			continue
		default:
			return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func (p *Provider) streamChat(ctx context.Context, params anthropicsdk.MessageNewParams, ch chan<- provider.ChatEvent) {
	stream := p.client.Messages.NewStreaming(ctx, params)
	var usage provider.Usage

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			usage.InputTokens = int(event.Message.Usage.InputTokens)
			usage.CacheReadTokens = int(event.Message.Usage.CacheReadInputTokens)

		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: event.Delta.Text}
			}

		case "message_delta":
			usage.OutputTokens = int(event.Usage.OutputTokens)
			u := usage
			ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &u}

		case "message_stop":
			p.health.RecordSuccess()
			ch <- provider.ChatEvent{Type: provider.EventTypeDone}
			return
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
