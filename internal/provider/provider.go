// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package provider abstracts the language model backends used to turn
// questions into Cypher and query results into prose.
package provider

import (
	"context"
	"strings"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// Provider is the core interface for LLM providers.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// ChatRequest represents a request to the LLM.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      ChatOptions
}

// ChatOptions contains model configuration.
type ChatOptions struct {
	Temperature   *float32
	MaxTokens     int
	StopSequences []string
	// JSON asks the backend for a JSON object response where supported.
	// Callers must still tolerate prose around the object.
	JSON bool
}

// Message represents a conversation message.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ParseMessageRole maps chat history roles onto MessageRole. The front end
// uses "model" and "bot" for assistant turns.
func ParseMessageRole(s string) (MessageRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return MessageRoleUser, nil
	case "assistant", "model", "bot":
		return MessageRoleAssistant, nil
	case "system":
		return MessageRoleSystem, nil
	default:
		return "", pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "unsupported message role %q", s)
	}
}

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}

// ModelInfo describes a model's capabilities.
type ModelInfo struct {
	ID           string
	Name         string
	Provider     string
	Capabilities ModelCapabilities
}

// ModelCapabilities declares what a model supports.
type ModelCapabilities struct {
	SupportsStreaming bool
	SupportsJSONMode  bool
	MaxContextTokens  int
	MaxOutputTokens   int
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available bool           `json:"available"`
	Provider  string         `json:"provider"`
	Message   string         `json:"message,omitempty"`
	Health    *HealthMetrics `json:"health,omitempty"`
}
