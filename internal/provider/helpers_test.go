// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package provider_test

import (
	"context"
	"sync"

	"github.com/lpararaa/pitchgraph/internal/provider"
)

// mockProvider answers every chat with text unless chatErr or streamErr
// is set. Requests are recorded.
type mockProvider struct {
	name      string
	available bool
	text      string
	chatErr   error
	streamErr string

	mu       sync.Mutex
	requests []provider.ChatRequest
}

func newMockProvider(name string, available bool) *mockProvider {
	return &mockProvider{name: name, available: available, text: "hello from " + name}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Available(context.Context) bool { return m.available }

func (m *mockProvider) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }

func (m *mockProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.chatErr != nil {
		return nil, m.chatErr
	}

	ch := make(chan provider.ChatEvent, 3)
	if m.streamErr != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: m.streamErr}
	} else {
		ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: m.text}
		ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: m.available, Provider: m.name, Message: "ok"}, nil
}

func (m *mockProvider) Close() error { return nil }

func (m *mockProvider) Requests() []provider.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.ChatRequest(nil), m.requests...)
}

// healthyMock adds health tracking.
type healthyMock struct {
	*mockProvider
	tracker *provider.HealthTracker
}

func (h *healthyMock) RecordFailure()                        { h.tracker.RecordFailure() }
func (h *healthyMock) RecordSuccess()                        { h.tracker.RecordSuccess() }
func (h *healthyMock) HealthMetrics() provider.HealthMetrics { return h.tracker.HealthMetrics() }
