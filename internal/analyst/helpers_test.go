// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package analyst

import (
	"context"
	"errors"
	"sync"

	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

type completion struct {
	text string
	err  error
}

// scriptedModel replies with the queued completions in order and fails
// once the script runs out.
type scriptedModel struct {
	mu      sync.Mutex
	script  []completion
	refs    []string
	request []provider.ChatRequest
}

func newScriptedModel(replies ...completion) *scriptedModel {
	return &scriptedModel{script: replies}
}

func reply(text string) completion { return completion{text: text} }

func failure(msg string) completion { return completion{err: errors.New(msg)} }

func (m *scriptedModel) Complete(_ context.Context, ref string, req provider.ChatRequest) (provider.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs = append(m.refs, ref)
	m.request = append(m.request, req)
	if len(m.script) == 0 {
		return provider.Completion{}, errors.New("script exhausted")
	}
	next := m.script[0]
	m.script = m.script[1:]
	if next.err != nil {
		return provider.Completion{}, next.err
	}
	return provider.Completion{Text: next.text}, nil
}

func (m *scriptedModel) Requests() []provider.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.ChatRequest(nil), m.request...)
}

type execCall struct {
	query   string
	params  map[string]any
	maxRows int
}

// fakeGuard answers queries from a list of envelopes, in order.
type fakeGuard struct {
	mu        sync.Mutex
	envelopes []types.Envelope
	calls     []execCall
}

func (g *fakeGuard) Execute(_ context.Context, query string, params map[string]any, maxRows int) types.Envelope {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, execCall{query: query, params: params, maxRows: maxRows})
	if len(g.envelopes) == 0 {
		return types.Fail("no envelope scripted")
	}
	env := g.envelopes[0]
	g.envelopes = g.envelopes[1:]
	return env
}

func (g *fakeGuard) Calls() []execCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]execCall(nil), g.calls...)
}

func mustKnowledge() *Knowledge {
	k, err := DefaultKnowledge()
	if err != nil {
		panic(err)
	}
	return k
}
