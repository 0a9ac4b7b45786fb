// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/config"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/graph/graphtest"
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/secrets"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string // key → value (service is always "pitchgraph")
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", pgerr.Errorf(pgerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return pgerr.Errorf(pgerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func useSecretStore(t *testing.T, store secrets.Store) {
	t.Helper()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return store }
	t.Cleanup(func() { secretStoreFactory = orig })
}

// fakeGraph adapts graphtest.Database to graphBackend.
type fakeGraph struct {
	*graphtest.Database
	pingErr error
	closed  atomic.Bool
	cfg     graph.Neo4jConfig
}

func (f *fakeGraph) Ping(context.Context) error { return f.pingErr }

func (f *fakeGraph) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

// useFakeGraph makes openGraph return fg, recording the connection config.
func useFakeGraph(t *testing.T, fg *fakeGraph) {
	t.Helper()
	orig := openGraph
	openGraph = func(_ context.Context, cfg graph.Neo4jConfig) (graphBackend, error) {
		fg.cfg = cfg
		return fg, nil
	}
	t.Cleanup(func() { openGraph = orig })
}

func newFakeGraph() *fakeGraph {
	db := graphtest.Football()
	db.Rows = []map[string]any{{"name": "Bukayo Saka"}, {"name": "Martin Ødegaard"}}
	return &fakeGraph{Database: db}
}

// scriptedProvider answers every chat with the same text.
type scriptedProvider struct {
	name string
	text string
}

func (p *scriptedProvider) Name() string                   { return p.name }
func (p *scriptedProvider) Available(context.Context) bool { return true }
func (p *scriptedProvider) ListModels(context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}

func (p *scriptedProvider) Chat(context.Context, provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	ch := make(chan provider.ChatEvent, 2)
	ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: p.text}
	ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: p.name}, nil
}

func (p *scriptedProvider) Close() error { return nil }

// useProviderFactories replaces the built-in constructors for one test.
func useProviderFactories(t *testing.T, factories map[provider.Name]providerFactory) {
	t.Helper()
	orig := builtinProviderFactories
	builtinProviderFactories = factories
	t.Cleanup(func() { builtinProviderFactories = orig })
}

// testConfig decodes the defaults with an in-memory query log and a
// throwaway data directory.
func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("networking.listen", "127.0.0.1:8000")
	v.Set("networking.rate_limit_rps", 0)
	v.Set("storage.backend", "memory")
	v.Set("storage.path", t.TempDir())
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

// startTestServer wires a full service over fg and serves it with httptest.
func startTestServer(t *testing.T, fg *fakeGraph, overrides map[string]any) (*Service, string) {
	t.Helper()
	useFakeGraph(t, fg)

	svc, err := WireService(context.Background(), testConfig(t, overrides))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ts := httptest.NewServer(svc.Server.Handler())
	t.Cleanup(ts.Close)
	return svc, ts.URL
}

// runCLI executes the root command with a clean global viper and a
// temporary HOME. It returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}
