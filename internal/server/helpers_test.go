// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/analyst"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/graph/graphtest"
	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/server"
	"github.com/lpararaa/pitchgraph/internal/store"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

// fakeChat records each request and the query source it ran under.
type fakeChat struct {
	mu      sync.Mutex
	reqs    []analyst.Request
	sources []types.QuerySource

	reply analyst.Reply
	err   error
	// block, when non-nil, holds Chat until it is closed. entered
	// receives once per call before blocking.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeChat) Chat(ctx context.Context, req analyst.Request) (analyst.Reply, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.sources = append(f.sources, types.QuerySourceFrom(ctx))
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.reply, f.err
}

func (f *fakeChat) calls() ([]analyst.Request, []types.QuerySource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyst.Request(nil), f.reqs...), append([]types.QuerySource(nil), f.sources...)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeProviders struct {
	statuses []provider.ProviderStatus
	ref      string
}

func (p fakeProviders) Statuses(context.Context) []provider.ProviderStatus { return p.statuses }
func (p fakeProviders) DefaultRef() string                                 { return p.ref }

// fixture wires a real guard and schema cache over the football fake.
type fixture struct {
	db      *graphtest.Database
	schema  *graph.SchemaCache
	history *store.MemoryLog
	chat    *fakeChat
	srv     *server.Server
}

func newFixture(t *testing.T, opts ...func(*server.Config, *server.Services)) *fixture {
	t.Helper()

	db := graphtest.Football()
	schema := graph.NewSchemaCache(db)
	history := store.NewMemoryLog(100)
	g := guard.New(schema, graph.NewExecutor(db, nil), guard.Config{},
		guard.WithObserver(store.Recorder(history)))
	chat := &fakeChat{reply: analyst.Reply{Response: "Erling Haaland scored 27 goals."}}

	cfg := server.Config{ListenAddr: "127.0.0.1:0", Version: "test"}
	svc := &server.Services{
		Chat:    chat,
		Queries: g,
		Schema:  schema,
		History: history,
	}
	for _, opt := range opts {
		opt(&cfg, svc)
	}

	srv, err := server.New(cfg, svc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return &fixture{db: db, schema: schema, history: history, chat: chat, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func okStatus(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
}
