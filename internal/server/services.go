// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package server

import (
	"context"
	"time"

	"github.com/lpararaa/pitchgraph/internal/analyst"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/store"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

// ChatService answers natural-language questions.
type ChatService interface {
	Chat(ctx context.Context, req analyst.Request) (analyst.Reply, error)
}

// QueryService runs and checks untrusted Cypher. *guard.Guard implements it.
type QueryService interface {
	Execute(ctx context.Context, query string, params map[string]any, maxRows int) types.Envelope
	Validate(ctx context.Context, query string, maxRows int) guard.Outcome
	MaxRows() int
}

// SchemaService exposes the cached graph schema. *graph.SchemaCache
// implements it.
type SchemaService interface {
	Snapshot(ctx context.Context, force bool) *graph.Snapshot
	TTL() time.Duration
}

// ProviderService reports language model backends. *provider.Registry
// implements it.
type ProviderService interface {
	Statuses(ctx context.Context) []provider.ProviderStatus
	DefaultRef() string
}

// Services holds dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
type Services struct {
	Chat    ChatService
	Queries QueryService
	Schema  SchemaService

	// Optional. A nil History disables the query log endpoints; nil Graph
	// and Providers drop those components from status.
	History   store.QueryLog
	Graph     graph.Pinger
	Providers ProviderService
}

func (s *Services) validate() error {
	if s == nil {
		return pgerr.New(pgerr.CodeServerConfigInvalid, "services are required")
	}
	if s.Chat == nil {
		return pgerr.New(pgerr.CodeServerConfigInvalid, "chat service is required")
	}
	if s.Queries == nil {
		return pgerr.New(pgerr.CodeServerConfigInvalid, "query service is required")
	}
	if s.Schema == nil {
		return pgerr.New(pgerr.CodeServerConfigInvalid, "schema service is required")
	}
	return nil
}
