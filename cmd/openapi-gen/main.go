// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lpararaa/pitchgraph/internal/analyst"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/server"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI document huma builds from the handler types.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, &server.Services{
		Chat:    stubChat{},
		Queries: stubQueries{},
		Schema:  stubSchema{},
	})
	if err != nil {
		return nil, pgerr.Errorf(pgerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op services for document generation. Handlers are never invoked.

type stubChat struct{}

func (stubChat) Chat(context.Context, analyst.Request) (analyst.Reply, error) {
	return analyst.Reply{}, nil
}

type stubQueries struct{}

func (stubQueries) Execute(context.Context, string, map[string]any, int) types.Envelope {
	return types.Envelope{}
}
func (stubQueries) Validate(context.Context, string, int) guard.Outcome { return guard.Outcome{} }
func (stubQueries) MaxRows() int                                        { return guard.DefaultMaxRows }

type stubSchema struct{}

func (stubSchema) Snapshot(context.Context, bool) *graph.Snapshot { return &graph.Snapshot{} }
func (stubSchema) TTL() time.Duration                             { return graph.DefaultSchemaTTL }
