// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package types

import (
	"context"
	"strings"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// QuerySource identifies which surface submitted a query for execution.
type QuerySource string

const (
	// QuerySourceChat is a query generated by the analyst from a chat message.
	QuerySourceChat QuerySource = "chat"
	// QuerySourceAPI is a raw query posted to the HTTP API.
	QuerySourceAPI QuerySource = "api"
	// QuerySourceCLI is a raw query run from the command line.
	QuerySourceCLI QuerySource = "cli"
)

// Valid reports whether s is a recognized query source.
func (s QuerySource) Valid() bool {
	switch s {
	case QuerySourceChat, QuerySourceAPI, QuerySourceCLI:
		return true
	default:
		return false
	}
}

// ParseQuerySource parses a case-insensitive string into a QuerySource.
func ParseQuerySource(s string) (QuerySource, error) {
	src := QuerySource(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", pgerr.Errorf(pgerr.CodeStoreInvalidInput, "invalid query source: %q", s)
	}
	return src, nil
}

type querySourceKey struct{}

// WithQuerySource tags ctx with the surface that submitted a query.
func WithQuerySource(ctx context.Context, src QuerySource) context.Context {
	return context.WithValue(ctx, querySourceKey{}, src)
}

// QuerySourceFrom returns the source stored in ctx, defaulting to
// QuerySourceAPI.
func QuerySourceFrom(ctx context.Context) QuerySource {
	if src, ok := ctx.Value(querySourceKey{}).(QuerySource); ok && src.Valid() {
		return src
	}
	return QuerySourceAPI
}
