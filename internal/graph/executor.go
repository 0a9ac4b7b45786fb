// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package graph

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/lpararaa/pitchgraph/internal/metrics"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// Executor runs already-validated queries and normalizes their rows.
type Executor struct {
	db      Database
	metrics *metrics.Metrics
}

func NewExecutor(db Database, m *metrics.Metrics) *Executor {
	return &Executor{db: db, metrics: m}
}

// Run executes query with params and returns JSON-safe rows. A nil params
// map is sent as an empty map. Failures carry CodeGraphExecuteFailure, or
// CodeGraphExecuteTimeout when the context deadline expired.
func (e *Executor) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}

	start := time.Now()
	rows, err := e.db.Query(ctx, query, params)
	elapsed := time.Since(start)
	if err != nil {
		e.metrics.QueryObserved(elapsed, 0)
		code := pgerr.CodeGraphExecuteFailure
		if stderrors.Is(err, context.DeadlineExceeded) {
			code = pgerr.CodeGraphExecuteTimeout
		}
		return nil, pgerr.Wrap(err, code, "executing query", pgerr.FieldQuery(query))
	}

	e.metrics.QueryObserved(elapsed, len(rows))
	slog.Debug("graph query executed", "rows", len(rows), "duration", elapsed)

	return Normalize(rows), nil
}
