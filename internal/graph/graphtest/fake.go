// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package graphtest provides an in-memory graph.Database for tests.
package graphtest

import (
	"context"
	"sync"
	"sync/atomic"
)

// Database is a scriptable graph.Database. Zero value returns no rows and
// empty schema categories.
type Database struct {
	mu sync.Mutex

	// Rows is returned by Query unless QueryFunc is set.
	Rows      []map[string]any
	QueryErr  error
	QueryFunc func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	LabelList       []string
	RelTypeList     []string
	PropertyKeyList []string
	LabelsErr       error
	RelTypesErr     error
	PropertyKeysErr error

	// Gate, when non-nil, blocks RelationshipTypes until it is closed.
	Gate chan struct{}

	queries        []Call
	introspections atomic.Int64
}

// Call records one Query invocation.
type Call struct {
	Cypher string
	Params map[string]any
}

func (d *Database) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	d.mu.Lock()
	d.queries = append(d.queries, Call{Cypher: cypher, Params: params})
	fn, rows, err := d.QueryFunc, d.Rows, d.QueryErr
	d.mu.Unlock()

	if fn != nil {
		return fn(ctx, cypher, params)
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Database) Labels(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.LabelList, d.LabelsErr
}

func (d *Database) RelationshipTypes(ctx context.Context) ([]string, error) {
	d.introspections.Add(1)
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.RelTypeList, d.RelTypesErr
}

func (d *Database) PropertyKeys(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.PropertyKeyList, d.PropertyKeysErr
}

// SetRelationshipTypes replaces the relationship types returned on the
// next refresh.
func (d *Database) SetRelationshipTypes(types ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RelTypeList = types
}

// Queries returns the recorded Query calls in order.
func (d *Database) Queries() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.queries...)
}

// Refreshes counts schema refreshes, observed through relationship type
// introspection calls.
func (d *Database) Refreshes() int {
	return int(d.introspections.Load())
}

// Football returns a Database seeded with the statistics graph schema.
func Football() *Database {
	return &Database{
		LabelList:       []string{"Player", "Team", "Match"},
		RelTypeList:     []string{"PLAYS_FOR", "HOME_TEAM", "AWAY_TEAM", "PLAYED_IN", "SCORED_IN"},
		PropertyKeyList: []string{"name", "position", "goals", "assists", "score", "date", "venue"},
	}
}
