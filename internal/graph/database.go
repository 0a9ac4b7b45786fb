// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package graph connects to the statistics graph: a read-only query
// adapter, a TTL-bounded cache of the database schema, and conversion of
// driver-native result values into JSON-safe rows.
package graph

import "context"

// Database is the minimal surface the guard and the schema cache need from
// a graph database. Each introspection call may fail independently.
type Database interface {
	// Query runs a read-only statement and returns one map per record,
	// keyed by column name. Values are driver-native.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Labels(ctx context.Context) ([]string, error)
	RelationshipTypes(ctx context.Context) ([]string, error)
	PropertyKeys(ctx context.Context) ([]string, error)
}

// Pinger is implemented by databases that can verify connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
