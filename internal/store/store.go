// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package store persists the audit trail of guarded query executions.
package store

import "context"

// QueryLog records every query the guard handled, accepted or not.
type QueryLog interface {
	Append(ctx context.Context, rec *QueryRecord) error
	Get(ctx context.Context, id string) (*QueryRecord, error)
	// List returns matching records, newest first.
	List(ctx context.Context, filter QueryFilter) ([]*QueryRecord, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
