// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package store

import (
	"time"

	"github.com/google/uuid"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// QueryRecord is one guarded execution. Executed is empty when the guard
// rejected the query; Rule then names the rule that fired.
type QueryRecord struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Source    types.QuerySource `json:"source"`
	Query     string            `json:"query"`
	Executed  string            `json:"executed,omitempty"`
	Status    types.Status      `json:"status"`
	Rule      string            `json:"rule,omitempty"`
	Message   string            `json:"message,omitempty"`
	Rows      int               `json:"rows"`
	Duration  time.Duration     `json:"duration_ns"`
}

// Rejected reports whether the guard stopped the query before execution.
func (r *QueryRecord) Rejected() bool {
	return r.Rule != ""
}

// QueryFilter narrows List. Zero values match everything.
type QueryFilter struct {
	Status types.Status
	Source types.QuerySource
	Since  time.Time
	Limit  int
	Offset int
}

// Normalize applies defaults and rejects malformed filters.
func (f QueryFilter) Normalize() (QueryFilter, error) {
	if f.Status != "" && f.Status != types.StatusOK && f.Status != types.StatusError {
		return f, pgerr.Errorf(pgerr.CodeStoreInvalidInput, "unknown status filter %q", f.Status)
	}
	if f.Source != "" && !f.Source.Valid() {
		return f, pgerr.Errorf(pgerr.CodeStoreInvalidInput, "unknown source filter %q", f.Source)
	}
	if f.Offset < 0 {
		return f, pgerr.Errorf(pgerr.CodeStoreInvalidInput, "offset must not be negative, got %d", f.Offset)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f, nil
}

// Stats summarises the log.
type Stats struct {
	Total    int64     `json:"total"`
	OK       int64     `json:"ok"`
	Errors   int64     `json:"errors"`
	Rejected int64     `json:"rejected"`
	Last     time.Time `json:"last,omitzero"`
}

// Prepare validates rec and fills in a missing ID, timestamp and source.
// Backends call it at the top of Append.
func Prepare(rec *QueryRecord) error {
	if rec == nil {
		return pgerr.New(pgerr.CodeStoreInvalidInput, "query record is nil")
	}
	if rec.Query == "" {
		return pgerr.New(pgerr.CodeStoreInvalidInput, "query record has no query text")
	}
	if rec.Status != types.StatusOK && rec.Status != types.StatusError {
		return pgerr.Errorf(pgerr.CodeStoreInvalidInput, "query record has invalid status %q", rec.Status)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.Source == "" {
		rec.Source = types.QuerySourceAPI
	}
	return nil
}
