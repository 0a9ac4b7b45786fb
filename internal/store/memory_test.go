// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/store"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

func record(query string, status types.Status, source types.QuerySource, at time.Time) *store.QueryRecord {
	return &store.QueryRecord{Query: query, Status: status, Source: source, Timestamp: at}
}

func TestMemoryLog_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	log := store.NewMemoryLog(0)

	rec := &store.QueryRecord{Query: "MATCH (t:Team) RETURN t.name", Status: types.StatusOK, Rows: 20}
	require.NoError(t, log.Append(ctx, rec))
	require.NotEmpty(t, rec.ID, "Append assigns an ID")
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, types.QuerySourceAPI, rec.Source)

	got, err := log.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Rows)

	_, err = log.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, pgerr.IsNotFound(err))
}

func TestMemoryLog_AppendValidates(t *testing.T) {
	log := store.NewMemoryLog(0)

	tests := []struct {
		name string
		rec  *store.QueryRecord
	}{
		{name: "nil", rec: nil},
		{name: "no query", rec: &store.QueryRecord{Status: types.StatusOK}},
		{name: "bad status", rec: &store.QueryRecord{Query: "RETURN 1", Status: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := log.Append(context.Background(), tt.rec)
			require.Error(t, err)
			assert.True(t, pgerr.IsInvalidInput(err))
		})
	}
}

func TestMemoryLog_ListFiltersNewestFirst(t *testing.T) {
	ctx := context.Background()
	log := store.NewMemoryLog(0)
	base := time.Date(2024, 5, 19, 15, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, record("q1", types.StatusOK, types.QuerySourceChat, base)))
	require.NoError(t, log.Append(ctx, record("q2", types.StatusError, types.QuerySourceAPI, base.Add(time.Minute))))
	require.NoError(t, log.Append(ctx, record("q3", types.StatusOK, types.QuerySourceCLI, base.Add(2*time.Minute))))
	require.NoError(t, log.Append(ctx, record("q4", types.StatusOK, types.QuerySourceChat, base.Add(3*time.Minute))))

	queries := func(recs []*store.QueryRecord) []string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.Query)
		}
		return out
	}

	tests := []struct {
		name   string
		filter store.QueryFilter
		want   []string
	}{
		{name: "all", filter: store.QueryFilter{}, want: []string{"q4", "q3", "q2", "q1"}},
		{name: "status", filter: store.QueryFilter{Status: types.StatusOK}, want: []string{"q4", "q3", "q1"}},
		{name: "source", filter: store.QueryFilter{Source: types.QuerySourceChat}, want: []string{"q4", "q1"}},
		{name: "since", filter: store.QueryFilter{Since: base.Add(2 * time.Minute)}, want: []string{"q4", "q3"}},
		{name: "limit and offset", filter: store.QueryFilter{Limit: 2, Offset: 1}, want: []string{"q3", "q2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, queries(got))
		})
	}

	_, err := log.List(ctx, store.QueryFilter{Source: "email"})
	require.Error(t, err)
	assert.True(t, pgerr.IsInvalidInput(err))
}

func TestMemoryLog_CapacityDropsOldest(t *testing.T) {
	ctx := context.Background()
	log := store.NewMemoryLog(3)
	for i := range 5 {
		require.NoError(t, log.Append(ctx, &store.QueryRecord{Query: fmt.Sprintf("q%d", i), Status: types.StatusOK}))
	}

	got, err := log.List(ctx, store.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "q4", got[0].Query)
	assert.Equal(t, "q2", got[2].Query)
}

func TestMemoryLog_Stats(t *testing.T) {
	ctx := context.Background()
	log := store.NewMemoryLog(0)
	last := time.Date(2024, 5, 19, 16, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, record("ok", types.StatusOK, types.QuerySourceAPI, last.Add(-time.Hour))))
	require.NoError(t, log.Append(ctx, &store.QueryRecord{Query: "CREATE (n)", Status: types.StatusError, Rule: "disallowed_operation", Timestamp: last}))
	require.NoError(t, log.Append(ctx, record("bad", types.StatusError, types.QuerySourceAPI, last.Add(-time.Minute))))

	s, err := log.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Total: 3, OK: 1, Errors: 2, Rejected: 1, Last: last}, s)
}

func TestOpen(t *testing.T) {
	log, err := store.Open(store.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, log.Close())

	_, err = store.Open(store.StorageConfig{Backend: "postgres"})
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeStoreBackendUnsupported))
}
