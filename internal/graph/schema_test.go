// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package graph_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 19, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSchemaCache_FirstReadRefreshes(t *testing.T) {
	db := graphtest.Football()
	cache := graph.NewSchemaCache(db)

	assert.Nil(t, cache.Cached())

	rels := cache.RelationshipTypes(context.Background(), false)
	assert.Contains(t, rels, "PLAYS_FOR")
	assert.Equal(t, 1, db.Refreshes())
	require.NotNil(t, cache.Cached())
}

func TestSchemaCache_FreshSnapshotIsReused(t *testing.T) {
	db := graphtest.Football()
	clock := newFakeClock()
	cache := graph.NewSchemaCache(db, graph.WithClock(clock.Now))

	ctx := context.Background()
	first := cache.Snapshot(ctx, false)
	clock.Advance(299 * time.Second)
	second := cache.Snapshot(ctx, false)

	assert.Same(t, first, second)
	assert.Equal(t, 1, db.Refreshes())
}

func TestSchemaCache_StaleAtExactlyTTL(t *testing.T) {
	db := graphtest.Football()
	clock := newFakeClock()
	cache := graph.NewSchemaCache(db, graph.WithClock(clock.Now))

	ctx := context.Background()
	cache.Snapshot(ctx, false)
	clock.Advance(graph.DefaultSchemaTTL)
	cache.Snapshot(ctx, false)

	assert.Equal(t, 2, db.Refreshes())
}

func TestSchemaCache_ForceRefresh(t *testing.T) {
	db := graphtest.Football()
	clock := newFakeClock()
	cache := graph.NewSchemaCache(db, graph.WithClock(clock.Now))

	ctx := context.Background()
	cache.Snapshot(ctx, false)
	db.SetRelationshipTypes("PLAYS_FOR", "MANAGES")

	snap := cache.Snapshot(ctx, true)
	assert.True(t, snap.HasRelationshipType("MANAGES"))
	assert.False(t, snap.HasRelationshipType("HOME_TEAM"))
	assert.Equal(t, 2, db.Refreshes())
}

func TestSchemaCache_CustomTTL(t *testing.T) {
	db := graphtest.Football()
	clock := newFakeClock()
	cache := graph.NewSchemaCache(db, graph.WithClock(clock.Now), graph.WithTTL(time.Minute))

	ctx := context.Background()
	cache.Snapshot(ctx, false)
	clock.Advance(61 * time.Second)
	cache.Snapshot(ctx, false)

	assert.Equal(t, time.Minute, cache.TTL())
	assert.Equal(t, 2, db.Refreshes())
}

func TestSchemaCache_PartialFailureYieldsEmptyCategory(t *testing.T) {
	db := graphtest.Football()
	db.LabelsErr = stderrors.New("procedure not found")

	cache := graph.NewSchemaCache(db)
	snap := cache.Snapshot(context.Background(), false)

	assert.Empty(t, snap.Labels)
	assert.NotEmpty(t, snap.RelationshipTypes)
	assert.NotEmpty(t, snap.PropertyKeys)
}

func TestSchemaCache_AllFailuresStillPublish(t *testing.T) {
	db := &graphtest.Database{
		LabelsErr:       stderrors.New("down"),
		RelTypesErr:     stderrors.New("down"),
		PropertyKeysErr: stderrors.New("down"),
	}
	clock := newFakeClock()
	cache := graph.NewSchemaCache(db, graph.WithClock(clock.Now))

	snap := cache.Snapshot(context.Background(), false)
	require.NotNil(t, snap)
	assert.Empty(t, snap.RelationshipTypes)
	assert.Equal(t, clock.Now(), snap.RefreshedAt)

	// An empty snapshot is still fresh until the TTL elapses.
	cache.Snapshot(context.Background(), false)
	assert.Equal(t, 1, db.Refreshes())
}

func TestSchemaCache_DeduplicatesConcurrentRefresh(t *testing.T) {
	db := graphtest.Football()
	db.Gate = make(chan struct{})
	cache := graph.NewSchemaCache(db)

	const readers = 16
	var wg sync.WaitGroup
	results := make([]*graph.Snapshot, readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.Snapshot(context.Background(), false)
		}()
	}

	require.Eventually(t, func() bool { return db.Refreshes() == 1 }, time.Second, time.Millisecond)
	// Give the remaining readers a chance to queue behind the in-flight refresh.
	time.Sleep(20 * time.Millisecond)
	close(db.Gate)
	wg.Wait()

	assert.Equal(t, 1, db.Refreshes())
	for _, s := range results {
		require.NotNil(t, s)
		assert.True(t, s.HasRelationshipType("HOME_TEAM"))
	}
}

func TestSnapshot_SortsAndDeduplicates(t *testing.T) {
	db := &graphtest.Database{RelTypeList: []string{"SCORED_IN", "PLAYS_FOR", "SCORED_IN", ""}}
	snap := graph.NewSchemaCache(db).Snapshot(context.Background(), false)

	assert.Equal(t, []string{"PLAYS_FOR", "SCORED_IN"}, snap.RelationshipTypes)
	assert.False(t, snap.HasRelationshipType("plays_for"), "matching is case-sensitive")
}

func TestSnapshot_NilHasNothing(t *testing.T) {
	var s *graph.Snapshot
	assert.False(t, s.HasRelationshipType("PLAYS_FOR"))
}
