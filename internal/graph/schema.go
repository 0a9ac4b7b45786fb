// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package graph

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lpararaa/pitchgraph/internal/metrics"
)

const (
	// DefaultSchemaTTL is how long a snapshot is served before a read
	// triggers a refresh.
	DefaultSchemaTTL = 300 * time.Second

	// refreshTimeout bounds one refresh independently of the caller that
	// happened to start it, since other readers may be waiting on it.
	refreshTimeout = 15 * time.Second
)

// Snapshot is an immutable view of the graph's labels, relationship types
// and property keys. Published snapshots are never mutated.
type Snapshot struct {
	Labels            []string  `json:"labels"`
	RelationshipTypes []string  `json:"relationship_types"`
	PropertyKeys      []string  `json:"property_keys"`
	RefreshedAt       time.Time `json:"refreshed_at"`

	relTypes map[string]struct{}
}

func newSnapshot(labels, relTypes, propertyKeys []string, at time.Time) *Snapshot {
	s := &Snapshot{
		Labels:            sortedUnique(labels),
		RelationshipTypes: sortedUnique(relTypes),
		PropertyKeys:      sortedUnique(propertyKeys),
		RefreshedAt:       at,
		relTypes:          make(map[string]struct{}, len(relTypes)),
	}
	for _, r := range s.RelationshipTypes {
		s.relTypes[r] = struct{}{}
	}
	return s
}

// HasRelationshipType reports whether name is a known relationship type.
// Matching is exact and case-sensitive.
func (s *Snapshot) HasRelationshipType(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.relTypes[name]
	return ok
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SchemaCache serves schema snapshots, refreshing them from the database
// when absent, stale or explicitly requested. Concurrent refreshes are
// collapsed into one.
type SchemaCache struct {
	db      Database
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// SchemaOption configures a SchemaCache.
type SchemaOption func(*SchemaCache)

// WithTTL overrides DefaultSchemaTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) SchemaOption {
	return func(c *SchemaCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source used for staleness checks.
func WithClock(now func() time.Time) SchemaOption {
	return func(c *SchemaCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithSchemaMetrics(m *metrics.Metrics) SchemaOption {
	return func(c *SchemaCache) {
		c.metrics = m
	}
}

func NewSchemaCache(db Database, opts ...SchemaOption) *SchemaCache {
	c := &SchemaCache{
		db:  db,
		ttl: DefaultSchemaTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured staleness window.
func (c *SchemaCache) TTL() time.Duration {
	return c.ttl
}

// Snapshot returns the current schema, refreshing first when there is no
// snapshot yet, when force is set, or when the snapshot is at least TTL
// old. It never fails: categories whose introspection call fails are
// empty in the returned snapshot.
func (c *SchemaCache) Snapshot(ctx context.Context, force bool) *Snapshot {
	if !force {
		if s := c.fresh(); s != nil {
			return s
		}
	}

	v, _, _ := c.group.Do("schema", func() (any, error) {
		// A refresh may have completed while this caller waited.
		if !force {
			if s := c.fresh(); s != nil {
				return s, nil
			}
		}
		return c.refresh(ctx), nil
	})
	return v.(*Snapshot)
}

// Cached returns the last published snapshot without refreshing. It is nil
// until the first refresh completes.
func (c *SchemaCache) Cached() *Snapshot {
	return c.current.Load()
}

func (c *SchemaCache) RelationshipTypes(ctx context.Context, force bool) []string {
	return c.Snapshot(ctx, force).RelationshipTypes
}

func (c *SchemaCache) Labels(ctx context.Context, force bool) []string {
	return c.Snapshot(ctx, force).Labels
}

func (c *SchemaCache) PropertyKeys(ctx context.Context, force bool) []string {
	return c.Snapshot(ctx, force).PropertyKeys
}

func (c *SchemaCache) fresh() *Snapshot {
	s := c.current.Load()
	if s == nil {
		return nil
	}
	if c.now().Sub(s.RefreshedAt) >= c.ttl {
		return nil
	}
	return s
}

func (c *SchemaCache) refresh(ctx context.Context) *Snapshot {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	partial := false
	fetch := func(category string, call func(context.Context) ([]string, error)) []string {
		values, err := call(ctx)
		if err != nil {
			partial = true
			c.metrics.IntrospectionFailed(category)
			slog.Warn("schema introspection failed", "category", category, "error", err)
			return nil
		}
		return values
	}

	labels := fetch("labels", c.db.Labels)
	relTypes := fetch("relationship_types", c.db.RelationshipTypes)
	propertyKeys := fetch("property_keys", c.db.PropertyKeys)

	s := newSnapshot(labels, relTypes, propertyKeys, c.now())
	c.current.Store(s)
	c.metrics.SchemaRefreshed(partial)

	slog.Debug("schema snapshot refreshed",
		"labels", len(s.Labels),
		"relationship_types", len(s.RelationshipTypes),
		"property_keys", len(s.PropertyKeys),
		"partial", partial,
	)
	return s
}
