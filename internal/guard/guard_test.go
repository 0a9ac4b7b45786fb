// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package guard_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/graph/graphtest"
	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/metrics"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

type harness struct {
	db    *graphtest.Database
	cache *graph.SchemaCache
	guard *guard.Guard
}

func newHarness(t *testing.T, cfg guard.Config, opts ...guard.Option) *harness {
	t.Helper()

	db := graphtest.Football()
	db.Rows = []map[string]any{{"name": "Cole Palmer", "goals": int64(22)}}
	cache := graph.NewSchemaCache(db)
	m := metrics.New()
	opts = append([]guard.Option{guard.WithMetrics(m)}, opts...)

	return &harness{
		db:    db,
		cache: cache,
		guard: guard.New(cache, graph.NewExecutor(db, m), cfg, opts...),
	}
}

func (h *harness) executed(t *testing.T) string {
	t.Helper()
	calls := h.db.Queries()
	require.NotEmpty(t, calls, "expected the database to be queried")
	return calls[len(calls)-1].Cypher
}

func TestExecute_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{
			name:    "delete",
			query:   "MATCH (n) DETACH DELETE n RETURN n",
			message: `Disallowed keyword or operation detected: \bDELETE\b`,
		},
		{
			name:    "lowercase set",
			query:   "match (p:Player) set p.goals = 99 return p",
			message: `Disallowed keyword or operation detected: \bSET\b`,
		},
		{
			name:    "create before merge in pattern order",
			query:   "MERGE (t:Team {name: 'X'}) CREATE (p:Player) RETURN p",
			message: `Disallowed keyword or operation detected: \bCREATE\b`,
		},
		{
			name:    "remove",
			query:   "MATCH (p:Player) REMOVE p.position RETURN p",
			message: `Disallowed keyword or operation detected: \bREMOVE\b`,
		},
		{
			name:    "drop",
			query:   "DROP INDEX player_name RETURN 1",
			message: `Disallowed keyword or operation detected: \bDROP\b`,
		},
		{
			name:    "call dbms",
			query:   "CALL dbms.components() YIELD name RETURN name",
			message: `Disallowed keyword or operation detected: \bCALL\s+dbms\b`,
		},
		{
			name:    "call apoc across newline",
			query:   "CALL\n  apoc.meta.schema() YIELD value RETURN value",
			message: `Disallowed keyword or operation detected: \bCALL\s+apoc\b`,
		},
		{
			name:    "load csv",
			query:   "LOAD CSV FROM 'file:///x.csv' AS row RETURN row",
			message: `Disallowed keyword or operation detected: \bLOAD\b`,
		},
		{
			name:    "statement separator is caught by the keyword scan",
			query:   "MATCH (p:Player) RETURN p; MATCH (t:Team) RETURN t",
			message: "Disallowed keyword or operation detected: ;",
		},
		{
			name:    "keyword inside a string literal",
			query:   "MATCH (p:Player) WHERE p.name = 'Set' RETURN p",
			message: `Disallowed keyword or operation detected: \bSET\b`,
		},
		{
			name:    "full-width keyword",
			query:   "MATCH (n) ＤＥＬＥＴＥ n RETURN n",
			message: `Disallowed keyword or operation detected: \bDELETE\b`,
		},
		{
			name:    "zero-width split keyword",
			query:   "MATCH (n) DEL\u200bETE n RETURN n",
			message: `Disallowed keyword or operation detected: \bDELETE\b`,
		},
		{
			name:    "missing return",
			query:   "MATCH (p:Player)-[:PLAYS_FOR]->(t:Team)",
			message: "Cypher must include a RETURN clause.",
		},
		{
			name:    "unknown relationship",
			query:   "MATCH (p:Player)-[:SCORED_FOR]->(t:Team) RETURN p.name",
			message: "Unknown relationship type 'SCORED_FOR'",
		},
		{
			name:    "first unknown relationship is reported",
			query:   "MATCH (p:Player)-[:COACHES]->(t:Team)<-[:OWNS]-(x) RETURN p",
			message: "Unknown relationship type 'COACHES'",
		},
		{
			name:    "hallucinated goal properties",
			query:   "MATCH (m:Match) RETURN m.home_team_goals",
			message: "Query uses hallucinated properties (home_team_goals/away_team_goals). Use split(m.score, '-') instead.",
		},
		{
			name:    "season property",
			query:   "MATCH (m:Match) WHERE m.season = '2023-24' RETURN m",
			message: "Query references 'season' property which does not exist.",
		},
		{
			name:    "team properties any case",
			query:   "MATCH (m:Match) RETURN m.HOMETEAM",
			message: "Query references non-existent properties (m.homeTeam / m.awayTeam). Use relationships -[:HOME_TEAM]-> instead.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, guard.Config{})

			env := h.guard.Execute(context.Background(), tt.query, nil, 0)

			assert.Equal(t, types.StatusError, env.Status)
			assert.Equal(t, tt.message, env.Message)
			assert.Empty(t, h.db.Queries(), "rejected queries never reach the database")
		})
	}
}

func TestExecute_Success(t *testing.T) {
	h := newHarness(t, guard.Config{})

	env := h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.name AS name, p.goals AS goals", nil, 0)

	require.Equal(t, types.StatusOK, env.Status, env.Message)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "Cole Palmer", env.Data[0]["name"])
	assert.Empty(t, env.Message)
}

func TestExecute_Permissive(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"keyword as part of a word", "MATCH (p:Player) WHERE p.name = 'Settle' RETURN p.name"},
		{"unknown label is only observed", "MATCH (c:Coach) RETURN c.name"},
		{"variable-bound relationship is not checked", "MATCH (p:Player)-[r:SCORED_FOR]->(t:Team) RETURN p.name"},
		{"known relationship", "MATCH (m:Match)-[:HOME_TEAM]->(t:Team) RETURN t.name, m.score"},
		{"score split", "MATCH (m:Match) RETURN toInteger(split(m.score, '-')[0]) AS home"},
		{"property containing season as a prefix", "MATCH (m:Match) RETURN m.seasonal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, guard.Config{})
			env := h.guard.Execute(context.Background(), tt.query, nil, 0)
			assert.Equal(t, types.StatusOK, env.Status, env.Message)
		})
	}
}

func TestExecute_InjectsDefaultLimit(t *testing.T) {
	h := newHarness(t, guard.Config{})

	env := h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.name  \n\t", nil, 0)
	require.True(t, env.IsOK(), env.Message)

	assert.Equal(t, "MATCH (p:Player) RETURN p.name\nLIMIT 1000", h.executed(t))
}

func TestExecute_InjectsCallerLimit(t *testing.T) {
	h := newHarness(t, guard.Config{})

	h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.name", nil, 10)
	assert.Equal(t, "MATCH (p:Player) RETURN p.name\nLIMIT 10", h.executed(t))
}

func TestExecute_ConfiguredDefaultLimit(t *testing.T) {
	h := newHarness(t, guard.Config{MaxRows: 50})

	h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.name", nil, -1)
	assert.Equal(t, "MATCH (p:Player) RETURN p.name\nLIMIT 50", h.executed(t))
	assert.Equal(t, 50, h.guard.MaxRows())
}

func TestExecute_ExistingLimitIsHonored(t *testing.T) {
	for _, q := range []string{
		"MATCH (p:Player) RETURN p.name LIMIT 5000",
		"MATCH (p:Player) RETURN p.name limit 5",
		"MATCH (p:Player) RETURN p.name LIMIT\n20",
	} {
		h := newHarness(t, guard.Config{})
		env := h.guard.Execute(context.Background(), q, nil, 0)
		require.True(t, env.IsOK(), env.Message)
		assert.Equal(t, q, h.executed(t))
	}
}

func TestExecute_ParameterizedLimitStillGetsBound(t *testing.T) {
	h := newHarness(t, guard.Config{})

	h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p LIMIT $n", map[string]any{"n": 3}, 0)
	assert.Equal(t, "MATCH (p:Player) RETURN p LIMIT $n\nLIMIT 1000", h.executed(t))
}

func TestExecute_PassesParams(t *testing.T) {
	h := newHarness(t, guard.Config{})

	h.guard.Execute(context.Background(), "MATCH (p:Player {name: $name}) RETURN p.goals", map[string]any{"name": "Saka"}, 0)

	calls := h.db.Queries()
	require.Len(t, calls, 1)
	assert.Equal(t, "Saka", calls[0].Params["name"])
}

func TestExecute_SizeBoundCountsInjectedLimit(t *testing.T) {
	prefix := "MATCH (p:Player) WHERE p.name <> '"
	suffix := "' RETURN p.name"
	filler := guard.DefaultMaxQueryLength - len(prefix) - len(suffix) - 5
	q := prefix + strings.Repeat("x", filler) + suffix
	require.LessOrEqual(t, len(q), guard.DefaultMaxQueryLength)

	h := newHarness(t, guard.Config{})
	env := h.guard.Execute(context.Background(), q, nil, 0)
	assert.Equal(t, "Query too long.", env.Message)

	env = h.guard.Execute(context.Background(), q[:len(q)-len(suffix)]+"' RETURN p LIMIT 1", nil, 0)
	assert.True(t, env.IsOK(), env.Message)
}

func TestExecute_SizeBoundCountsCharacters(t *testing.T) {
	// 15k two-byte characters is 30k bytes but well under the character cap.
	q := "MATCH (p:Player) WHERE p.name <> '" + strings.Repeat("é", 15000) + "' RETURN p.name"

	h := newHarness(t, guard.Config{})
	env := h.guard.Execute(context.Background(), q, nil, 0)
	assert.True(t, env.IsOK(), env.Message)
}

func TestExecute_CustomSizeBound(t *testing.T) {
	h := newHarness(t, guard.Config{MaxQueryLength: 40})
	env := h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.name", nil, 0)
	assert.Equal(t, "Query too long.", env.Message)
}

func TestExecute_DatabaseError(t *testing.T) {
	h := newHarness(t, guard.Config{})
	h.db.QueryErr = stderrors.New("Neo.ClientError.Statement.SyntaxError: Invalid input")

	env := h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.nme", nil, 0)

	assert.Equal(t, types.StatusError, env.Status)
	assert.Equal(t, "Database execution error: Neo.ClientError.Statement.SyntaxError: Invalid input", env.Message)
}

func TestExecute_DatabaseErrorKeepsWrappedText(t *testing.T) {
	h := newHarness(t, guard.Config{})
	h.db.QueryErr = fmt.Errorf("ConnectivityError: Unable to retrieve routing table from localhost:7687: %w",
		stderrors.New("connection refused"))

	env := h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p.name", nil, 0)

	assert.Equal(t, "Database execution error: ConnectivityError: Unable to retrieve routing table "+
		"from localhost:7687: connection refused", env.Message)
}

func TestExecute_Timeout(t *testing.T) {
	h := newHarness(t, guard.Config{ExecutionTimeout: 10 * time.Millisecond})
	h.db.QueryFunc = func(ctx context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	env := h.guard.Execute(context.Background(), "MATCH (p:Player) RETURN p", nil, 0)
	assert.Equal(t, "Database execution error: context deadline exceeded", env.Message)
}

func TestExecute_EmptyResult(t *testing.T) {
	h := newHarness(t, guard.Config{})
	h.db.Rows = nil

	env := h.guard.Execute(context.Background(), "MATCH (p:Player {name: 'Nobody'}) RETURN p", nil, 0)

	assert.Equal(t, types.StatusError, env.Status)
	assert.Equal(t, "No results (empty). Check that your query matched data.", env.Message)
}

func TestExecute_SchemaConsultedOnlyPastTextualRules(t *testing.T) {
	h := newHarness(t, guard.Config{})

	h.guard.Execute(context.Background(), "MATCH (n) DELETE n RETURN n", nil, 0)
	h.guard.Execute(context.Background(), "MATCH (n:Player)", nil, 0)
	assert.Equal(t, 0, h.db.Refreshes())

	h.guard.Execute(context.Background(), "MATCH (n:Player) RETURN n.name", nil, 0)
	assert.Equal(t, 1, h.db.Refreshes(), "first read populates the cache even without relationship tokens")
}

func TestExecute_RelationshipAddedAfterForcedRefresh(t *testing.T) {
	h := newHarness(t, guard.Config{})
	q := "MATCH (p:Player)-[:CAPTAINS]->(t:Team) RETURN p.name"

	env := h.guard.Execute(context.Background(), q, nil, 0)
	assert.Equal(t, "Unknown relationship type 'CAPTAINS'", env.Message)

	h.db.SetRelationshipTypes("PLAYS_FOR", "CAPTAINS")
	h.cache.Snapshot(context.Background(), true)

	env = h.guard.Execute(context.Background(), q, nil, 0)
	assert.True(t, env.IsOK(), env.Message)
}

func TestExecute_ObserverReceivesEvent(t *testing.T) {
	var (
		mu     sync.Mutex
		events []guard.Event
	)
	h := newHarness(t, guard.Config{}, guard.WithObserver(func(_ context.Context, ev guard.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}))

	ctx := types.WithQuerySource(context.Background(), types.QuerySourceCLI)
	h.guard.Execute(ctx, "MATCH (t:Team) RETURN t.name", nil, 5)
	h.guard.Execute(ctx, "MATCH (t:Team) RETURN t.name;", nil, 5)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)

	assert.Equal(t, types.QuerySourceCLI, events[0].Source)
	assert.Equal(t, "MATCH (t:Team) RETURN t.name\nLIMIT 5", events[0].Executed)
	assert.True(t, events[0].Envelope.IsOK())

	assert.Equal(t, guard.RuleDisallowedOperation, events[1].Rule)
	assert.Empty(t, events[1].Executed)
}

func TestValidate_ReturnsRewrittenQuery(t *testing.T) {
	h := newHarness(t, guard.Config{})

	out := h.guard.Validate(context.Background(), "MATCH (t:Team) RETURN t.name", 0)
	assert.True(t, out.Passed)
	assert.Equal(t, "MATCH (t:Team) RETURN t.name\nLIMIT 1000", out.Query)
	assert.Empty(t, h.db.Queries(), "validation never executes")

	out = h.guard.Validate(context.Background(), "MATCH (t:Team)", 0)
	assert.False(t, out.Passed)
	assert.Equal(t, guard.RuleReturnRequired, out.Rule)
}

func TestExecute_ConcurrentCallers(t *testing.T) {
	h := newHarness(t, guard.Config{})

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env := h.guard.Execute(context.Background(), "MATCH (p:Player)-[:PLAYS_FOR]->(t:Team) RETURN p.name", nil, 0)
			assert.True(t, env.IsOK(), env.Message)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.db.Refreshes())
	assert.Len(t, h.db.Queries(), 32)
}
