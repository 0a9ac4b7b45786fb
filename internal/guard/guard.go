// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package guard validates model-generated Cypher before it reaches the
// database. Checks are lexical, not a parse: the guard rejects write and
// administrative operations, requires a single read statement with a
// RETURN, checks relationship types against the live schema, catches
// properties the model tends to invent, and bounds result size.
package guard

import (
	"context"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/metrics"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

const (
	DefaultMaxRows        = 1000
	DefaultMaxQueryLength = 20000

	msgMultipleStatements = "Multiple statements or semicolons are not allowed."
	msgReturnRequired     = "Cypher must include a RETURN clause."
	msgQueryTooLong       = "Query too long."
	msgNoResults          = "No results (empty). Check that your query matched data."
)

// DefaultAllowedLabels are the node labels of the statistics graph.
var DefaultAllowedLabels = []string{"Player", "Team", "Match"}

// Outcome is the result of validating a query. A rejected outcome names
// the rule and carries the caller-facing reason; a passed outcome carries
// the query as it will be executed.
type Outcome struct {
	Passed bool   `json:"passed"`
	Rule   string `json:"rule,omitempty"`
	Reason string `json:"reason,omitempty"`
	Query  string `json:"query,omitempty"`
}

func pass(query string) Outcome {
	return Outcome{Passed: true, Query: query}
}

func reject(rule, reason string) Outcome {
	return Outcome{Rule: rule, Reason: reason}
}

// SchemaSource supplies the current schema snapshot.
type SchemaSource interface {
	Snapshot(ctx context.Context, force bool) *graph.Snapshot
}

// Runner executes a validated query.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Event describes one completed Execute call.
type Event struct {
	Source   types.QuerySource
	Query    string
	Executed string
	Rule     string
	Envelope types.Envelope
	Duration time.Duration
}

// Observer is notified after every Execute call. Observers run
// synchronously, in registration order, before Execute returns, so a slow
// observer delays the caller.
type Observer func(ctx context.Context, ev Event)

type Config struct {
	MaxRows          int
	MaxQueryLength   int
	AllowedLabels    []string
	ExecutionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRows <= 0 {
		c.MaxRows = DefaultMaxRows
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = DefaultMaxQueryLength
	}
	if len(c.AllowedLabels) == 0 {
		c.AllowedLabels = DefaultAllowedLabels
	}
	return c
}

// Guard is the single entry point for running untrusted queries.
type Guard struct {
	schema    SchemaSource
	runner    Runner
	cfg       Config
	metrics   *metrics.Metrics
	observers []Observer
}

type Option func(*Guard)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// WithObserver registers fn to receive an Event after each execution.
func WithObserver(fn Observer) Option {
	return func(g *Guard) {
		if fn != nil {
			g.observers = append(g.observers, fn)
		}
	}
}

func New(schema SchemaSource, runner Runner, cfg Config, opts ...Option) *Guard {
	g := &Guard{
		schema: schema,
		runner: runner,
		cfg:    cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxRows returns the bound injected when the caller passes none.
func (g *Guard) MaxRows() int {
	return g.cfg.MaxRows
}

// Validate runs every rule against query without executing it. On success
// the outcome carries the query with its bound injected. maxRows <= 0 uses
// the configured default.
func (g *Guard) Validate(ctx context.Context, query string, maxRows int) Outcome {
	if maxRows <= 0 {
		maxRows = g.cfg.MaxRows
	}

	if p, found := ContainsDisallowed(query); found {
		return reject(RuleDisallowedOperation, "Disallowed keyword or operation detected: "+p.Source)
	}

	if HasMultipleStatements(query) {
		return reject(RuleSingleStatement, msgMultipleStatements)
	}

	if !HasReturn(query) {
		return reject(RuleReturnRequired, msgReturnRequired)
	}

	if out := g.checkEntities(ctx, query); !out.Passed {
		return out
	}

	for _, rule := range PropertyRules {
		if rule.Pattern.MatchString(query) {
			return reject(rule.Name, rule.Message)
		}
	}

	rewritten := AddLimitIfMissing(query, maxRows)

	if utf8.RuneCountInString(rewritten) > g.cfg.MaxQueryLength {
		return reject(RuleQueryTooLong, msgQueryTooLong)
	}

	return pass(rewritten)
}

// checkEntities observes label tokens and rejects the first bare
// relationship type missing from the schema. Labels are never rejected.
func (g *Guard) checkEntities(ctx context.Context, query string) Outcome {
	snap := g.schema.Snapshot(ctx, false)

	for _, label := range LabelTokens(query) {
		if slices.Contains(g.cfg.AllowedLabels, label) || snap.HasRelationshipType(label) {
			continue
		}
		g.metrics.UnknownLabel()
		slog.Debug("query references label outside allowlist", "label", label)
	}

	for _, rel := range RelationshipTokens(query) {
		if !snap.HasRelationshipType(rel) {
			return reject(RuleUnknownRelationship, "Unknown relationship type '"+rel+"'")
		}
	}

	return pass(query)
}

// Execute validates query, runs it, and wraps the outcome in an Envelope.
// It never returns an error or panics on untrusted input: policy
// violations, database failures and empty results all become error
// envelopes.
func (g *Guard) Execute(ctx context.Context, query string, params map[string]any, maxRows int) types.Envelope {
	start := time.Now()
	env, executed, rule := g.execute(ctx, query, params, maxRows)

	ev := Event{
		Source:   types.QuerySourceFrom(ctx),
		Query:    query,
		Executed: executed,
		Rule:     rule,
		Envelope: env,
		Duration: time.Since(start),
	}
	for _, fn := range g.observers {
		fn(ctx, ev)
	}
	return env
}

func (g *Guard) execute(ctx context.Context, query string, params map[string]any, maxRows int) (types.Envelope, string, string) {
	out := g.Validate(ctx, query, maxRows)
	if !out.Passed {
		g.metrics.GuardRejected(out.Rule)
		g.metrics.GuardExecuted("rejected")
		slog.Warn("query rejected by guard", "rule", out.Rule, "reason", out.Reason)
		return types.Fail(out.Reason), "", out.Rule
	}

	if g.cfg.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.ExecutionTimeout)
		defer cancel()
	}

	rows, err := g.runner.Run(ctx, out.Query, params)
	if err != nil {
		g.metrics.GuardExecuted("execution_error")
		slog.Warn("guarded query failed", "error", err)
		return types.Fail("Database execution error: " + pgerr.Cause(err).Error()), out.Query, ""
	}

	if len(rows) == 0 {
		g.metrics.GuardExecuted("empty")
		return types.Fail(msgNoResults), out.Query, ""
	}

	g.metrics.GuardExecuted("ok")
	return types.OK(rows), out.Query, ""
}
