// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package analyst answers football questions in natural language. It asks
// a language model for a Cypher query, runs it through the guard, retries
// once with the database error when it fails, and turns the rows into
// prose. Model failures degrade to fixed replies; they never surface as
// errors to the caller.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

const (
	// DefaultMaxRows bounds chat queries. Summaries only ever read the
	// first 50 rows, but list answers use everything returned.
	DefaultMaxRows = 2000

	historyTurns     = 6
	opinionRows      = 30
	summaryRows      = 50
	contextRows      = 10
	listPreviewItems = 50

	msgNoQuery          = "I couldn't generate a valid query for that request."
	msgModelUnavailable = "The language model is unavailable right now. Please try again shortly."
	msgNoResults        = "I couldn't find any results. This usually means:\n1. The player/team name is spelled differently in the database.\n2. The specific match didn't happen in the 23/24 PL season."
)

// Completer produces a full model completion for a "provider/model" ref.
type Completer interface {
	Complete(ctx context.Context, ref string, req provider.ChatRequest) (provider.Completion, error)
}

// Executor runs a query through the guard.
type Executor interface {
	Execute(ctx context.Context, query string, params map[string]any, maxRows int) types.Envelope
}

type Config struct {
	Models    Completer
	Guard     Executor
	Knowledge *Knowledge
	// Schema, when set, is summarised into the query prompt.
	Schema guard.SchemaSource
	// Model is the ref used for query generation; empty uses the default.
	Model string
	// SummaryModel is the ref used for prose; empty falls back to Model.
	SummaryModel string
	MaxRows      int
}

// Analyst orchestrates one question end to end.
type Analyst struct {
	models       Completer
	guard        Executor
	knowledge    *Knowledge
	schema       guard.SchemaSource
	model        string
	summaryModel string
	maxRows      int
}

func New(cfg Config) *Analyst {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = cfg.Model
	}
	return &Analyst{
		models:       cfg.Models,
		guard:        cfg.Guard,
		knowledge:    cfg.Knowledge,
		schema:       cfg.Schema,
		model:        cfg.Model,
		summaryModel: summaryModel,
		maxRows:      maxRows,
	}
}

// Request is one chat turn with the prior conversation.
type Request struct {
	Message string             `json:"message" minLength:"1" doc:"The user's question"`
	History []provider.Message `json:"history,omitempty" doc:"Earlier turns, oldest first"`
}

// Reply is the answer to a Request. Raw carries the rows the answer was
// based on, Query the statement that produced them.
type Reply struct {
	Response string           `json:"response" doc:"Answer text"`
	Raw      []map[string]any `json:"raw,omitempty" doc:"Rows the answer is based on"`
	Query    string           `json:"query,omitempty" doc:"Cypher that produced the rows"`
	Error    string           `json:"error,omitempty" doc:"Internal failure detail"`
}

// Chat answers req. The only error is an empty question.
func (a *Analyst) Chat(ctx context.Context, req Request) (Reply, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return Reply{}, pgerr.New(pgerr.CodeAnalystRequestInvalid, "message must not be empty")
	}

	if IsTactical(question) {
		slog.Debug("tactical question, skipping query generation")
		return Reply{Response: a.tactical(ctx, question, nil, req.History)}, nil
	}

	p, text, err := a.propose(ctx, question, req.History)
	if err != nil {
		slog.Error("query generation failed", "error", err)
		return Reply{Response: msgModelUnavailable, Error: err.Error()}, nil
	}
	if p == nil {
		slog.Warn("unparseable model output", "code", pgerr.CodeAnalystResponseInvalid, "output", preview(text, 200))
		return Reply{Response: "Failed to parse model output. The AI sent: " + preview(text, 50) + "..."}, nil
	}
	if p.Clarify != "" {
		return Reply{Response: p.Clarify}, nil
	}

	cypher := p.Statement()
	if cypher == "" {
		return Reply{Response: msgNoQuery}, nil
	}

	env := a.guard.Execute(ctx, cypher, p.Params, a.maxRows)
	if !env.IsOK() {
		slog.Info("query failed, asking model for a correction", "reason", env.Message)
		if fixed := a.correct(ctx, cypher, env.Message, req.History); fixed != "" {
			cypher = fixed
			env = a.guard.Execute(ctx, cypher, p.Params, a.maxRows)
		}
	}
	if !env.IsOK() {
		return Reply{Response: "I encountered a database error: " + env.Message, Query: cypher}, nil
	}

	answer := a.summarize(ctx, env.Data, question, req.History, p.AnalysisMode == ModeOpinion)
	return Reply{Response: answer, Raw: env.Data, Query: cypher}, nil
}

// propose asks the model for a query. A nil proposal with a nil error
// means the output could not be parsed; text is returned for reporting.
func (a *Analyst) propose(ctx context.Context, question string, history []provider.Message) (*Proposal, string, error) {
	msgs := recent(history, historyTurns)
	msgs = append(msgs, provider.Message{Role: provider.MessageRoleUser, Content: question})

	system := cypherSystemPrompt
	if a.schema != nil {
		system += schemaSection(a.schema.Snapshot(ctx, false))
	}

	c, err := a.models.Complete(ctx, a.model, provider.ChatRequest{
		Messages:     msgs,
		SystemPrompt: system,
		Options:      provider.ChatOptions{JSON: true},
	})
	if err != nil {
		return nil, "", err
	}

	text := strings.TrimSpace(c.Text)
	p, ok := ParseProposal(text)
	if !ok {
		return nil, text, nil
	}
	return &p, text, nil
}

// correct asks once for a replacement query. It returns "" when the model
// fails or offers nothing new to run.
func (a *Analyst) correct(ctx context.Context, cypher, message string, history []provider.Message) string {
	p, _, err := a.propose(ctx, retryPrompt(cypher, message), history)
	if err != nil {
		slog.Warn("correction request failed", "error", err)
		return ""
	}
	if p == nil {
		return ""
	}
	return p.Statement()
}

func (a *Analyst) summarize(ctx context.Context, rows []map[string]any, question string, history []provider.Message, opinion bool) string {
	if len(rows) == 0 {
		return msgNoResults
	}

	if wantsList(question) && len(rows[0]) == 1 {
		return bulletList(rows)
	}

	if opinion {
		return a.prose(ctx, opinionSystemPrompt, opinionPrompt(question, head(rows, opinionRows), history), "Failed to generate analysis: ")
	}

	rows = head(rows, summaryRows)

	if wantsExplanation(question) {
		short := head(rows, contextRows)
		knowledge := a.knowledge.Context(a.knowledge.Extract(question, short), false)
		return a.prose(ctx, tacticalSystemPrompt, explainPrompt(question, short, knowledge, history), "Failed to explain: ")
	}

	if IsTactical(question) {
		return a.tactical(ctx, question, rows, history)
	}

	c, err := a.models.Complete(ctx, a.summaryModel, provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.MessageRoleUser, Content: summaryPrompt(question, rows)}},
	})
	if err != nil {
		slog.Warn("summary failed", "error", err)
		sample, _ := json.Marshal(head(rows, 3))
		return "Data found: " + string(sample) + "..."
	}
	return strings.TrimSpace(c.Text)
}

func (a *Analyst) tactical(ctx context.Context, question string, rows []map[string]any, history []provider.Message) string {
	rows = head(rows, contextRows)
	knowledge := a.knowledge.Context(a.knowledge.Extract(question, rows), true)
	return a.prose(ctx, tacticalSystemPrompt, tacticalPrompt(question, rows, knowledge, history), "Failed to generate analysis: ")
}

// prose runs a single-turn completion on the summary model. Failures
// become failPrefix plus the error text.
func (a *Analyst) prose(ctx context.Context, system, prompt, failPrefix string) string {
	c, err := a.models.Complete(ctx, a.summaryModel, provider.ChatRequest{
		Messages:     []provider.Message{{Role: provider.MessageRoleUser, Content: prompt}},
		SystemPrompt: system,
	})
	if err != nil {
		slog.Warn("analysis generation failed", "error", err)
		return failPrefix + err.Error()
	}
	return strings.TrimSpace(c.Text)
}

// recent keeps the last n turns. Anything that is not an assistant turn
// is sent as a user turn.
func recent(history []provider.Message, n int) []provider.Message {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]provider.Message, 0, len(history)+1)
	for _, msg := range history {
		role := provider.MessageRoleUser
		if msg.Role == provider.MessageRoleAssistant {
			role = provider.MessageRoleAssistant
		}
		out = append(out, provider.Message{Role: role, Content: msg.Content})
	}
	return out
}

func bulletList(rows []map[string]any) string {
	var key string
	for k := range rows[0] {
		key = k
	}

	items := make([]string, 0, len(rows))
	for _, row := range rows {
		items = append(items, "• "+formatValue(row[key]))
	}
	if len(items) <= listPreviewItems {
		return strings.Join(items, "\n")
	}
	return fmt.Sprintf("Found %d results. Here are the first %d:\n\n%s\n\n(Use filters to narrow down the list)",
		len(items), listPreviewItems, strings.Join(items[:listPreviewItems], "\n"))
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func head(rows []map[string]any, n int) []map[string]any {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
