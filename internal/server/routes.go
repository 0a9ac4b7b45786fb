// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lpararaa/pitchgraph/internal/analyst"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/store"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/health"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

const pingTimeout = 3 * time.Second

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Dependency status",
		Tags:        []string{"system"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Ask a question about the season",
		Tags:        []string{"chat"},
	}, s.handleChat)

	// The bundled front end posts to /chat on the default listen address.
	huma.Register(s.api, huma.Operation{
		OperationID: "chat-root",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Ask a question about the season (front end path)",
		Tags:        []string{"chat"},
		Hidden:      true,
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "execute-query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query",
		Summary:     "Run a read-only Cypher query through the guard",
		Tags:        []string{"query"},
	}, s.handleExecuteQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "validate-query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query/validate",
		Summary:     "Check a Cypher query against the guard without running it",
		Tags:        []string{"query"},
	}, s.handleValidateQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-schema",
		Method:      http.MethodGet,
		Path:        "/api/v1/schema",
		Summary:     "Cached graph schema",
		Tags:        []string{"schema"},
	}, s.handleSchema)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-queries",
		Method:      http.MethodGet,
		Path:        "/api/v1/queries",
		Summary:     "Recent guarded executions, newest first",
		Tags:        []string{"query"},
	}, s.handleListQueries)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-query",
		Method:      http.MethodGet,
		Path:        "/api/v1/queries/{id}",
		Summary:     "One guarded execution",
		Tags:        []string{"query"},
	}, s.handleGetQuery)
}

// --- Request/Response types for huma ---

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok" doc:"Health status"`
	}
}

type chatInput struct {
	Body analyst.Request
}
type chatOutput struct {
	Body analyst.Reply
}

type queryInput struct {
	Source string `header:"X-Query-Source" doc:"Caller recorded in the query log: api (default) or cli"`
	Body   struct {
		Query   string         `json:"query" minLength:"1" doc:"Cypher statement"`
		Params  map[string]any `json:"params,omitempty" doc:"Query parameters"`
		MaxRows int            `json:"max_rows,omitempty" minimum:"0" maximum:"10000" doc:"Row bound injected when the query has no LIMIT"`
	}
}
type queryOutput struct {
	Body types.Envelope
}

type validateInput struct {
	Body struct {
		Query   string `json:"query" minLength:"1" doc:"Cypher statement"`
		MaxRows int    `json:"max_rows,omitempty" minimum:"0" maximum:"10000" doc:"Row bound injected when the query has no LIMIT"`
	}
}
type validateOutput struct {
	Body guard.Outcome
}

type schemaInput struct {
	Refresh bool `query:"refresh" doc:"Bypass the cache and re-read the schema"`
}

// SchemaBody is a schema snapshot plus its cache metadata.
type SchemaBody struct {
	Labels            []string  `json:"labels"`
	RelationshipTypes []string  `json:"relationship_types"`
	PropertyKeys      []string  `json:"property_keys"`
	RefreshedAt       time.Time `json:"refreshed_at"`
	TTLSeconds        int64     `json:"ttl_seconds" doc:"Seconds a snapshot is served before it is refreshed"`
}

type schemaOutput struct {
	Body SchemaBody
}

type listQueriesInput struct {
	Status string `query:"status" doc:"Only records with this status: ok or error"`
	Source string `query:"source" doc:"Only records from this caller: chat, api or cli"`
	Since  string `query:"since" doc:"Only records at or after this time (RFC 3339)"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" doc:"Page size, default 50"`
	Offset int    `query:"offset" minimum:"0" doc:"Records to skip"`
}
type listQueriesOutput struct {
	Body struct {
		Queries []*store.QueryRecord `json:"queries"`
	}
}

type getQueryInput struct {
	ID string `path:"id"`
}
type getQueryOutput struct {
	Body *store.QueryRecord
}

// StatusBody reports the service and each of its dependencies.
type StatusBody struct {
	Status         health.State              `json:"status" doc:"Overall state"`
	Version        string                    `json:"version"`
	Uptime         string                    `json:"uptime"`
	Components     []health.Component        `json:"components"`
	DefaultModel   string                    `json:"default_model,omitempty"`
	Providers      []provider.ProviderStatus `json:"providers,omitempty"`
	SchemaSnapshot *graph.Snapshot           `json:"schema,omitempty" doc:"Last cached snapshot, if any"`
	Queries        *store.Stats              `json:"queries,omitempty"`
}

type statusOutput struct {
	Body StatusBody
}

// --- Handlers ---

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	req := input.Body
	for i, m := range req.History {
		role, err := provider.ParseMessageRole(string(m.Role))
		if err != nil {
			return nil, huma.Error400BadRequest("history[" + strconv.Itoa(i) + "]: " + err.Error())
		}
		req.History[i].Role = role
	}

	release, err := s.chats.acquire(middleware.GetReqID(ctx))
	if err != nil {
		return nil, err
	}
	defer release()

	reply, err := s.services.Chat.Chat(types.WithQuerySource(ctx, types.QuerySourceChat), req)
	if err != nil {
		return nil, toHumaError(err, "answering question")
	}
	return &chatOutput{Body: reply}, nil
}

func (s *Server) handleExecuteQuery(ctx context.Context, input *queryInput) (*queryOutput, error) {
	source := types.QuerySourceAPI
	if input.Source != "" {
		parsed, err := types.ParseQuerySource(input.Source)
		if err != nil || parsed == types.QuerySourceChat {
			return nil, huma.Error400BadRequest("X-Query-Source must be api or cli")
		}
		source = parsed
	}
	ctx = types.WithQuerySource(ctx, source)

	env := s.services.Queries.Execute(ctx, input.Body.Query, input.Body.Params, input.Body.MaxRows)
	return &queryOutput{Body: env}, nil
}

func (s *Server) handleValidateQuery(ctx context.Context, input *validateInput) (*validateOutput, error) {
	out := s.services.Queries.Validate(ctx, input.Body.Query, input.Body.MaxRows)
	return &validateOutput{Body: out}, nil
}

func (s *Server) handleSchema(ctx context.Context, input *schemaInput) (*schemaOutput, error) {
	snap := s.services.Schema.Snapshot(ctx, input.Refresh)
	return &schemaOutput{Body: SchemaBody{
		Labels:            nonNil(snap.Labels),
		RelationshipTypes: nonNil(snap.RelationshipTypes),
		PropertyKeys:      nonNil(snap.PropertyKeys),
		RefreshedAt:       snap.RefreshedAt,
		TTLSeconds:        int64(s.services.Schema.TTL() / time.Second),
	}}, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s *Server) handleListQueries(ctx context.Context, input *listQueriesInput) (*listQueriesOutput, error) {
	if s.services.History == nil {
		return nil, huma.Error503ServiceUnavailable("query log not configured")
	}

	var since time.Time
	if input.Since != "" {
		t, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return nil, huma.Error400BadRequest("since must be an RFC 3339 timestamp")
		}
		since = t
	}

	filter, err := store.QueryFilter{
		Status: types.Status(input.Status),
		Source: types.QuerySource(input.Source),
		Since:  since,
		Limit:  input.Limit,
		Offset: input.Offset,
	}.Normalize()
	if err != nil {
		return nil, toHumaError(err, "listing queries")
	}

	recs, err := s.services.History.List(ctx, filter)
	if err != nil {
		return nil, toHumaError(err, "listing queries")
	}
	out := &listQueriesOutput{}
	out.Body.Queries = recs
	if out.Body.Queries == nil {
		out.Body.Queries = []*store.QueryRecord{}
	}
	return out, nil
}

func (s *Server) handleGetQuery(ctx context.Context, input *getQueryInput) (*getQueryOutput, error) {
	if s.services.History == nil {
		return nil, huma.Error503ServiceUnavailable("query log not configured")
	}
	rec, err := s.services.History.Get(ctx, input.ID)
	if err != nil {
		return nil, toHumaError(err, "getting query")
	}
	return &getQueryOutput{Body: rec}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	body := StatusBody{
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}

	if s.services.Graph != nil {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := s.services.Graph.Ping(pctx)
		cancel()
		c := health.Component{Name: "graph", State: health.StateUp}
		if err != nil {
			c.State, c.Message = health.StateDown, err.Error()
		}
		body.Components = append(body.Components, c)
	}

	if p := s.services.Providers; p != nil {
		body.DefaultModel = p.DefaultRef()
		body.Providers = p.Statuses(ctx)
		body.Components = append(body.Components, providersComponent(body.Providers))
	}

	if snap, ok := s.services.Schema.(interface{ Cached() *graph.Snapshot }); ok {
		body.SchemaSnapshot = snap.Cached()
	}

	if s.services.History != nil {
		c := health.Component{Name: "query_log", State: health.StateUp}
		stats, err := s.services.History.Stats(ctx)
		if err != nil {
			c.State, c.Message = health.StateDegraded, err.Error()
		} else {
			body.Queries = &stats
		}
		body.Components = append(body.Components, c)
	}

	if body.Components == nil {
		body.Components = []health.Component{}
	}
	body.Status = health.Overall(body.Components)
	return &statusOutput{Body: body}, nil
}

// providersComponent is down when nothing can answer, degraded when only
// some backends are available.
func providersComponent(statuses []provider.ProviderStatus) health.Component {
	c := health.Component{Name: "providers", State: health.StateUp}
	available := 0
	for _, st := range statuses {
		if st.Available {
			available++
		}
	}
	switch {
	case len(statuses) == 0:
		c.State, c.Message = health.StateDown, "no providers configured"
	case available == 0:
		c.State, c.Message = health.StateDown, "no provider available"
	case available < len(statuses):
		c.State, c.Message = health.StateDegraded, strconv.Itoa(available)+" of "+strconv.Itoa(len(statuses))+" providers available"
	}
	return c
}

// toHumaError maps a coded error onto an HTTP problem response. Details
// of internal failures are logged, not returned.
func toHumaError(err error, op string) error {
	status := pgerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "code", pgerr.CodeOf(err), "error", err)
		return huma.NewError(status, op+" failed")
	}
	return huma.NewError(status, err.Error())
}
