// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/lpararaa/pitchgraph/internal/analyst"
	"github.com/lpararaa/pitchgraph/internal/config"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/guard"
	"github.com/lpararaa/pitchgraph/internal/metrics"
	"github.com/lpararaa/pitchgraph/internal/provider"
	anthropicprov "github.com/lpararaa/pitchgraph/internal/provider/anthropic"
	googleprov "github.com/lpararaa/pitchgraph/internal/provider/google"
	openaiprov "github.com/lpararaa/pitchgraph/internal/provider/openai"
	openrouterprov "github.com/lpararaa/pitchgraph/internal/provider/openrouter"
	"github.com/lpararaa/pitchgraph/internal/server"
	"github.com/lpararaa/pitchgraph/internal/store"
	_ "github.com/lpararaa/pitchgraph/internal/store/sqlite" // register sqlite backend
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

const graphCloseTimeout = 5 * time.Second

// graphBackend is what the service needs from the graph connection.
type graphBackend interface {
	graph.Database
	graph.Pinger
	Close(ctx context.Context) error
}

// openGraph connects to the graph database. Declared as a variable so
// tests can substitute an in-memory database.
var openGraph = func(ctx context.Context, cfg graph.Neo4jConfig) (graphBackend, error) {
	return graph.NewNeo4j(ctx, cfg)
}

// Service holds all wired subsystems and manages their lifecycle.
type Service struct {
	Server    *server.Server
	Graph     graphBackend
	Schema    *graph.SchemaCache
	Guard     *guard.Guard
	History   store.QueryLog
	Providers *provider.Registry
	Metrics   *metrics.Metrics
}

// WireService creates all subsystems and wires them together.
func WireService(ctx context.Context, cfg *config.Config) (*Service, error) {
	m := metrics.New()
	svc := &Service{Metrics: m}

	// 1. Query log.
	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return nil, err
	}
	history, err := store.Open(store.StorageConfig{Backend: cfg.Storage.Backend, Path: dataDir})
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "opening query log")
	}
	svc.History = history

	// 2. Graph connection and schema cache.
	db, err := openGraph(ctx, graph.Neo4jConfig{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	})
	if err != nil {
		_ = svc.Close()
		return nil, pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "connecting to graph at %s", cfg.Graph.URI)
	}
	svc.Graph = db
	svc.Schema = graph.NewSchemaCache(db, graph.WithTTL(cfg.Graph.SchemaTTL), graph.WithSchemaMetrics(m))

	// 3. Query guard. Every execution lands in the query log.
	svc.Guard = guard.New(svc.Schema, graph.NewExecutor(db, m), guard.Config{
		MaxRows:          cfg.Guard.MaxRows,
		MaxQueryLength:   cfg.Guard.MaxQueryLength,
		AllowedLabels:    cfg.Guard.AllowedLabels,
		ExecutionTimeout: cfg.Guard.ExecutionTimeout,
	}, guard.WithMetrics(m), guard.WithObserver(store.Recorder(history)))

	// 4. Provider registry with default model and failover chain.
	svc.Providers = provider.NewRegistry(m)
	registerBuiltinProviders(cfg, svc.Providers)
	if err := configureRouting(cfg, svc.Providers); err != nil {
		_ = svc.Close()
		return nil, err
	}

	// 5. Analyst.
	knowledge, err := analyst.DefaultKnowledge()
	if err != nil {
		_ = svc.Close()
		return nil, pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "loading knowledge base")
	}
	an := analyst.New(analyst.Config{
		Models:       svc.Providers,
		Guard:        svc.Guard,
		Knowledge:    knowledge,
		Schema:       svc.Schema,
		Model:        cfg.Models.Default,
		SummaryModel: cfg.Models.Summary,
		MaxRows:      cfg.Guard.ChatMaxRows,
	})

	// 6. HTTP server.
	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Networking.RateLimitRPS,
			Burst:             cfg.Networking.RateLimitBurst,
		},
		Metrics: m,
		Version: version,
	}, &server.Services{
		Chat:      an,
		Queries:   svc.Guard,
		Schema:    svc.Schema,
		History:   history,
		Graph:     db,
		Providers: svc.Providers,
	})
	if err != nil {
		_ = svc.Close()
		return nil, pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "creating server")
	}
	svc.Server = srv

	return svc, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	return s.Server.Start(ctx)
}

// Close releases all resources held by the service. Fields left nil by a
// failed WireService are skipped.
func (s *Service) Close() error {
	var errs []error
	if s.Server != nil {
		errs = append(errs, s.Server.Close())
	}
	if s.Providers != nil {
		errs = append(errs, s.Providers.Close())
	}
	if s.History != nil {
		errs = append(errs, s.History.Close())
	}
	if s.Graph != nil {
		ctx, cancel := context.WithTimeout(context.Background(), graphCloseTimeout)
		errs = append(errs, s.Graph.Close(ctx))
		cancel()
	}
	return errors.Join(errs...)
}

// resolveDataDir returns storage.path, or the default data directory, and
// makes sure it exists.
func resolveDataDir(cfg *config.Config) (string, error) {
	dir := cfg.Storage.Path
	if dir == "" {
		var err error
		if dir, err = config.DefaultDataDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", pgerr.Errorf(pgerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}
	return dir, nil
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject failing factories.
var builtinProviderFactories = map[provider.Name]providerFactory{
	provider.NameAnthropic: func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	provider.NameGoogle: func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey})
	},
	provider.NameOpenAI: func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	provider.NameOpenRouter: func(pc config.ProviderConfig) (provider.Provider, error) {
		return openrouterprov.New(openrouterprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

// registerBuiltinProviders iterates configured providers and registers
// matching built-in implementations. Unknown names or empty API keys are
// logged and skipped; neither is fatal at startup.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" {
			slog.Warn("skipping provider with empty API key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[provider.Name(name)]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}

// configureRouting applies models.default and models.failover. With no
// provider registered the server still runs raw queries, so that case is
// a warning rather than an error.
func configureRouting(cfg *config.Config, reg *provider.Registry) error {
	if len(reg.Names()) == 0 {
		slog.Warn("no language model provider configured; chat answers will report the model as unavailable")
		return nil
	}
	if cfg.Models.Default != "" {
		if err := reg.SetDefault(cfg.Models.Default); err != nil {
			return pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "setting default model: %s", cfg.Models.Default)
		}
	}
	if len(cfg.Models.Failover) > 0 {
		if err := reg.SetFailover(cfg.Models.Failover); err != nil {
			return pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "setting failover chain")
		}
	}
	return nil
}
