// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// Neo4jConfig holds connection settings for a Neo4j-compatible server.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	// Database selects a named database; empty uses the server default.
	Database string
}

// Neo4j implements Database on top of the official Go driver. All
// sessions are opened in read access mode.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Database = (*Neo4j)(nil)

// NewNeo4j creates a driver and verifies that the server is reachable.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	if cfg.URI == "" {
		return nil, pgerr.New(pgerr.CodeConfigValidateInvalidValue, "graph uri is required")
	}

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, pgerr.Wrap(err, pgerr.CodeGraphConnectFailure, "creating graph driver", pgerr.Field("uri", cfg.URI))
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, pgerr.Wrap(err, pgerr.CodeGraphConnectFailure, "verifying graph connectivity", pgerr.Field("uri", cfg.URI))
	}

	slog.Info("graph database connected", "uri", cfg.URI, "database", cfg.Database)

	return &Neo4j{driver: driver, database: cfg.Database}, nil
}

func (n *Neo4j) session(ctx context.Context) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: n.database,
	})
}

// Query runs cypher inside a managed read transaction.
func (n *Neo4j) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := n.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		rows := make([]map[string]any, 0)
		for res.Next(ctx) {
			rows = append(rows, res.Record().AsMap())
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, err
	}

	rows, ok := out.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction result %T", out)
	}
	return rows, nil
}

func (n *Neo4j) Labels(ctx context.Context) ([]string, error) {
	return n.column(ctx, "CALL db.labels()")
}

func (n *Neo4j) RelationshipTypes(ctx context.Context) ([]string, error) {
	return n.column(ctx, "CALL db.relationshipTypes()")
}

func (n *Neo4j) PropertyKeys(ctx context.Context) ([]string, error) {
	return n.column(ctx, "CALL db.propertyKeys()")
}

// column runs a procedure and collects the first column as strings.
func (n *Neo4j) column(ctx context.Context, cypher string) ([]string, error) {
	session := n.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	res, err := session.Run(ctx, cypher, nil)
	if err != nil {
		return nil, pgerr.Wrap(err, pgerr.CodeGraphIntrospectFailure, "running introspection", pgerr.FieldQuery(cypher))
	}

	var values []string
	for res.Next(ctx) {
		record := res.Record()
		if len(record.Values) == 0 {
			continue
		}
		if s, ok := record.Values[0].(string); ok {
			values = append(values, s)
		}
	}
	if err := res.Err(); err != nil {
		return nil, pgerr.Wrap(err, pgerr.CodeGraphIntrospectFailure, "reading introspection result", pgerr.FieldQuery(cypher))
	}
	return values, nil
}

// Ping verifies the driver can reach the server.
func (n *Neo4j) Ping(ctx context.Context) error {
	if err := n.driver.VerifyConnectivity(ctx); err != nil {
		return pgerr.Wrap(err, pgerr.CodeGraphConnectFailure, "graph ping")
	}
	return nil
}

func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
