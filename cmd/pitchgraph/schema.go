// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/server"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the graph schema the guard checks against",
		RunE:  runSchema,
	}

	cmd.Flags().Bool("refresh", false, "bypass the server's cache and re-read the schema")
	cmd.Flags().Bool("json", false, "print the schema as JSON")

	return cmd
}

func runSchema(cmd *cobra.Command, _ []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")
	asJSON, _ := cmd.Flags().GetBool("json")

	path := "/api/v1/schema"
	if refresh {
		path += "?refresh=true"
	}

	var body server.SchemaBody
	if err := newAPIClient(serverAddress(cmd)).getJSON(path, &body); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		return encodeJSON(w, body)
	}
	return printSchema(w, body)
}

func printSchema(w io.Writer, body server.SchemaBody) error {
	rows := []row{
		{"Labels", joinOrNone(body.Labels)},
		{"Relationships", joinOrNone(body.RelationshipTypes)},
		{"Properties", joinOrNone(body.PropertyKeys)},
		{"Refreshed", body.RefreshedAt.Local().Format(time.DateTime)},
		{"Cache TTL", (time.Duration(body.TTLSeconds) * time.Second).String()},
	}
	return fprintRows(w, rows)
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

// row is one aligned "label: value" line of human-readable output.
type row struct{ label, value string }

func fprintRows(w io.Writer, rows []row) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", r.label+":", r.value); err != nil {
			return err
		}
	}
	return nil
}
