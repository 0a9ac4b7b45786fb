// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/server"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query the running server's status endpoint and display each dependency.",
		RunE:  runStatus,
	}

	cmd.Flags().Bool("json", false, "print the raw status document")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr := serverAddress(cmd)
	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")

	var body server.StatusBody
	if err := newAPIClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if pgerr.HasCode(err, pgerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	if asJSON {
		return encodeJSON(out, body)
	}
	return printStatus(out, addr, body)
}

func printStatus(w io.Writer, addr string, body server.StatusBody) error {
	rows := []row{
		{"Server", fmt.Sprintf("%s at %s", body.Status, addr)},
		{"Version", body.Version},
		{"Uptime", body.Uptime},
	}
	if body.DefaultModel != "" {
		rows = append(rows, row{"Default model", body.DefaultModel})
	}
	for _, c := range body.Components {
		value := string(c.State)
		if c.Message != "" {
			value += " (" + c.Message + ")"
		}
		rows = append(rows, row{"  " + c.Name, value})
	}
	for _, p := range body.Providers {
		value := "available"
		if !p.Available {
			value = "unavailable"
		}
		if p.Message != "" {
			value += " (" + p.Message + ")"
		}
		rows = append(rows, row{"  provider " + p.Provider, value})
	}
	if q := body.Queries; q != nil {
		rows = append(rows, row{"Queries",
			fmt.Sprintf("%d total, %d ok, %d errors (%d rejected)", q.Total, q.OK, q.Errors, q.Rejected)})
	}

	return fprintRows(w, rows)
}
