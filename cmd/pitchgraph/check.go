// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/guard"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [cypher]",
		Short: "Check a Cypher query against the guard without running it",
		Long: "Ask the server whether the query guard would accept a statement. Prints the " +
			"statement as it would execute, or the rule that rejected it.",
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}

	cmd.Flags().Int("max-rows", 0, "row bound injected when the query has no LIMIT (default from server)")
	cmd.Flags().StringP("file", "f", "", "read the statement from a file")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	query, err := readStatement(cmd, args)
	if err != nil {
		return err
	}
	maxRows, _ := cmd.Flags().GetInt("max-rows")

	body := map[string]any{"query": query}
	if maxRows > 0 {
		body["max_rows"] = maxRows
	}

	var out guard.Outcome
	if err := newAPIClient(serverAddress(cmd)).postJSON("/api/v1/query/validate", body, &out); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if !out.Passed {
		_, _ = fmt.Fprintf(w, "rejected (%s): %s\n", out.Rule, out.Reason)
		return pgerr.New(pgerr.CodeGuardPolicyViolation, "query rejected by rule "+out.Rule, pgerr.FieldRule(out.Rule))
	}
	_, err = fmt.Fprintf(w, "accepted, executes as:\n%s\n", out.Query)
	return err
}
