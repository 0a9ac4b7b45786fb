// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [cypher]",
		Short: "Run a read-only Cypher query through the guard",
		Long: "Send a Cypher statement to the server, where it is checked by the query guard " +
			"before it runs. Reads the statement from --file or stdin when no argument is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().StringArrayP("param", "p", nil, "query parameter as name=value (repeatable); numbers and booleans are typed")
	cmd.Flags().Int("max-rows", 0, "row bound injected when the query has no LIMIT (default from server)")
	cmd.Flags().StringP("file", "f", "", "read the statement from a file")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	query, err := readStatement(cmd, args)
	if err != nil {
		return err
	}
	rawParams, _ := cmd.Flags().GetStringArray("param")
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}
	maxRows, _ := cmd.Flags().GetInt("max-rows")

	body := map[string]any{"query": query}
	if len(params) > 0 {
		body["params"] = params
	}
	if maxRows > 0 {
		body["max_rows"] = maxRows
	}

	var env types.Envelope
	if err := newAPIClient(serverAddress(cmd)).postJSON("/api/v1/query", body, &env); err != nil {
		return err
	}

	if !env.IsOK() {
		return pgerr.New(pgerr.CodeCLIRequestFailure, env.Message)
	}

	return encodeJSON(cmd.OutOrStdout(), env.Data)
}

// readStatement takes the statement from the argument, --file, or stdin,
// in that order.
func readStatement(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch file, _ := cmd.Flags().GetString("file"); {
	case len(args) > 0:
		data = []byte(args[0])
	case file != "":
		data, err = os.ReadFile(file)
	default:
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", pgerr.Errorf(pgerr.CodeCLIInputInvalid, "reading statement: %w", err)
	}

	query := strings.TrimSpace(string(data))
	if query == "" {
		return "", pgerr.New(pgerr.CodeCLIInputInvalid, "no Cypher statement given")
	}
	return query, nil
}

// parseParams turns name=value pairs into a parameter map. Values that
// parse as integers, floats or booleans keep that type; anything else is
// a string.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, pgerr.Errorf(pgerr.CodeCLIInputInvalid, "parameter %q must be name=value", pair)
		}
		params[name] = typedValue(value)
	}
	return params, nil
}

func typedValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
