// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/store"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

const historyQueryWidth = 60

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List recent guarded queries",
		Long: "Show the server's query log, newest first. With an id, show that one entry " +
			"in full.",
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().String("status", "", "only entries with this status: ok or error")
	cmd.Flags().String("source", "", "only entries from this caller: chat, api or cli")
	cmd.Flags().Duration("since", 0, "only entries newer than this, e.g. 1h")
	cmd.Flags().IntP("limit", "n", 20, "maximum entries to show")
	cmd.Flags().Bool("json", false, "print entries as JSON")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	c := newAPIClient(serverAddress(cmd))
	asJSON, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()

	if len(args) == 1 {
		var rec store.QueryRecord
		if err := c.getJSON("/api/v1/queries/"+url.PathEscape(args[0]), &rec); err != nil {
			return err
		}
		if asJSON {
			return encodeJSON(w, rec)
		}
		return printRecord(w, &rec)
	}

	path, err := historyPath(cmd)
	if err != nil {
		return err
	}
	var body struct {
		Queries []*store.QueryRecord `json:"queries"`
	}
	if err := c.getJSON(path, &body); err != nil {
		return err
	}
	if asJSON {
		return encodeJSON(w, body.Queries)
	}

	if len(body.Queries) == 0 {
		_, err := fmt.Fprintln(w, "No queries recorded.")
		return err
	}
	for _, rec := range body.Queries {
		if _, err := fmt.Fprintf(w, "%s  %s  %-4s %-5s %5d rows  %s\n",
			rec.ID[:min(8, len(rec.ID))],
			rec.Timestamp.Local().Format(time.DateTime),
			rec.Source, rec.Status, rec.Rows,
			oneLine(rec.Query, historyQueryWidth),
		); err != nil {
			return err
		}
	}
	return nil
}

func historyPath(cmd *cobra.Command) (string, error) {
	status, _ := cmd.Flags().GetString("status")
	source, _ := cmd.Flags().GetString("source")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")

	if since < 0 {
		return "", pgerr.Errorf(pgerr.CodeCLIInputInvalid, "--since must not be negative (got %s)", since)
	}

	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if source != "" {
		q.Set("source", source)
	}
	if since > 0 {
		q.Set("since", time.Now().Add(-since).UTC().Format(time.RFC3339))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/v1/queries"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	return path, nil
}

func printRecord(w io.Writer, rec *store.QueryRecord) error {
	rows := []row{
		{"ID", rec.ID},
		{"Time", rec.Timestamp.Local().Format(time.RFC3339)},
		{"Source", string(rec.Source)},
		{"Status", string(rec.Status)},
		{"Rule", rec.Rule},
		{"Message", rec.Message},
		{"Rows", strconv.Itoa(rec.Rows)},
		{"Duration", rec.Duration.String()},
	}
	rows = slices.DeleteFunc(rows, func(r row) bool { return r.value == "" })
	if err := fprintRows(w, rows); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\nQuery:\n%s\n", rec.Query); err != nil {
		return err
	}
	if rec.Executed != "" && rec.Executed != rec.Query {
		if _, err := fmt.Fprintf(w, "\nExecuted:\n%s\n", rec.Executed); err != nil {
			return err
		}
	}
	return nil
}

// oneLine collapses whitespace and truncates s to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
