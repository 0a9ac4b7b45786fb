// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/analyst"
	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// maxAskHistory bounds the turns resent in an interactive session. The
// analyst itself only reads the most recent few.
const maxAskHistory = 20

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the season",
		Long: "Send a question to the running server and print the answer. " +
			"Without a question, reads questions line by line and keeps the conversation going.",
		RunE: runAsk,
	}

	cmd.Flags().Bool("show-query", false, "print the Cypher the answer was based on")
	cmd.Flags().Bool("raw", false, "print the rows the answer was based on as JSON")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	c := newAPIClient(serverAddress(cmd))
	showQuery, _ := cmd.Flags().GetBool("show-query")
	raw, _ := cmd.Flags().GetBool("raw")
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		reply, err := ask(c, strings.Join(args, " "), nil)
		if err != nil {
			return err
		}
		return printReply(out, reply, showQuery, raw)
	}

	var history []provider.Message
	scanner := bufio.NewScanner(cmd.InOrStdin())
	_, _ = fmt.Fprint(out, "> ")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			_, _ = fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}

		reply, err := ask(c, question, history)
		if err != nil {
			return err
		}
		if err := printReply(out, reply, showQuery, raw); err != nil {
			return err
		}

		history = append(history,
			provider.Message{Role: provider.MessageRoleUser, Content: question},
			provider.Message{Role: provider.MessageRoleAssistant, Content: reply.Response},
		)
		if len(history) > maxAskHistory {
			history = history[len(history)-maxAskHistory:]
		}
		_, _ = fmt.Fprint(out, "\n> ")
	}
	if err := scanner.Err(); err != nil {
		return pgerr.Errorf(pgerr.CodeCLIInputInvalid, "reading questions: %w", err)
	}
	return nil
}

func ask(c *apiClient, question string, history []provider.Message) (analyst.Reply, error) {
	var reply analyst.Reply
	err := c.postJSON("/api/v1/chat", analyst.Request{Message: question, History: history}, &reply)
	return reply, err
}

func printReply(w io.Writer, reply analyst.Reply, showQuery, raw bool) error {
	if _, err := fmt.Fprintln(w, reply.Response); err != nil {
		return err
	}
	if showQuery && reply.Query != "" {
		if _, err := fmt.Fprintf(w, "\nCypher:\n%s\n", reply.Query); err != nil {
			return err
		}
	}
	if raw && len(reply.Raw) > 0 {
		if err := encodeJSON(w, reply.Raw); err != nil {
			return err
		}
	}
	return nil
}
