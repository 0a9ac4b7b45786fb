// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lpararaa/pitchgraph/internal/secrets"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Set, list and delete the provider keys and graph password pitchgraph " +
			"keeps in the operating system keyring. Config values of the form " +
			"keyring://pitchgraph/<name> refer to them.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from stdin",
		Long: "Store a secret under the given name. The value is read from the first " +
			"line of stdin so it never appears in shell history.",
		Example: "  echo \"$GEMINI_API_KEY\" | pitchgraph secret set google-api-key",
		Args:    cobra.ExactArgs(1),
		RunE:    runSecretSet,
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	value := strings.TrimSpace(line)
	if value == "" {
		if err != nil && line == "" {
			return pgerr.Errorf(pgerr.CodeCLIInputInvalid, "reading secret from stdin: %w", err)
		}
		return pgerr.New(pgerr.CodeCLIInputInvalid, "secret value is empty")
	}

	if err := secretStoreFactory().Store(secrets.Service, name, value); err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretStoreFailure, "storing secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (reference it as %s)\n",
		name, secrets.URI(secrets.Service, name))
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	keys, err := store.List(secrets.Service)
	if err != nil {
		return pgerr.Errorf(pgerr.CodeSecretListFailure, "listing secrets: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(secrets.Service, name); err != nil {
		if pgerr.HasCode(err, pgerr.CodeSecretNotFound) {
			return pgerr.Errorf(pgerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return pgerr.Errorf(pgerr.CodeSecretDeleteFailure, "deleting secret %q: %w", name, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
