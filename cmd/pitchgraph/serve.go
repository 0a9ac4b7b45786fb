// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lpararaa/pitchgraph/internal/config"
	"github.com/lpararaa/pitchgraph/internal/secrets"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pitchgraph server",
		Long: "Load configuration, connect to the graph, register language model " +
			"providers and serve the HTTP API until interrupted.",
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := WireService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("shutdown", "error", err)
		}
	}()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving pitchgraph on http://%s (graph %s, providers: %s)\n",
		cfg.Networking.Listen, cfg.Graph.URI, providerList(svc.Providers.Names()))

	return svc.Start(ctx)
}

// loadServeConfig resolves keyring references held by the global viper,
// applies the --listen override and decodes the result.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.GetViper()

	if err := secrets.ResolveViperSecrets(v, secretStoreFactory()); err != nil {
		return nil, err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		v.Set("networking.listen", listen)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeCLISetupFailure, "loading config")
	}
	return cfg, nil
}

func providerList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
