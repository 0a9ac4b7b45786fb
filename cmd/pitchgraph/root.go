// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lpararaa/pitchgraph/internal/config"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// NewRootCmd creates the root pitchgraph command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pitchgraph",
		Short: "Pitchgraph: ask questions about the 2023-24 Premier League season",
		Long: "Pitchgraph answers natural-language questions about the 2023-24 Premier League " +
			"season by generating Cypher, checking it with a read-only query guard and " +
			"summarising the rows it returns.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), viper.GetViper())
			return nil
		},
	}

	// Global flags; initViper maps them onto viper keys.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("address", "", "server address for client commands (default networking.listen)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newAskCmd(),
		newQueryCmd(),
		newCheckCmd(),
		newSchemaCmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newDoctorCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is left unset: viper would otherwise also try the
		// bare name, which collides with the ./pitchgraph binary.
		v.SetConfigName("pitchgraph")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pitchgraph")
		v.AddConfigPath("/etc/pitchgraph")
		// No config file is fine. Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return pgerr.Errorf(pgerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}

// setupLogging installs the default slog handler from logging.* settings.
// --verbose forces debug level.
func setupLogging(w io.Writer, v *viper.Viper) {
	lc := config.LoggingConfig{
		Level:  v.GetString("logging.level"),
		Format: v.GetString("logging.format"),
	}
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	if v.GetBool("verbose") {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// serverAddress is the --address flag, falling back to the configured
// listen address.
func serverAddress(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		return addr
	}
	return viper.GetString("networking.listen")
}
