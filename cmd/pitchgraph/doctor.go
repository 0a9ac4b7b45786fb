// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/lpararaa/pitchgraph/internal/config"
	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/provider"
	"github.com/lpararaa/pitchgraph/internal/secrets"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

const doctorProbeTimeout = 10 * time.Second

// doctorHTTPClient is used for provider key checks.
var doctorHTTPClient = &http.Client{Timeout: doctorProbeTimeout}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long: "Check the binary, the config file and its permissions, keyring secrets, " +
			"the graph connection, provider API keys and disk space.",
		RunE: runDoctor,
	}

	cmd.Flags().Bool("offline", false, "skip checks that contact the graph or provider APIs")

	return cmd
}

// doctorEnv is the configuration the checks share. cfgErr is reported by
// the Config check; dependent checks are skipped when it is set.
type doctorEnv struct {
	cfg       *config.Config
	cfgErr    error
	secretErr error
	offline   bool
}

func loadDoctorEnv(v *viper.Viper, offline bool) *doctorEnv {
	env := &doctorEnv{offline: offline}
	env.secretErr = secrets.ResolveViperSecrets(v, secretStoreFactory())
	env.cfg, env.cfgErr = config.FromViper(v)
	return env
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	ctx := cmd.Context()
	offline, _ := cmd.Flags().GetBool("offline")
	addr := serverAddress(cmd)
	env := loadDoctorEnv(viper.GetViper(), offline)

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Server", func() string { return checkServer(addr) }},
		{"Config", func() string { return checkConfig(env) }},
		{"Permissions", checkConfigPermissions},
		{"Secrets", func() string { return checkSecrets(env) }},
		{"Graph", func() string { return checkGraph(ctx, env) }},
		{"Providers", func() string { return checkProviders(ctx, env) }},
		{"Disk Space", func() string { return checkDiskSpace(env) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("pitchgraph %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkServer(addr string) string {
	var body struct {
		Status string `json:"status"`
	}
	if err := newAPIClient(addr).getJSON("/api/v1/status", &body); err != nil {
		if pgerr.HasCode(err, pgerr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'pitchgraph serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig(env *doctorEnv) string {
	if env.cfgErr != nil {
		return fmt.Sprintf("invalid: %s", env.cfgErr)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found, run 'pitchgraph init')"
}

func checkConfigPermissions() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		return "no config file"
	}
	insecure, mode, err := config.CheckPermissions(cfgFile)
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}
	if insecure {
		return fmt.Sprintf("%s is readable by other users (chmod 600 %s)", mode.Perm(), cfgFile)
	}
	return fmt.Sprintf("%s ok", mode.Perm())
}

func checkSecrets(env *doctorEnv) string {
	if env.secretErr != nil {
		return fmt.Sprintf("unresolved: %s", env.secretErr)
	}
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return fmt.Sprintf("keyring unavailable: %s", err)
	}
	return fmt.Sprintf("%d stored in keyring", len(keys))
}

func checkGraph(ctx context.Context, env *doctorEnv) string {
	switch {
	case env.cfgErr != nil:
		return "skipped (invalid config)"
	case env.offline:
		return fmt.Sprintf("skipped (offline), configured at %s", env.cfg.Graph.URI)
	}

	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()

	db, err := openGraph(ctx, graph.Neo4jConfig{
		URI:      env.cfg.Graph.URI,
		Username: env.cfg.Graph.Username,
		Password: env.cfg.Graph.Password,
		Database: env.cfg.Graph.Database,
	})
	if err != nil {
		return fmt.Sprintf("unreachable at %s: %s", env.cfg.Graph.URI, err)
	}
	defer func() { _ = db.Close(ctx) }()

	if err := db.Ping(ctx); err != nil {
		return fmt.Sprintf("unreachable at %s: %s", env.cfg.Graph.URI, err)
	}
	labels, err := db.Labels(ctx)
	if err != nil {
		return fmt.Sprintf("connected to %s, schema unavailable: %s", env.cfg.Graph.URI, err)
	}
	return fmt.Sprintf("connected to %s (%d labels)", env.cfg.Graph.URI, len(labels))
}

func checkProviders(ctx context.Context, env *doctorEnv) string {
	if env.cfgErr != nil {
		return "skipped (invalid config)"
	}
	if len(env.cfg.Providers) == 0 {
		return "none configured (chat answers need at least one)"
	}

	names := make([]string, 0, len(env.cfg.Providers))
	for name := range env.cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	results := make([]string, 0, len(names))
	for _, name := range names {
		results = append(results, name+" "+checkProviderKey(ctx, env, name))
	}
	return strings.Join(results, ", ")
}

func checkProviderKey(ctx context.Context, env *doctorEnv, name string) string {
	key := env.cfg.Providers[name].APIKey
	switch {
	case key == "":
		return "(no key)"
	case env.offline:
		return "(key set)"
	}

	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()

	err := provider.ValidateKey(ctx, doctorHTTPClient, provider.Name(name), key)
	switch {
	case err == nil:
		return "(ok)"
	case pgerr.HasCode(err, pgerr.CodeProviderKeyInvalid):
		return "(invalid key)"
	default:
		return "(unchecked: " + err.Error() + ")"
	}
}

func checkDiskSpace(env *doctorEnv) string {
	path := ""
	if env.cfg != nil {
		path = env.cfg.Storage.Path
	}
	if path == "" {
		path, _ = config.DefaultDataDir()
	}
	if _, err := os.Stat(path); err != nil {
		// The data directory is created by the first 'serve'.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available in " + path
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
