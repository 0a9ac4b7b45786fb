// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

//go:embed pitchgraph.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/pitchgraph/pitchgraph.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pitchgraph", "pitchgraph.yaml"), nil
}

// DefaultDataDir returns ~/.local/share/pitchgraph, where the query log
// lives unless storage.path says otherwise.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "pitchgraph"), nil
}

// BootstrapConfig writes the default commented config if none exists yet.
// Returns the path written, or empty string if the file already existed or
// an error occurred (non-fatal, logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
