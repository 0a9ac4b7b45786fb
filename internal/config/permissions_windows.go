// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

//go:build windows

package config

import (
	"io/fs"
	"log/slog"
	"os"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// CheckPermissions never flags a file on Windows, which uses ACLs rather
// than mode bits.
func CheckPermissions(path string) (bool, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "stat %s: %w", path, err)
	}
	return false, info.Mode(), nil
}

// WarnInsecurePermissions is a no-op on Windows.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
