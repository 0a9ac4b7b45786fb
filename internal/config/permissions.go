// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// groupOrOtherRead are the mode bits that expose the file to other users.
const groupOrOtherRead fs.FileMode = 0o044

// CheckPermissions reports whether the config file at path is readable by
// group or other. The config may hold the graph password and provider
// keys, so anything looser than 0600 is flagged.
func CheckPermissions(path string) (bool, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, 0, pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "stat %s: %w", path, err)
	}
	mode := info.Mode()
	return mode.Perm()&groupOrOtherRead != 0, mode, nil
}

// WarnInsecurePermissions logs a warning when CheckPermissions flags the
// file. It never fails startup.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	insecure, mode, err := CheckPermissions(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if insecure {
		slog.Warn("config file has insecure permissions, credentials may be exposed to other users",
			"path", path,
			"mode", mode,
			"recommended", "0600",
		)
	}
}
