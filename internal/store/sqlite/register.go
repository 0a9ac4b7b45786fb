// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/lpararaa/pitchgraph/internal/store"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// DBFile is the database file name inside the data directory.
const DBFile = "queries.db"

func init() {
	store.RegisterBackend("sqlite", open)
}

func open(cfg store.StorageConfig) (store.QueryLog, error) {
	if cfg.Path == "" {
		return nil, pgerr.New(pgerr.CodeStoreInvalidInput, "sqlite backend requires storage.path")
	}
	if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "creating data directory %s", cfg.Path)
	}
	return NewQueryLog(filepath.Join(cfg.Path, DBFile))
}
