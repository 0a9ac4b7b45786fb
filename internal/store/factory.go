// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package store

import (
	"sync"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// QueryLogFactory opens a query log for a storage configuration.
type QueryLogFactory func(cfg StorageConfig) (QueryLog, error)

var (
	factories   = map[string]QueryLogFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a named backend. Backend packages call this
// from init().
func RegisterBackend(name string, f QueryLogFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

func init() {
	RegisterBackend("memory", func(StorageConfig) (QueryLog, error) {
		return NewMemoryLog(0), nil
	})
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the query log for cfg. The sqlite backend is only
// available when its package has been imported.
func Open(cfg StorageConfig) (QueryLog, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, pgerr.Errorf(pgerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}
	return f(cfg)
}
