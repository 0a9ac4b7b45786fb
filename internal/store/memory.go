// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package store

import (
	"context"
	"slices"
	"sync"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

// DefaultMemoryCapacity bounds the in-memory log.
const DefaultMemoryCapacity = 10000

// MemoryLog is a bounded in-process QueryLog. The oldest records are
// dropped once capacity is reached.
type MemoryLog struct {
	mu       sync.RWMutex
	records  []*QueryRecord // oldest first
	capacity int
}

var _ QueryLog = (*MemoryLog)(nil)

func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryLog{capacity: capacity}
}

func (m *MemoryLog) Append(_ context.Context, rec *QueryRecord) error {
	if err := Prepare(rec); err != nil {
		return err
	}
	cp := *rec

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) >= m.capacity {
		m.records = slices.Delete(m.records, 0, len(m.records)-m.capacity+1)
	}
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryLog) Get(_ context.Context, id string) (*QueryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, pgerr.New(pgerr.CodeStoreEntryNotFound, "query record not found", pgerr.Field("id", id))
}

func (m *MemoryLog) List(_ context.Context, filter QueryFilter) ([]*QueryRecord, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*QueryRecord
	skipped := 0
	for i := len(m.records) - 1; i >= 0 && len(out) < f.Limit; i-- {
		r := m.records[i]
		if !matches(r, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func matches(r *QueryRecord, f QueryFilter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

func (m *MemoryLog) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Stats
	for _, r := range m.records {
		s.Total++
		switch {
		case r.Status == types.StatusOK:
			s.OK++
		case r.Rejected():
			s.Rejected++
			s.Errors++
		default:
			s.Errors++
		}
		if r.Timestamp.After(s.Last) {
			s.Last = r.Timestamp
		}
	}
	return s, nil
}

func (m *MemoryLog) Close() error { return nil }
