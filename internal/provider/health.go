// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package provider

import (
	"sync"
	"time"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/health"
)

// HealthMetrics is the serializable health snapshot of a provider.
type HealthMetrics = health.Metrics

// DefaultHealthCooldown is how long a failed provider is skipped by routing.
const DefaultHealthCooldown = 30 * time.Second

// HealthReporter is implemented by providers that track their own health.
type HealthReporter interface {
	RecordFailure()
	RecordSuccess()
	HealthMetrics() HealthMetrics
}

// HealthTracker marks a provider unavailable for a cooldown window after
// a failure. Once the window passes the provider is offered again; the
// next success clears the failure state.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	cooldown     time.Duration
	failureCount int64
	now          func() time.Time
}

func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
			"health cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{healthy: true, cooldown: cooldown, now: time.Now}, nil
}

// MustHealthTracker is NewHealthTracker for constant cooldowns.
func MustHealthTracker(cooldown time.Duration) *HealthTracker {
	h, err := NewHealthTracker(cooldown)
	if err != nil {
		panic(err)
	}
	return h
}

// caller holds h.mu
func (h *HealthTracker) availableLocked() bool {
	return h.healthy || h.now().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = true
}

func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = false
	h.failedAt = h.now()
	h.failureCount++
}

// SetClock replaces the time source. Tests only.
func (h *HealthTracker) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{FailureCount: h.failureCount, Available: h.availableLocked()}
	if h.failureCount > 0 {
		at := h.failedAt
		m.LastFailureAt = &at
	}
	if !h.healthy {
		until := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &until
	}
	return m
}
