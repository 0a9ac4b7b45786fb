// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package provider

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lpararaa/pitchgraph/internal/metrics"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// Registry holds the configured providers and routes requests to a
// "provider/model" reference, walking a failover chain when the primary
// is unavailable or fails.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string   // "provider/model"
	failover   []string // ordered "provider/model" refs
	metrics    *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		metrics:   m,
	}
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, pgerr.New(pgerr.CodeProviderNotFound, "provider not found: "+name, pgerr.FieldProvider(name))
	}
	return p, nil
}

// Names returns registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the reference used when a request names no model.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRefLocked(ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

func (r *Registry) DefaultRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRef
}

// SetFailover sets the ordered chain tried after the primary reference.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.checkRefLocked(ref); err != nil {
			return err
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// caller holds r.mu
func (r *Registry) checkRefLocked(ref string) error {
	name, model := ParseRef(ref)
	if model == "" {
		return pgerr.Errorf(pgerr.CodeProviderInvalidModelRef, "model reference %q must use provider/model format", ref)
	}
	if _, ok := r.providers[name]; !ok {
		return pgerr.New(pgerr.CodeProviderNotFound, "provider not registered: "+name, pgerr.FieldProvider(name))
	}
	return nil
}

// MaxAttempts is the number of distinct candidates Complete may try.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route picks a provider for ref, or for the default when ref is empty.
// Providers named in exclude are skipped.
func (r *Registry) Route(ctx context.Context, ref string, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ref == "" || ref == "default" {
		ref = r.defaultRef
	}
	if ref == "" {
		return nil, "", pgerr.New(pgerr.CodeProviderNoDefault, "no default model configured")
	}
	if !strings.Contains(ref, "/") {
		return nil, "", pgerr.Errorf(pgerr.CodeProviderInvalidModelRef, "model reference %q must use provider/model format", ref)
	}

	for _, candidate := range append([]string{ref}, r.failover...) {
		name, model := ParseRef(candidate)
		if slices.Contains(exclude, name) {
			continue
		}
		p, ok := r.providers[name]
		if !ok || !p.Available(ctx) {
			continue
		}
		return p, model, nil
	}

	return nil, "", pgerr.New(pgerr.CodeProviderAllUnavailable, "all providers unavailable")
}

// Complete routes req, drains the response and fails over to the next
// candidate when a provider errors. req.Model is overwritten with the
// routed model.
func (r *Registry) Complete(ctx context.Context, ref string, req ChatRequest) (Completion, error) {
	var (
		tried   []string
		lastErr error
	)

	for range r.MaxAttempts() {
		p, model, err := r.Route(ctx, ref, tried)
		if err != nil {
			if lastErr != nil {
				return Completion{}, lastErr
			}
			return Completion{}, err
		}

		req.Model = model
		c, err := complete(ctx, p, req)
		if err == nil {
			r.metrics.ProviderRequest(p.Name(), "ok")
			c.Provider, c.Model = p.Name(), model
			return c, nil
		}

		r.metrics.ProviderRequest(p.Name(), "error")
		slog.Warn("provider request failed", "provider", p.Name(), "model", model, "error", err)
		tried = append(tried, p.Name())
		lastErr = err
	}

	return Completion{}, lastErr
}

func complete(ctx context.Context, p Provider, req ChatRequest) (Completion, error) {
	ch, err := p.Chat(ctx, req)
	if err != nil {
		return Completion{}, err
	}
	return Collect(ch)
}

// Statuses reports every registered provider, sorted by name.
func (r *Registry) Statuses(ctx context.Context) []ProviderStatus {
	names := r.Names()
	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		st, err := p.Status(ctx)
		if err != nil {
			st = ProviderStatus{Provider: name, Message: err.Error()}
		}
		if hr, ok := p.(HealthReporter); ok {
			hm := hr.HealthMetrics()
			st.Health = &hm
		}
		out = append(out, st)
	}
	return out
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return pgerr.Join(errs...)
}

// ParseRef splits a "provider/model" reference on the first "/". Model
// names may themselves contain slashes (OpenRouter's "vendor/model").
func ParseRef(ref string) (providerName, model string) {
	name, model, found := strings.Cut(ref, "/")
	if !found {
		return ref, ""
	}
	return name, model
}
