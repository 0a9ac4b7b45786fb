// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package server

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/semaphore"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// DefaultMaxConcurrentChats bounds simultaneous chat requests. Each one
// holds up to three model calls and a graph query.
const DefaultMaxConcurrentChats = 8

// chatGate admits a bounded number of chat requests and turns the rest
// away immediately instead of queueing them behind slow model calls.
type chatGate struct {
	sem *semaphore.Weighted
	max int
}

func newChatGate(maxConcurrent int) (*chatGate, error) {
	if maxConcurrent < 0 {
		return nil, pgerr.Errorf(pgerr.CodeServerConfigInvalid,
			"max concurrent chats must not be negative (got %d)", maxConcurrent)
	}
	if maxConcurrent == 0 {
		maxConcurrent = DefaultMaxConcurrentChats
	}
	return &chatGate{sem: semaphore.NewWeighted(int64(maxConcurrent)), max: maxConcurrent}, nil
}

// acquire returns a release func, or a 429 error when every slot is taken.
func (g *chatGate) acquire(requestID string) (func(), error) {
	if !g.sem.TryAcquire(1) {
		slog.Warn("chat concurrency limit reached", "max", g.max, "request_id", requestID)
		return nil, chatTooManyRequests("too many chat requests in progress")
	}
	return func() { g.sem.Release(1) }, nil
}

func chatTooManyRequests(msg string) error {
	err429 := huma.NewError(http.StatusTooManyRequests, msg)
	return huma.ErrorWithHeaders(err429, http.Header{"Retry-After": []string{rateLimitRetryAfter}})
}
