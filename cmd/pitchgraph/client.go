// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

// defaultHTTPClient is shared by the client commands. Chat requests wait
// on several model calls, so the timeout matches the server's write
// timeout rather than a health-check budget.
var defaultHTTPClient = &http.Client{
	Timeout: 3 * time.Minute,
}

// apiClient provides HTTP access to a running pitchgraph server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient creates a client targeting the given host:port address. A
// full URL is accepted as well.
func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *apiClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pgerr.Errorf(pgerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	return c.do(req, dest)
}

// postJSON sends body as JSON and decodes the response into dest. Queries
// posted from the CLI are tagged so the query log can tell them apart.
func (c *apiClient) postJSON(path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pgerr.Errorf(pgerr.CodeCLIInputInvalid, "encoding request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pgerr.Errorf(pgerr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Query-Source", string(types.QuerySourceCLI))
	return c.do(req, dest)
}

func (c *apiClient) do(req *http.Request, dest any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return pgerr.Errorf(pgerr.CodeCLIServerNotRunning, "server at %s is not running (connection refused)", req.URL.Host)
		}
		return pgerr.Errorf(pgerr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return pgerr.Errorf(pgerr.CodeCLIRequestFailure, "server returned status %d: %s",
			resp.StatusCode, problemDetail(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pgerr.Errorf(pgerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// problemDetail extracts the detail of an RFC 9457 problem body, falling
// back to the raw text.
func problemDetail(body []byte) string {
	var p struct {
		Detail string `json:"detail"`
		Errors []struct {
			Message  string `json:"message"`
			Location string `json:"location"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Detail == "" {
		return strings.TrimSpace(string(body))
	}
	msg := p.Detail
	for _, e := range p.Errors {
		msg += "; " + e.Location + ": " + e.Message
	}
	return msg
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
