// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// Name identifies a supported provider backend.
type Name string

const (
	NameAnthropic  Name = "anthropic"
	NameOpenAI     Name = "openai"
	NameGoogle     Name = "google"
	NameOpenRouter Name = "openrouter"
)

// Names lists every supported backend in display order.
var Names = []Name{NameGoogle, NameAnthropic, NameOpenAI, NameOpenRouter}

// Valid reports whether n is a supported backend.
func (n Name) Valid() bool {
	switch n {
	case NameAnthropic, NameOpenAI, NameGoogle, NameOpenRouter:
		return true
	default:
		return false
	}
}

// keyEndpoint returns the models listing URL and auth headers for a key.
func keyEndpoint(name Name, key string) (string, map[string]string, error) {
	switch name {
	case NameAnthropic:
		return "https://api.anthropic.com/v1/models", map[string]string{
			"x-api-key":         key,
			"anthropic-version": "2023-06-01",
		}, nil
	case NameOpenAI:
		return "https://api.openai.com/v1/models", map[string]string{"Authorization": "Bearer " + key}, nil
	case NameGoogle:
		// The Generative Language API only accepts the key as a query parameter.
		return "https://generativelanguage.googleapis.com/v1/models?key=" + key, nil, nil
	case NameOpenRouter:
		return "https://openrouter.ai/api/v1/models", map[string]string{"Authorization": "Bearer " + key}, nil
	default:
		return "", nil, pgerr.Errorf(pgerr.CodeProviderKeyInvalid, "unknown provider: %s", name)
	}
}

// ValidateKey confirms key is accepted by listing the provider's models.
func ValidateKey(ctx context.Context, client *http.Client, name Name, key string) error {
	url, headers, err := keyEndpoint(name, key)
	if err != nil {
		return err
	}
	return checkKey(ctx, client, name, url, headers)
}

// ValidateKeyAt is ValidateKey against an explicit URL, keeping the
// provider's auth headers. Used with test servers.
func ValidateKeyAt(ctx context.Context, client *http.Client, name Name, key, url string) error {
	_, headers, err := keyEndpoint(name, key)
	if err != nil {
		return err
	}
	return checkKey(ctx, client, name, url, headers)
}

func checkKey(ctx context.Context, client *http.Client, name Name, url string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pgerr.Errorf(pgerr.CodeProviderKeyCheckFailure, "building validation request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return pgerr.Errorf(pgerr.CodeProviderKeyCheckFailure, "validating %s key: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pgerr.Errorf(pgerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	case resp.StatusCode >= 400:
		return pgerr.Errorf(pgerr.CodeProviderKeyCheckFailure, "%s key validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}
