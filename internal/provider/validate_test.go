// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/provider"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

func TestValidateKeyAt(t *testing.T) {
	tests := []struct {
		name     string
		provider provider.Name
		status   int
		code     pgerr.Code
		header   string
		want     string
	}{
		{name: "anthropic ok", provider: provider.NameAnthropic, status: http.StatusOK, header: "X-Api-Key", want: "sk-test"},
		{name: "openai ok", provider: provider.NameOpenAI, status: http.StatusOK, header: "Authorization", want: "Bearer sk-test"},
		{name: "unauthorized", provider: provider.NameOpenRouter, status: http.StatusUnauthorized, code: pgerr.CodeProviderKeyInvalid},
		{name: "forbidden", provider: provider.NameOpenAI, status: http.StatusForbidden, code: pgerr.CodeProviderKeyInvalid},
		{name: "server error", provider: provider.NameAnthropic, status: http.StatusInternalServerError, code: pgerr.CodeProviderKeyCheckFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got http.Header
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Clone()
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := provider.ValidateKeyAt(context.Background(), srv.Client(), tt.provider, "sk-test", srv.URL)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, pgerr.HasCode(err, tt.code), "got %s", pgerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Get(tt.header))
		})
	}
}

func TestValidateKey_UnknownProvider(t *testing.T) {
	err := provider.ValidateKey(context.Background(), http.DefaultClient, provider.Name("ollama"), "k")
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeProviderKeyInvalid))
}

func TestName_Valid(t *testing.T) {
	for _, n := range provider.Names {
		assert.True(t, n.Valid(), n)
	}
	assert.False(t, provider.Name("ollama").Valid())
}
