// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package openrouter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/provider/openrouter"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

func TestOpenRouter_New(t *testing.T) {
	p, err := openrouter.New(openrouter.Config{APIKey: "sk-or-test"})
	require.NoError(t, err)
	assert.Equal(t, "openrouter", p.Name())

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, models)
	for _, m := range models {
		assert.Equal(t, "openrouter", m.Provider)
		assert.Contains(t, m.ID, "/", "OpenRouter IDs carry the vendor prefix")
	}

	st, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openrouter", st.Provider)
}

func TestOpenRouter_MissingAPIKey(t *testing.T) {
	_, err := openrouter.New(openrouter.Config{})
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeProviderRequestInvalid))
	assert.Contains(t, err.Error(), "openrouter")
}
