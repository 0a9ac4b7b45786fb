// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package types

import (
	"context"
	"encoding/json"
	"testing"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeJSONShape(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want string
	}{
		{
			name: "ok with rows",
			env:  OK([]map[string]any{{"name": "Arsenal"}}),
			want: `{"status":"ok","data":[{"name":"Arsenal"}]}`,
		},
		{
			name: "error with message",
			env:  Fail("Query too long."),
			want: `{"status":"error","message":"Query too long."}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.env)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestEnvelopeIsOK(t *testing.T) {
	assert.True(t, OK(nil).IsOK())
	assert.False(t, Fail("x").IsOK())
}

func TestParseQuerySource(t *testing.T) {
	for _, in := range []string{"chat", "API", " cli "} {
		src, err := ParseQuerySource(in)
		require.NoError(t, err, in)
		assert.True(t, src.Valid())
	}

	_, err := ParseQuerySource("telegram")
	require.Error(t, err)
	assert.True(t, pgerr.IsInvalidInput(err))
}

func TestQuerySourceContext(t *testing.T) {
	assert.Equal(t, QuerySourceAPI, QuerySourceFrom(context.Background()))

	ctx := WithQuerySource(context.Background(), QuerySourceChat)
	assert.Equal(t, QuerySourceChat, QuerySourceFrom(ctx))

	ctx = WithQuerySource(context.Background(), QuerySource("bogus"))
	assert.Equal(t, QuerySourceAPI, QuerySourceFrom(ctx))
}
