// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package provider

import (
	"strings"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

// Completion is a fully drained chat stream.
type Completion struct {
	Text     string
	Usage    Usage
	Provider string
	Model    string
}

// Collect drains ch into a Completion. An error event fails the whole
// completion, as does a stream that closes without a done event and
// without any text.
func Collect(ch <-chan ChatEvent) (Completion, error) {
	var (
		b    strings.Builder
		c    Completion
		done bool
	)

	for ev := range ch {
		switch ev.Type {
		case EventTypeTextDelta:
			b.WriteString(ev.Text)
		case EventTypeUsage:
			if ev.Usage != nil {
				// Providers report cumulative usage; keep the latest.
				c.Usage = *ev.Usage
			}
		case EventTypeError:
			return Completion{}, pgerr.New(pgerr.CodeProviderUpstreamFailure, ev.Error)
		case EventTypeDone:
			done = true
		}
	}

	c.Text = b.String()
	if !done && c.Text == "" {
		return Completion{}, pgerr.New(pgerr.CodeProviderResponseInvalid, "chat stream closed without a response")
	}
	return c, nil
}
