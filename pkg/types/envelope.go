// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package types

// Status is the outcome marker carried by every Envelope.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Envelope is the uniform shape returned by guarded query execution.
// Exactly one of Data or Message is meaningful, selected by Status.
type Envelope struct {
	Status  Status           `json:"status" doc:"ok or error" enum:"ok,error"`
	Data    []map[string]any `json:"data,omitempty" doc:"Result rows, present when status is ok"`
	Message string           `json:"message,omitempty" doc:"Human-readable reason, present when status is error"`
}

// OK wraps rows in a success envelope.
func OK(rows []map[string]any) Envelope {
	return Envelope{Status: StatusOK, Data: rows}
}

// Fail builds an error envelope.
func Fail(message string) Envelope {
	return Envelope{Status: StatusError, Message: message}
}

func (e Envelope) IsOK() bool {
	return e.Status == StatusOK
}
