package contracts

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Request is the command invocation payload relayed from issuer to executor.
// The ID is the correlation id echoed back in the matching Reply.
type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with a fresh correlation id. The id is drawn
// from the 128-bit random UUID space so collision with any outstanding
// request is effectively impossible.
func NewRequest(command string, params any) (Request, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("failed to marshal params for %s: %w", command, err)
		}
		raw = data
	}
	return Request{
		ID:      uuid.New().String(),
		Command: command,
		Params:  raw,
	}, nil
}

// Reply is the executor's response payload for one request id. Exactly one
// of Result and Error is populated.
type Reply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewReply builds a success reply carrying the marshaled result.
func NewReply(id string, result any) (Reply, error) {
	var raw json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return Reply{}, fmt.Errorf("failed to marshal result for request %s: %w", id, err)
		}
		raw = data
	}
	return Reply{ID: id, Result: raw}, nil
}

// NewErrorReply builds a failure reply carrying the executor's message.
func NewErrorReply(id, message string) Reply {
	return Reply{ID: id, Error: message}
}

// IsError reports whether the reply indicates a remote failure.
func (r *Reply) IsError() bool {
	return r.Error != ""
}

// JoinAck is the object carried inside the system notice acknowledging a
// channel join. ID echoes the id from the join envelope.
type JoinAck struct {
	ID     string `json:"id,omitempty"`
	Result string `json:"result"`
}
