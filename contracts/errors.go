package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Static failure modes.
var (
	// ErrNotConnected indicates a publish was attempted without a live
	// transport connection.
	ErrNotConnected = errors.New("canvaslink: transport not connected")

	// ErrTransportClosed indicates the transport connection went away.
	ErrTransportClosed = errors.New("canvaslink: transport closed")

	// ErrBridgeClosed indicates the command bridge has been shut down.
	ErrBridgeClosed = errors.New("canvaslink: bridge closed")

	// ErrTooManyPendingRequests indicates the in-flight request cap was hit.
	ErrTooManyPendingRequests = errors.New("canvaslink: too many pending requests")

	// ErrNotJoined indicates a send into a channel the endpoint is not a
	// member of.
	ErrNotJoined = errors.New("canvaslink: channel not joined")
)

// TransportError reports a connection that never established, or that closed
// or errored while a request was outstanding.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport error during %s", e.Op)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that no reply arrived within the deadline. The
// pending registry entry has already been released when this surfaces.
type TimeoutError struct {
	Command       string
	CorrelationID string
	Timeout       time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %q timed out after %v (correlation id %s)", e.Command, e.Timeout, e.CorrelationID)
}

// RemoteError carries a failure reported by the remote executor. Message is
// surfaced verbatim.
type RemoteError struct {
	Command       string
	CorrelationID string
	Message       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error for %q: %s", e.Command, e.Message)
}

// ProtocolError reports a malformed envelope or a relay protocol violation.
// Terminal only for the offending message, never for the connection.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsTransportFailure reports whether err is (or wraps) a TransportError.
func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRemote reports whether err is (or wraps) a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
