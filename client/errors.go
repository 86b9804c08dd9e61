package client

import (
	"errors"
	"fmt"

	"github.com/luma/sonic/protocol"
)

// ErrClosed matches, via errors.Is, any StateError raised on a closed channel.
var ErrClosed = errors.New("sonic: channel is closed")

// ProtocolError is returned when a frame from the server cannot be understood
// or is not the frame the exchange called for. The connection is closed.
type ProtocolError = protocol.ProtocolError

var (
	ErrUnexpectedGreeting = errors.New("server did not greet with CONNECTED")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// ConnectError is returned when the TCP connection cannot be established.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("sonic: failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError is returned when the server rejects START.
type AuthError struct {
	Mode   protocol.Mode
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sonic: server refused to start %s channel: %s", e.Mode, e.Reason)
}

// StateError is returned when an operation is attempted in a channel state
// that does not allow it.
type StateError struct {
	Op    string
	State ChannelState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("sonic: invalid transition: cannot %s on a %s channel", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrClosed && e.State == ChannelClosed
}

// IOError is returned when the socket fails mid-session. The connection is
// closed.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sonic: %s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TimeoutError is returned when a call outlives its deadline. The connection
// is closed since the late reply would desynchronize the stream.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("sonic: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Timeout() bool { return true }

// ServerError is a well formed ERR reply. The channel stays usable.
type ServerError struct {
	Command protocol.Command
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("sonic: %s rejected: %s", e.Command, e.Message)
}

// ValidationError is returned before anything is sent when an argument can
// never be accepted by the server.
type ValidationError struct {
	Command protocol.Command
	Field   string
	Value   string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sonic: invalid %s for %s (%q): %s", e.Field, e.Command, e.Value, e.Reason)
}

// IsFatal reports whether err left the channel closed, meaning a new channel
// has to be started before trying again.
func IsFatal(err error) bool {
	var (
		ioErr      *IOError
		timeoutErr *TimeoutError
		protoErr   *ProtocolError
		connErr    *ConnectError
		authErr    *AuthError
	)

	switch {
	case errors.As(err, &ioErr),
		errors.As(err, &timeoutErr),
		errors.As(err, &protoErr),
		errors.As(err, &connErr),
		errors.As(err, &authErr),
		errors.Is(err, ErrClosed):
		return true
	}

	return false
}

func unexpected(resp *protocol.Response, want string) error {
	return &ProtocolError{
		Line: resp.Raw,
		Err:  fmt.Errorf("%w: wanted %s, got %s", ErrUnexpectedResponse, want, resp.Type),
	}
}
