package client

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sonic/protocol"
)

// DefaultBufferSize is assumed when STARTED does not advertise a buffer size.
const DefaultBufferSize = 20000

// Session is what a successful START negotiated.
type Session struct {
	Mode protocol.Mode

	// Greeting is the free text the server sent with CONNECTED, it names the
	// server and its version.
	Greeting string

	// Protocol is the protocol revision the server speaks, zero if it did
	// not say.
	Protocol int

	// BufferSize is the largest frame, in bytes, the server accepts.
	BufferSize int
}

// start runs the START exchange on a freshly dialed connection. The
// connection is closed if the exchange fails.
func (c *Conn) start(ctx context.Context, mode protocol.Mode, password string, timeout time.Duration) (*Session, error) {
	if c.State() != Connected {
		return nil, &IOError{Op: "start", Err: errNotConnected(c.State())}
	}

	until := deadline(ctx, timeout)

	// The server speaks first
	greeting, err := c.Receive(ctx, until)
	if err != nil {
		return nil, err
	}

	if greeting.Type != protocol.RespConnected {
		c.Close()
		return nil, &ProtocolError{Line: greeting.Raw, Err: ErrUnexpectedGreeting}
	}

	if err := c.Send(ctx, protocol.START, string(mode), password); err != nil {
		return nil, err
	}

	resp, err := c.Receive(ctx, until)
	if err != nil {
		return nil, err
	}

	switch resp.Type {
	case protocol.RespStarted:
		session := parseStarted(resp)
		session.Mode = mode
		session.Greeting = greeting.Message

		if !c.setState(Connected, Started) {
			return nil, &IOError{Op: "start", Err: errNotConnected(c.State())}
		}

		c.log.Debug("Started",
			zap.String("mode", string(mode)),
			zap.Int("protocol", session.Protocol),
			zap.Int("bufferSize", session.BufferSize))

		return session, nil

	case protocol.RespErr:
		c.Close()
		return nil, &AuthError{Mode: mode, Reason: resp.Message}

	default:
		c.Close()
		return nil, unexpected(resp, string(protocol.RespStarted))
	}
}

// parseStarted understands both `STARTED <buffer_size>` and
// `STARTED <mode> protocol(<n>) buffer(<n>)`.
func parseStarted(resp *protocol.Response) *Session {
	session := &Session{BufferSize: DefaultBufferSize}
	sawBuffer := false

	for _, arg := range resp.Args {
		if name, n, err := protocol.ParseIntOption(arg); err == nil {
			switch name {
			case "protocol":
				session.Protocol = n
			case "buffer":
				session.BufferSize = n
				sawBuffer = true
			}
			continue
		}

		if n, err := strconv.Atoi(arg); err == nil && !sawBuffer && n > 0 {
			session.BufferSize = n
			sawBuffer = true
		}
	}

	return session
}

type errNotConnected ConnState

func (e errNotConnected) Error() string {
	return "connection is " + ConnState(e).String() + ", not connected"
}
