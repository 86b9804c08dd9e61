package client

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sonic/protocol"
)

// Channel is a mode bound session over a single connection. The mode decides
// which commands it accepts. IngestChannel, SearchChannel and ControlChannel
// wrap it with typed methods.
//
// A Channel carries one command at a time and must not be used from several
// goroutines at once. Close is the exception, it may be called at any time to
// abort a pending call.
type Channel struct {
	mode     protocol.Mode
	opts     Options
	commands commandTable

	mu      sync.Mutex
	conn    *Conn
	session *Session
	closed  bool

	log *zap.Logger
}

func newChannel(mode protocol.Mode, commands commandTable, opts Options) *Channel {
	opts = opts.withDefaults()

	return &Channel{
		mode:     mode,
		opts:     opts,
		commands: commands,
		log:      opts.Log.Named(string(mode)),
	}
}

// Mode is the mode the channel starts in.
func (ch *Channel) Mode() protocol.Mode {
	return ch.mode
}

// Session returns what START negotiated, nil before the channel is started.
func (ch *Channel) Session() *Session {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.session
}

// State returns the channel's current state.
func (ch *Channel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.stateLocked()
}

func (ch *Channel) stateLocked() ChannelState {
	if ch.closed {
		return ChannelClosed
	}

	if ch.conn == nil {
		return ChannelCreated
	}

	switch ch.conn.State() {
	case Started:
		return ChannelReady
	case Closed:
		return ChannelClosed
	default:
		return ChannelCreated
	}
}

// Start connects and runs the START handshake. A failed Start leaves the
// channel Created, a later Start opens a new connection.
func (ch *Channel) Start(ctx context.Context) error {
	ch.mu.Lock()
	if state := ch.stateLocked(); state != ChannelCreated || ch.conn != nil {
		ch.mu.Unlock()
		return &StateError{Op: string(protocol.START), State: state}
	}
	ch.mu.Unlock()

	conn, err := Dial(ctx, ch.opts)
	if err != nil {
		return err
	}

	session, err := conn.start(ctx, ch.mode, ch.opts.Password, ch.opts.ReadTimeout)
	if err != nil {
		conn.Close()
		return err
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		// Closed while we were starting
		conn.Close()
		return &StateError{Op: string(protocol.START), State: ChannelClosed}
	}

	ch.conn = conn
	ch.session = session

	ch.log.Info("Channel started",
		zap.String("addr", ch.opts.Addr()),
		zap.Int("bufferSize", session.BufferSize))

	return nil
}

// Ping checks the server is still answering.
func (ch *Channel) Ping(ctx context.Context) error {
	_, err := ch.call(ctx, protocol.PING, nil, nil)
	return err
}

// Quit ends the session and closes the connection. The channel is closed
// whether or not the server acknowledged.
func (ch *Channel) Quit(ctx context.Context) error {
	_, err := ch.call(ctx, protocol.QUIT, nil, nil)

	return multierr.Append(err, ch.Close())
}

// Close closes the connection without saying goodbye. It is idempotent.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	conn := ch.conn
	ch.closed = true
	ch.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}

// ready returns the connection if the channel may run name.
func (ch *Channel) ready(name protocol.Command) (*Conn, commandSpec, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if state := ch.stateLocked(); state != ChannelReady {
		return nil, commandSpec{}, &StateError{Op: string(name), State: state}
	}

	spec, ok := ch.commands[name]
	if !ok {
		return nil, commandSpec{}, &ValidationError{
			Command: name,
			Field:   "command",
			Value:   string(name),
			Reason:  "not available on a " + string(ch.mode) + " channel",
		}
	}

	return ch.conn, spec, nil
}

// call runs a single command and returns its terminal reply.
func (ch *Channel) call(ctx context.Context, name protocol.Command, args []string, opts []string) (*protocol.Response, error) {
	conn, spec, err := ch.ready(name)
	if err != nil {
		return nil, err
	}

	if err := spec.validate(args, opts); err != nil {
		return nil, err
	}

	timeout := ch.opts.ReadTimeout
	if spec.long {
		timeout = ch.opts.LongTimeout
	}

	if err := conn.write(ctx, name, spec.encode(args, opts)); err != nil {
		return nil, err
	}

	resp, err := ch.await(ctx, conn, spec, deadline(ctx, timeout))
	if err != nil {
		ch.log.Debug("Command failed", zap.String("command", string(name)), zap.Error(err))
		return nil, err
	}

	return resp, nil
}

// fire sends a command without waiting for any reply.
func (ch *Channel) fire(ctx context.Context, name protocol.Command, args []string) error {
	conn, spec, err := ch.ready(name)
	if err != nil {
		return err
	}

	if err := spec.validate(args, nil); err != nil {
		return err
	}

	return conn.write(ctx, name, spec.encode(args, nil))
}

// callCount runs a command answered with a count. A terminal reply without a
// valid count leaves the stream in doubt, so the channel is closed.
func (ch *Channel) callCount(ctx context.Context, name protocol.Command, args []string, opts []string) (int, error) {
	resp, err := ch.call(ctx, name, args, opts)
	if err != nil {
		return 0, err
	}

	n, err := count(resp)
	if err != nil {
		ch.log.Warn("Closing channel after a malformed reply", zap.String("command", string(name)), zap.Error(err))
		ch.Close()
		return 0, err
	}

	return n, nil
}
