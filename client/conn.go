package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sonic/protocol"
)

// Conn is a single connection to a Sonic server. It carries one request at a
// time and is not safe for concurrent use, with the exception of Close.
type Conn struct {
	addr string

	conn net.Conn
	r    *bufio.Reader

	state atomic.Int32

	closeOnce sync.Once
	closeErr  error

	writeTimeout time.Duration
	maxLineSize  int

	log *zap.Logger
}

// Dial connects to the server described by opts. The server greeting is left
// unread, see Start.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	addr := opts.Addr()

	dialer := net.Dialer{Timeout: opts.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	c := newConn(conn, opts)
	c.log.Debug("Connected")

	return c, nil
}

func newConn(conn net.Conn, opts Options) *Conn {
	c := &Conn{
		addr:         conn.RemoteAddr().String(),
		conn:         conn,
		r:            bufio.NewReader(conn),
		writeTimeout: opts.WriteTimeout,
		maxLineSize:  opts.MaxLineSize,
		log:          opts.Log.Named("conn").With(zap.String("addr", conn.RemoteAddr().String())),
	}
	c.state.Store(int32(Connected))

	return c
}

// State returns the connection's current state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Conn) setState(from, to ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Send writes a single request frame, flushing it immediately.
func (c *Conn) Send(ctx context.Context, cmd protocol.Command, args ...string) error {
	return c.write(ctx, cmd, protocol.EncodeRequest(cmd, args...))
}

// write sends a frame already rendered for cmd.
func (c *Conn) write(ctx context.Context, cmd protocol.Command, frame []byte) error {
	op := "send " + string(cmd)

	if c.State() == Closed {
		return &IOError{Op: op, Err: net.ErrClosed}
	}

	stop := c.closeOnDone(ctx)
	defer stop()

	if err := c.conn.SetWriteDeadline(deadline(ctx, c.writeTimeout)); err != nil {
		return c.fail(ctx, op, err)
	}

	if _, err := c.conn.Write(frame); err != nil {
		return c.fail(ctx, op, err)
	}

	c.log.Debug("Sent", zap.String("command", string(cmd)), zap.Int("bytes", len(frame)))

	return nil
}

// Receive blocks until a full frame has arrived or until the deadline. A zero
// deadline waits for as long as ctx allows.
func (c *Conn) Receive(ctx context.Context, until time.Time) (*protocol.Response, error) {
	if c.State() == Closed {
		return nil, &IOError{Op: "receive", Err: net.ErrClosed}
	}

	stop := c.closeOnDone(ctx)
	defer stop()

	if err := c.conn.SetReadDeadline(until); err != nil {
		return nil, c.fail(ctx, "receive", err)
	}

	line, err := protocol.ReadLine(c.r, c.maxLineSize)
	if err != nil {
		var protoErr *ProtocolError
		if errors.As(err, &protoErr) {
			c.Close()
			return nil, err
		}

		return nil, c.fail(ctx, "receive", err)
	}

	resp, err := protocol.DecodeResponse(line)
	if err != nil {
		// Alignment of the stream can no longer be trusted
		c.Close()
		return nil, err
	}

	c.log.Debug("Received", zap.String("type", string(resp.Type)))

	return resp, nil
}

// Close closes the socket. It is idempotent and may be called from any
// goroutine, which unblocks a pending Receive.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closed))
		c.closeErr = c.conn.Close()
		c.log.Debug("Closed")
	})

	return c.closeErr
}

// closeOnDone closes the connection if ctx is done before the returned stop
// function is called.
func (c *Conn) closeOnDone(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		c.Close()
	})
}

// fail closes the connection and translates err into an IOError or
// TimeoutError.
func (c *Conn) fail(ctx context.Context, op string, err error) error {
	c.Close()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Err: ctxErr}
		}

		return &IOError{Op: op, Err: ctxErr}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}

	return &IOError{Op: op, Err: err}
}

// deadline returns the earliest of ctx's deadline and now+timeout. A zero time
// means no deadline; timeout <= 0 leaves only ctx's.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time

	if timeout > 0 {
		d = time.Now().Add(timeout)
	}

	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}

	return d
}
