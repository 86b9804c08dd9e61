package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/sonic/protocol"
)

// TCPConn is a single client session on the server.
type TCPConn struct {
	ctx    context.Context
	conn   net.Conn
	server *TCP

	mode    protocol.Mode
	started bool

	mu         sync.Mutex
	queueOpen  bool
	writeQueue chan []byte

	closeOnce sync.Once
	closeErr  error

	log *zap.Logger
}

func NewTCPConn(
	ctx context.Context,
	conn net.Conn,
	server *TCP,
	log *zap.Logger,
) *TCPConn {
	return &TCPConn{
		ctx:        ctx,
		conn:       conn,
		server:     server,
		queueOpen:  true,
		writeQueue: make(chan []byte, 127),
		log:        log.With(zap.String("remote", conn.RemoteAddr().String())),
	}
}

// Close closes the socket, which ends the read loop.
func (t *TCPConn) Close() error {
	t.closeOnce.Do(func() {
		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = err
		}
	})

	return t.closeErr
}

// Start greets the client and serves it until it quits, the connection
// breaks or the server stops.
func (t *TCPConn) Start() {
	stop := context.AfterFunc(t.ctx, func() { t.Close() })
	defer stop()

	var writeWaiter sync.WaitGroup
	writeWaiter.Add(1)

	go func() {
		defer writeWaiter.Done()
		t.WriteLoop()
	}()

	if err := protocol.WriteResponse(t, protocol.RespConnected, strings.Fields(ServerGreeting)...); err != nil {
		t.log.Warn("Failed to greet", zap.Error(err))
	}

	t.ReadLoop()

	// Let the write loop drain replies to the last request before closing
	t.closeQueue()
	writeWaiter.Wait()

	if err := t.Close(); err != nil {
		t.log.Warn("Failed to close connection cleanly", zap.Error(err))
	}
}

func (t *TCPConn) ReadLoop() {
	log := t.log.Named("readLoop")
	r := bufio.NewReader(t.conn)

	for {
		line, err := protocol.ReadLine(r, t.server.bufferSize)
		if err != nil {
			var protoErr *protocol.ProtocolError
			if errors.As(err, &protoErr) {
				log.Warn("Client frame overflows the buffer", zap.Error(err))
				protocol.WriteError(t, "buffer_overflow")
				return
			}

			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn("Failed to read client request", zap.Error(err))
			}
			return
		}

		if t.server.trace {
			log.Debug("Frame", zap.ByteString("line", line))
		}

		req, err := protocol.DecodeRequest(line)
		if err != nil {
			log.Warn("Failed to parse client request", zap.Error(err))
			protocol.WriteError(t, "invalid_format")
			continue
		}

		t.server.commandsTotal.Add(1)

		if quit := t.handle(req); quit {
			return
		}
	}
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")
	broken := false

	// These are replies to client requests handled by the read loop
	for data := range t.writeQueue {
		if broken {
			continue
		}

		if t.server.trace {
			log.Debug("Frame", zap.ByteString("line", data))
		}

		if _, err := t.conn.Write(data); err != nil {
			log.Warn("Failed to write from write queue", zap.Error(err))
			broken = true
		}
	}
}

// Write queues data for the write loop to write into the connection.
func (t *TCPConn) Write(data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.queueOpen {
		return 0, net.ErrClosed
	}

	t.writeQueue <- append([]byte(nil), data...)

	return len(data), nil
}

func (t *TCPConn) closeQueue() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queueOpen {
		t.queueOpen = false
		close(t.writeQueue)
	}
}
