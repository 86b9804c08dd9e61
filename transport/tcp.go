package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sonic/storage"
)

// Stats are the server counters reported by INFO.
type Stats struct {
	Uptime           time.Duration `json:"uptime"`
	ClientsConnected int64         `json:"clientsConnected"`
	CommandsTotal    int64         `json:"commandsTotal"`
}

// TCP is a development server speaking the Sonic channel protocol on top of
// a storage.Store.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	listeners    []*TCPListener
	reuseport    bool

	password   string
	bufferSize int
	store      storage.Store

	started          time.Time
	clientsConnected atomic.Int64
	commandsTotal    atomic.Int64

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
	doneChan  chan struct{}

	log   *zap.Logger
	trace bool
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = 1
		if options.Reuseport {
			numListeners = runtime.NumCPU()
		}
	}

	if !options.Reuseport {
		// Without SO_REUSEPORT a second listener cannot bind the port
		numListeners = 1
	}

	bufferSize := options.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		reuseport:    options.Reuseport,
		password:     options.Password,
		bufferSize:   bufferSize,
		doneChan:     make(chan struct{}),
		trace:        options.Trace,
		store:        options.Store,
		log:          log,
	}
}

// Start binds every listener before returning, so Addr is usable as soon as
// Start succeeds.
func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel
	w.started = time.Now()

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		if err := w.startListener(ctx); err != nil {
			return multierr.Append(err, w.Close())
		}
	}

	return nil
}

// Addr is the address the server listens on, with the port resolved once
// Start has returned.
func (w *TCP) Addr() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.addr
}

func (t *TCP) Store() storage.Store {
	return t.store
}

// Stats returns the server counters.
func (t *TCP) Stats() Stats {
	return Stats{
		Uptime:           time.Since(t.started),
		ClientsConnected: t.clientsConnected.Load(),
		CommandsTotal:    t.commandsTotal.Load(),
	}
}

// Done is closed once the server has shut down, whether through Close or a
// shutdown trigger.
func (t *TCP) Done() <-chan struct{} {
	return t.doneChan
}

func (w *TCP) startListener(ctx context.Context) error {
	listener, err := w.listen()
	if err != nil {
		return err
	}

	w.mu.Lock()
	// Resolve port 0 so the other listeners share the port picked here
	w.addr = listener.Addr().String()
	tcpListener := NewTCPListener(
		ctx,
		listener,
		w,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)
	w.listeners = append(w.listeners, tcpListener)
	w.mu.Unlock()

	w.stopWaiter.Add(1)

	go func() {
		defer w.stopWaiter.Done()

		if err := tcpListener.Listen(); err != nil {
			w.log.Error("Failed to listen", zap.Error(err))
		}
	}()

	return nil
}

func (w *TCP) listen() (net.Listener, error) {
	if w.reuseport {
		return reuseport.Listen("tcp", w.Addr())
	}

	return net.Listen("tcp", w.Addr())
}

// Close immediately closes all active listeners and connections.
func (w *TCP) Close() error {
	w.closeOnce.Do(func() {
		w.log.Info("Stopping TCP server")

		if w.cancel != nil {
			w.cancel()
		}

		w.mu.Lock()
		listeners := w.listeners
		w.mu.Unlock()

		// Tell listeners to stop
		for _, listener := range listeners {
			w.closeErr = multierr.Append(w.closeErr, listener.Close())
		}

		w.stopWaiter.Wait()
		w.log.Info("TCP server stopped")

		close(w.doneChan)
	})

	return w.closeErr
}

// shutdown is the shutdown trigger, it must not block the connection that
// asked for it.
func (w *TCP) shutdown() {
	go func() {
		if err := w.Close(); err != nil {
			w.log.Warn("TCP server did not shut down cleanly", zap.Error(err))
		}
	}()
}

type TCPListener struct {
	ctx context.Context

	listener net.Listener
	server   *TCP
	log      *zap.Logger

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
}

func NewTCPListener(
	ctx context.Context,
	listener net.Listener,
	server *TCP,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		listener:    listener,
		server:      server,
		activeConns: make(map[*TCPConn]struct{}),
		log:         log,
	}
}

func (t *TCPListener) Close() (err error) {
	if lerr := t.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
		err = multierr.Append(err, lerr)
	}

	t.mu.Lock()
	conns := make([]*TCPConn, 0, len(t.activeConns))
	for conn := range t.activeConns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}

	return err
}

func (t *TCPListener) Listen() error {
	var loopWaiter sync.WaitGroup

	defer func() {
		t.log.Info("Waiting for connections to stop")
		loopWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || t.ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return nil
			}

			return err
		}

		tcpConn := NewTCPConn(t.ctx, conn, t.server, t.log.Named("conn"))
		t.addConn(tcpConn)

		loopWaiter.Add(1)
		go func() {
			defer loopWaiter.Done()
			defer t.removeConn(tcpConn)

			tcpConn.Start()
		}()
	}
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
	t.server.clientsConnected.Add(1)
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.activeConns[conn]; ok {
		delete(t.activeConns, conn)
		t.server.clientsConnected.Add(-1)
	}
}
