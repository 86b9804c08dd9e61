package transport

import (
	"github.com/luma/sonic/storage"
	"go.uber.org/zap"
)

const (
	DefaultBufferSize = 20000
	ProtocolRevision  = 1
	ServerGreeting    = "<sonic-server v1.4.9>"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on, zero picks a free port (see TCP.Addr)
	Port int

	// Password every START must present
	Password string

	// Reuseport controls setting SO_REUSEPORT, needed for NumListeners > 1
	Reuseport bool

	// NumListeners accepting on the same port, defaults to the number of CPUs
	// with Reuseport and to one without
	NumListeners int

	// BufferSize is the largest frame accepted from a client, advertised in
	// STARTED
	BufferSize int

	// Trace will log every frame. This is only useful in local debugging
	Trace bool

	Store storage.Store

	Log *zap.Logger
}
