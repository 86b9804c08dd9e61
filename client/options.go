package client

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHost         = "localhost"
	DefaultPort         = 1491
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second

	// DefaultMaxLineSize bounds a single response frame.
	DefaultMaxLineSize = 1 << 20

	// NoTimeout disables a per-call timeout, leaving only the context's.
	NoTimeout time.Duration = -1
)

type Options struct {
	// Host of the server
	Host string

	// Port of the server's channel listener
	Port int

	// Password sent once with START
	Password string

	// DialTimeout bounds the TCP connect
	DialTimeout time.Duration

	// ReadTimeout bounds the wait for the reply of a single call, pending
	// events included. NoTimeout disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a single frame. NoTimeout disables it.
	WriteTimeout time.Duration

	// LongTimeout replaces ReadTimeout for administrative triggers such as
	// consolidate, backup and restore. Zero disables it.
	LongTimeout time.Duration

	// MaxLineSize bounds a single response frame
	MaxLineSize int

	Log *zap.Logger
}

// Addr is the host:port the options point at.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}

	if o.Port == 0 {
		o.Port = DefaultPort
	}

	if o.DialTimeout == 0 {
		o.DialTimeout = DefaultDialTimeout
	}

	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}

	if o.WriteTimeout == 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}

	if o.MaxLineSize <= 0 {
		o.MaxLineSize = DefaultMaxLineSize
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}
