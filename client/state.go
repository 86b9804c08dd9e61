package client

import "fmt"

// ConnState is the lifecycle of a single connection.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connected
	Started
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Started:
		return "started"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// ChannelState is the lifecycle of a channel: Created -> Ready -> Closed.
type ChannelState int

const (
	ChannelCreated ChannelState = iota
	ChannelReady
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelCreated:
		return "created"
	case ChannelReady:
		return "ready"
	case ChannelClosed:
		return "closed"
	default:
		return fmt.Sprintf("ChannelState(%d)", int(s))
	}
}
