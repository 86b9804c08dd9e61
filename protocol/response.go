package protocol

import (
	"fmt"
	"strconv"
)

// Kind groups response types by how a client has to treat them.
type Kind int

const (
	KindOk Kind = iota
	KindPending
	KindErr
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindPending:
		return "pending"
	case KindErr:
		return "err"
	case KindEvent:
		return "event"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Response struct {
	Type ResponseType

	// Args is the tokenized payload. It is empty for ERR responses.
	Args []string

	// Message is the untokenized payload of ERR and CONNECTED responses.
	Message string

	// Raw is the frame as received, without its terminator.
	Raw string
}

// Kind classifies the response.
func (r *Response) Kind() Kind {
	switch r.Type {
	case RespErr:
		return KindErr
	case RespPending:
		return KindPending
	case RespEvent:
		return KindEvent
	default:
		return KindOk
	}
}

// ID returns the correlation id of a PENDING or EVENT response.
func (r *Response) ID() string {
	switch r.Type {
	case RespPending:
		return r.Args[0]
	case RespEvent:
		return r.Args[1]
	}

	return ""
}

// EventName returns the command an EVENT completes, e.g. QUERY.
func (r *Response) EventName() Command {
	if r.Type != RespEvent {
		return ""
	}

	return Command(r.Args[0])
}

// EventPayload returns the results carried by an EVENT.
func (r *Response) EventPayload() []string {
	if r.Type != RespEvent {
		return nil
	}

	return r.Args[2:]
}

// Int parses the i-th argument as an integer.
func (r *Response) Int(i int) (int, error) {
	if i < 0 || i >= len(r.Args) {
		return 0, &ProtocolError{Line: r.Raw, Err: fmt.Errorf("missing integer argument %d", i)}
	}

	n, err := strconv.Atoi(r.Args[i])
	if err != nil {
		return 0, &ProtocolError{Line: r.Raw, Err: err}
	}

	return n, nil
}
