package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyFrame        = errors.New("Frame is empty")
	ErrUnknownResponse   = errors.New("Unknown response could not be parsed")
	ErrUnknownCommand    = errors.New("Unknown command could not be parsed")
	ErrUnterminatedQuote = errors.New("Argument quote is never closed")
	ErrLineTooLong       = errors.New("Frame exceeds the maximum line length")
	ErrMissingEventID    = errors.New("Event or pending response is missing its id")
)

// ProtocolError is returned when a frame cannot be understood. The
// connection it was read from can no longer be trusted.
type ProtocolError struct {
	Line string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v (frame %q)", e.Err, e.Line)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ReadLine reads a single frame from r. The returned line has its trailing
// "\n" and optional "\r" removed. A line cut short by EOF is an error, never a
// frame.
//
// Lines longer than max bytes fail with ErrLineTooLong; a max of zero or less
// leaves the length unbounded.
func ReadLine(r *bufio.Reader, max int) ([]byte, error) {
	var line []byte

	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)

		if max > 0 && len(bytes.TrimRight(line, "\r\n")) > max {
			return nil, &ProtocolError{Line: string(line[:max]), Err: ErrLineTooLong}
		}

		if err == nil {
			break
		}

		if err != bufio.ErrBufferFull {
			return nil, err
		}
	}

	return RemoveTrailingCR(line[:len(line)-1]), nil
}

// DecodeResponse parses a single response line.
func DecodeResponse(line []byte) (*Response, error) {
	line = RemoveTrailingCR(bytes.TrimSuffix(line, []byte("\n")))
	raw := string(line)

	if len(bytes.TrimSpace(line)) == 0 {
		return nil, &ProtocolError{Line: raw, Err: ErrEmptyFrame}
	}

	keyword, payload := splitKeyword(raw)

	respType, ok := responseTypes[keyword]
	if !ok {
		return nil, &ProtocolError{Line: raw, Err: ErrUnknownResponse}
	}

	resp := &Response{Type: respType, Raw: raw}

	switch respType {
	case RespErr:
		// <reason> is kept verbatim, it is meant for humans.
		resp.Message = payload
		return resp, nil

	case RespConnected:
		// The greeting is free text, e.g. "<sonic-server v1.4.9>".
		resp.Message = payload
		resp.Args = strings.Fields(payload)
		return resp, nil
	}

	args, err := Tokenize(payload)
	if err != nil {
		return nil, &ProtocolError{Line: raw, Err: err}
	}
	resp.Args = args

	switch respType {
	case RespPending:
		if len(args) < 1 {
			return nil, &ProtocolError{Line: raw, Err: ErrMissingEventID}
		}

	case RespEvent:
		if len(args) < 2 {
			return nil, &ProtocolError{Line: raw, Err: ErrMissingEventID}
		}
	}

	return resp, nil
}

// DecodeRequest parses a single request line, as received by a server.
func DecodeRequest(line []byte) (*Request, error) {
	line = RemoveTrailingCR(bytes.TrimSuffix(line, []byte("\n")))
	raw := string(line)

	if len(bytes.TrimSpace(line)) == 0 {
		return nil, &ProtocolError{Line: raw, Err: ErrEmptyFrame}
	}

	keyword, payload := splitKeyword(raw)
	if keyword == "" || strings.ToUpper(keyword) != keyword {
		return nil, &ProtocolError{Line: raw, Err: ErrUnknownCommand}
	}

	tokens, err := Tokens(payload)
	if err != nil {
		return nil, &ProtocolError{Line: raw, Err: err}
	}

	req := &Request{
		Command: Command(keyword),
		Args:    make([]string, 0, len(tokens)),
		quoted:  make([]bool, 0, len(tokens)),
	}

	for _, token := range tokens {
		req.Args = append(req.Args, token.Value)
		req.quoted = append(req.quoted, token.Quoted)
	}

	return req, nil
}

func splitKeyword(raw string) (string, string) {
	raw = strings.TrimLeft(raw, " ")

	i := strings.IndexByte(raw, ' ')
	if i < 0 {
		return raw, ""
	}

	return raw[:i], raw[i+1:]
}

func RemoveTrailingCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		// Remove the optional trailing \r
		return data[:len(data)-1]
	}

	return data
}
