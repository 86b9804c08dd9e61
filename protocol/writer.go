package protocol

import (
	"bytes"
	"io"
)

var (
	Terminal = []byte("\n")
)

// EncodeRequest renders a command and its arguments as a single frame,
// terminator included.
func EncodeRequest(cmd Command, args ...string) []byte {
	return encodeLine(string(cmd), args)
}

// EncodeTokens renders a command and arguments that are already quoted, see
// Quote and QuoteText, as a single frame.
func EncodeTokens(cmd Command, tokens ...string) []byte {
	var b bytes.Buffer
	b.WriteString(string(cmd))

	for _, token := range tokens {
		b.WriteByte(' ')
		b.WriteString(token)
	}

	b.Write(Terminal)
	return b.Bytes()
}

// WriteRequest writes a single request frame to w.
func WriteRequest(w io.Writer, cmd Command, args ...string) error {
	_, err := w.Write(EncodeRequest(cmd, args...))
	return err
}

// WriteResponse writes a single response frame to w.
func WriteResponse(w io.Writer, respType ResponseType, args ...string) error {
	_, err := w.Write(encodeLine(string(respType), args))
	return err
}

// WriteError writes an ERR frame. The message is written untouched, minus any
// line breaks that would split the frame.
func WriteError(w io.Writer, errMsg string) error {
	var b bytes.Buffer
	b.WriteString(string(RespErr))
	b.WriteByte(' ')
	for _, r := range errMsg {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		b.WriteRune(r)
	}
	b.Write(Terminal)

	_, err := w.Write(b.Bytes())
	return err
}

func encodeLine(keyword string, args []string) []byte {
	tokens := make([]string, 0, len(args))
	for _, arg := range args {
		tokens = append(tokens, Quote(arg))
	}

	return EncodeTokens(Command(keyword), tokens...)
}
