package client

import (
	"strings"
	"unicode"

	"github.com/luma/sonic/protocol"
)

// argKind says how a positional argument is validated before it is sent.
type argKind int

const (
	// argIdent is a collection, bucket or object name
	argIdent argKind = iota

	// argText is free text, tokenized by the server
	argText

	// argWord is a single word
	argWord

	// argAction is a TRIGGER action
	argAction

	// argPath is a server side path
	argPath
)

// replyShape says which frames terminate a command and what they carry.
type replyShape int

const (
	// replyAck expects one of commandSpec.expect and ignores its payload
	replyAck replyShape = iota

	// replyCount expects OK or RESULT with an optional integer
	replyCount

	// replyList expects PENDING then a matching EVENT, or an immediate list
	replyList

	// replyInfo expects RESULT name(value)...
	replyInfo
)

type commandSpec struct {
	name protocol.Command

	// args are always required, optional may be omitted from the end
	args     []argKind
	optional []argKind

	// fields names every positional argument, for error messages
	fields []string

	// options is the number of trailing NAME(value) options allowed
	options int

	reply  replyShape
	expect []protocol.ResponseType

	// long commands use Options.LongTimeout
	long bool
}

type commandTable map[protocol.Command]commandSpec

func (t commandTable) with(specs ...commandSpec) commandTable {
	out := make(commandTable, len(t)+len(specs))
	for name, spec := range t {
		out[name] = spec
	}

	for _, spec := range specs {
		out[spec.name] = spec
	}

	return out
}

var (
	commonCommands = commandTable{}.with(
		commandSpec{name: protocol.PING, reply: replyAck, expect: []protocol.ResponseType{protocol.RespPong}},
		commandSpec{name: protocol.QUIT, reply: replyAck, expect: []protocol.ResponseType{protocol.RespEnded}},
	)

	ingestCommands = commonCommands.with(
		commandSpec{
			name:    protocol.PUSH,
			args:    []argKind{argIdent, argIdent, argIdent, argText},
			fields:  []string{"collection", "bucket", "object", "text"},
			options: 1,
			reply:   replyCount,
		},
		commandSpec{
			name:    protocol.POP,
			args:    []argKind{argIdent, argIdent, argIdent, argText},
			fields:  []string{"collection", "bucket", "object", "text"},
			options: 1,
			reply:   replyCount,
		},
		commandSpec{
			name:     protocol.COUNT,
			args:     []argKind{argIdent},
			optional: []argKind{argIdent, argIdent},
			fields:   []string{"collection", "bucket", "object"},
			reply:    replyCount,
		},
		commandSpec{
			name:   protocol.FLUSHC,
			args:   []argKind{argIdent},
			fields: []string{"collection"},
			reply:  replyCount,
		},
		commandSpec{
			name:   protocol.FLUSHB,
			args:   []argKind{argIdent, argIdent},
			fields: []string{"collection", "bucket"},
			reply:  replyCount,
		},
		commandSpec{
			name:   protocol.FLUSHO,
			args:   []argKind{argIdent, argIdent, argIdent},
			fields: []string{"collection", "bucket", "object"},
			reply:  replyCount,
		},
	)

	searchCommands = commonCommands.with(
		commandSpec{
			name:    protocol.QUERY,
			args:    []argKind{argIdent, argIdent, argText},
			fields:  []string{"collection", "bucket", "terms"},
			options: 3,
			reply:   replyList,
		},
		commandSpec{
			name:    protocol.SUGGEST,
			args:    []argKind{argIdent, argIdent, argWord},
			fields:  []string{"collection", "bucket", "word"},
			options: 1,
			reply:   replyList,
		},
		commandSpec{
			name:    protocol.LIST,
			args:    []argKind{argIdent, argIdent},
			fields:  []string{"collection", "bucket"},
			options: 2,
			reply:   replyList,
		},
	)

	controlCommands = commonCommands.with(
		commandSpec{
			name:     protocol.TRIGGER,
			args:     []argKind{argAction},
			optional: []argKind{argPath},
			fields:   []string{"action", "path"},
			reply:    replyAck,
			expect:   []protocol.ResponseType{protocol.RespOk},
			long:     true,
		},
		commandSpec{
			name:  protocol.INFO,
			reply: replyInfo,
		},
	)
)

// validate checks args and opts against the spec without touching the
// network.
func (s commandSpec) validate(args []string, opts []string) error {
	if len(args) < len(s.args) || len(args) > len(s.args)+len(s.optional) {
		return &ValidationError{
			Command: s.name,
			Field:   "arguments",
			Value:   strings.Join(args, " "),
			Reason:  "wrong number of arguments",
		}
	}

	if len(opts) > s.options {
		return &ValidationError{
			Command: s.name,
			Field:   "options",
			Value:   strings.Join(opts, " "),
			Reason:  "too many options",
		}
	}

	for i, arg := range args {
		if reason := checkArg(s.kind(i), arg); reason != "" {
			field := "argument"
			if i < len(s.fields) {
				field = s.fields[i]
			}

			return &ValidationError{Command: s.name, Field: field, Value: arg, Reason: reason}
		}
	}

	return nil
}

// kind returns the kind of the i-th positional argument.
func (s commandSpec) kind(i int) argKind {
	if i < len(s.args) {
		return s.args[i]
	}

	return s.optional[i-len(s.args)]
}

// encode renders the request frame. Free text and words are always quoted,
// the server reads them as "<text>".
func (s commandSpec) encode(args []string, opts []string) []byte {
	tokens := make([]string, 0, len(args)+len(opts))

	for i, arg := range args {
		switch s.kind(i) {
		case argText, argWord:
			tokens = append(tokens, protocol.QuoteText(arg))
		default:
			tokens = append(tokens, protocol.Quote(arg))
		}
	}

	for _, opt := range opts {
		tokens = append(tokens, protocol.Quote(opt))
	}

	return protocol.EncodeTokens(s.name, tokens...)
}

func checkArg(kind argKind, arg string) string {
	switch kind {
	case argIdent, argWord, argAction:
		if arg == "" {
			return "must not be empty"
		}

		for _, r := range arg {
			if r == '"' || unicode.IsSpace(r) || unicode.IsControl(r) {
				return "must not contain whitespace, quotes or control characters"
			}
		}

	case argText:
		if strings.TrimSpace(arg) == "" {
			return "must not be empty"
		}

		for _, r := range arg {
			if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
				return "must not contain control characters other than line breaks and tabs"
			}
		}

	case argPath:
		if arg == "" {
			return "must not be empty"
		}

		for _, r := range arg {
			if unicode.IsControl(r) {
				return "must not contain control characters"
			}
		}
	}

	return ""
}

// expects reports whether resp terminates an acknowledged command.
func (s commandSpec) expects(resp *protocol.Response) bool {
	switch s.reply {
	case replyAck:
		for _, t := range s.expect {
			if resp.Type == t {
				return true
			}
		}
		return false

	case replyCount:
		return resp.Type == protocol.RespOk || resp.Type == protocol.RespResult

	case replyList:
		return resp.Type == protocol.RespResult || resp.Type == protocol.RespOk

	case replyInfo:
		return resp.Type == protocol.RespResult
	}

	return false
}
