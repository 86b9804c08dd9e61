package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sonic/protocol"
)

const storeTimeout = 3 * time.Second

// command describes the shape of a request the server accepts.
type command struct {
	args    int
	options []string
	format  string

	// text is the position of the argument that has to be quoted, -1 if none
	text int
}

var commands = map[protocol.Mode]map[protocol.Command]command{
	protocol.ModeIngest: {
		protocol.PUSH:   {args: 4, options: []string{protocol.OptLang}, format: `PUSH <collection> <bucket> <object> "<text>" [LANG(<locale>)]?`, text: 3},
		protocol.POP:    {args: 4, options: []string{protocol.OptLang}, format: `POP <collection> <bucket> <object> "<text>"`, text: 3},
		protocol.COUNT:  {args: 1, format: `COUNT <collection> [<bucket> [<object>]?]?`, text: -1},
		protocol.FLUSHC: {args: 1, format: `FLUSHC <collection>`, text: -1},
		protocol.FLUSHB: {args: 2, format: `FLUSHB <collection> <bucket>`, text: -1},
		protocol.FLUSHO: {args: 3, format: `FLUSHO <collection> <bucket> <object>`, text: -1},
	},
	protocol.ModeSearch: {
		protocol.QUERY:   {args: 3, options: []string{protocol.OptLimit, protocol.OptOffset, protocol.OptLang}, format: `QUERY <collection> <bucket> "<terms>" [LIMIT(<count>)]? [OFFSET(<count>)]? [LANG(<locale>)]?`, text: 2},
		protocol.SUGGEST: {args: 3, options: []string{protocol.OptLimit}, format: `SUGGEST <collection> <bucket> "<word>" [LIMIT(<count>)]?`, text: 2},
		protocol.LIST:    {args: 2, options: []string{protocol.OptLimit, protocol.OptOffset}, format: `LIST <collection> <bucket> [LIMIT(<count>)]? [OFFSET(<count>)]?`, text: -1},
	},
	protocol.ModeControl: {
		protocol.TRIGGER: {args: 1, format: `TRIGGER [<action>]? [<data>]?`, text: -1},
		protocol.INFO:    {args: 0, format: `INFO`, text: -1},
	},
}

// parsed is a request split into positional arguments and options.
type parsed struct {
	args    []string
	extra   []string
	options map[string]string
}

// handle serves a single request. It returns true when the session is over.
func (t *TCPConn) handle(req *protocol.Request) bool {
	switch req.Command {
	case protocol.PING:
		t.reply(protocol.RespPong)
		return false

	case protocol.QUIT:
		t.reply(protocol.RespEnded, "quit")
		return true

	case protocol.START:
		t.start(req)
		return false
	}

	if !t.started {
		t.fail("not_started")
		return false
	}

	cmd, ok := commands[t.mode][req.Command]
	if !ok {
		t.fail("not_recognized")
		return false
	}

	p, err := parse(req, cmd)
	if err != nil {
		t.fail("invalid_format(" + cmd.format + ")")
		return false
	}

	ctx, cancel := context.WithTimeout(t.ctx, storeTimeout)
	defer cancel()

	switch t.mode {
	case protocol.ModeIngest:
		t.ingest(ctx, req.Command, p)
	case protocol.ModeSearch:
		t.search(ctx, req.Command, p)
	case protocol.ModeControl:
		return t.control(ctx, req.Command, p)
	}

	return false
}

func (t *TCPConn) start(req *protocol.Request) {
	if t.started {
		t.fail("already_started")
		return
	}

	mode := protocol.Mode(req.Arg(0))
	if len(req.Args) < 1 || !mode.Valid() {
		t.fail("invalid_mode")
		return
	}

	if t.server.password != "" && req.Arg(1) != t.server.password {
		t.log.Warn("Rejected START", zap.String("mode", string(mode)))
		t.fail("authentication_failed")
		return
	}

	t.mode = mode
	t.started = true

	t.reply(protocol.RespStarted,
		string(mode),
		protocol.IntOption("protocol", ProtocolRevision),
		protocol.IntOption("buffer", t.server.bufferSize))
}

func (t *TCPConn) ingest(ctx context.Context, name protocol.Command, p *parsed) {
	store := t.server.store

	var (
		n   int
		err error
	)

	switch name {
	case protocol.PUSH:
		n, err = store.Push(ctx, p.args[0], p.args[1], p.args[2], p.args[3])
		if err == nil {
			t.reply(protocol.RespOk, strconv.Itoa(n))
			return
		}

	case protocol.POP:
		n, err = store.Pop(ctx, p.args[0], p.args[1], p.args[2], p.args[3])

	case protocol.COUNT:
		bucket, object := "", ""
		if len(p.extra) > 0 {
			bucket = p.extra[0]
		}
		if len(p.extra) > 1 {
			object = p.extra[1]
		}
		n, err = store.Count(ctx, p.args[0], bucket, object)

	case protocol.FLUSHC:
		n, err = store.FlushCollection(ctx, p.args[0])

	case protocol.FLUSHB:
		n, err = store.FlushBucket(ctx, p.args[0], p.args[1])

	case protocol.FLUSHO:
		n, err = store.FlushObject(ctx, p.args[0], p.args[1], p.args[2])
	}

	if err != nil {
		t.fail(errorReason(err))
		return
	}

	t.reply(protocol.RespResult, strconv.Itoa(n))
}

func (t *TCPConn) search(ctx context.Context, name protocol.Command, p *parsed) {
	store := t.server.store

	limit, offset, err := p.page()
	if err != nil {
		t.fail("invalid_meta_value")
		return
	}

	var results []string

	switch name {
	case protocol.QUERY:
		results, err = store.Query(ctx, p.args[0], p.args[1], p.args[2], limit, offset)
	case protocol.SUGGEST:
		results, err = store.Suggest(ctx, p.args[0], p.args[1], p.args[2], limit)
	case protocol.LIST:
		results, err = store.List(ctx, p.args[0], p.args[1], limit, offset)
	}

	if err != nil {
		t.fail(errorReason(err))
		return
	}

	id := eventID()
	t.reply(protocol.RespPending, id)
	t.reply(protocol.RespEvent, append([]string{string(name), id}, results...)...)
}

// control returns true when the server is shutting down.
func (t *TCPConn) control(ctx context.Context, name protocol.Command, p *parsed) bool {
	store := t.server.store

	if name == protocol.INFO {
		serverStats := t.server.Stats()
		storeStats := store.Stats()

		t.reply(protocol.RespResult,
			protocol.IntOption("uptime", int(serverStats.Uptime.Seconds())),
			protocol.IntOption("clients_connected", int(serverStats.ClientsConnected)),
			protocol.IntOption("commands_total", int(serverStats.CommandsTotal)),
			protocol.IntOption("collections", storeStats.Collections),
			protocol.IntOption("buckets", storeStats.Buckets),
			protocol.IntOption("objects", storeStats.Objects),
			protocol.IntOption("terms", storeStats.Terms))
		return false
	}

	action := strings.ToLower(p.args[0])
	path := ""
	if len(p.extra) > 0 {
		path = p.extra[0]
	}

	var err error

	switch action {
	case protocol.TriggerConsolidate:
		err = store.Consolidate(ctx)

	case protocol.TriggerBackup:
		if path == "" {
			t.fail("invalid_format(" + commands[protocol.ModeControl][protocol.TRIGGER].format + ")")
			return false
		}
		err = store.Backup(path)

	case protocol.TriggerRestore:
		if path == "" {
			t.fail("invalid_format(" + commands[protocol.ModeControl][protocol.TRIGGER].format + ")")
			return false
		}
		err = store.Restore(path)

	case protocol.TriggerShutdown:
		t.log.Info("Shutdown triggered by client")
		t.server.shutdown()
		return true

	default:
		t.fail("invalid_action")
		return false
	}

	if err != nil {
		t.log.Warn("Trigger failed", zap.String("action", action), zap.Error(err))
		t.fail(errorReason(err))
		return false
	}

	t.reply(protocol.RespOk)
	return false
}

// parse splits req into the command's positional arguments, optional extra
// positional arguments and trailing NAME(value) options.
func parse(req *protocol.Request, cmd command) (*parsed, error) {
	if len(req.Args) < cmd.args {
		return nil, fmt.Errorf("%s needs %d arguments, got %d", req.Command, cmd.args, len(req.Args))
	}

	if cmd.text >= 0 && !req.Quoted(cmd.text) {
		return nil, fmt.Errorf("%s text must be quoted", req.Command)
	}

	p := &parsed{
		args:    req.Args[:cmd.args],
		options: make(map[string]string),
	}

	for _, arg := range req.Args[cmd.args:] {
		if name, value, ok := protocol.ParseOption(arg); ok && allowed(cmd.options, name) {
			p.options[name] = value
			continue
		}

		if len(p.options) > 0 {
			return nil, fmt.Errorf("positional argument %q after options", arg)
		}

		p.extra = append(p.extra, arg)
	}

	// COUNT and TRIGGER are the only commands with optional positional
	// arguments
	maxExtra := 0
	switch req.Command {
	case protocol.COUNT:
		maxExtra = 2
	case protocol.TRIGGER:
		maxExtra = 1
	}

	if len(p.extra) > maxExtra {
		return nil, fmt.Errorf("%s takes at most %d arguments", req.Command, cmd.args+maxExtra)
	}

	return p, nil
}

func (p *parsed) page() (limit, offset int, err error) {
	for name, dst := range map[string]*int{protocol.OptLimit: &limit, protocol.OptOffset: &offset} {
		value, ok := p.options[name]
		if !ok {
			continue
		}

		if _, *dst, err = protocol.ParseIntOption(protocol.Option(name, value)); err != nil {
			return 0, 0, err
		}
	}

	return limit, offset, nil
}

func allowed(options []string, name string) bool {
	for _, option := range options {
		if option == name {
			return true
		}
	}

	return false
}

func (t *TCPConn) reply(respType protocol.ResponseType, args ...string) {
	if err := protocol.WriteResponse(t, respType, args...); err != nil {
		t.log.Warn("Failed to reply", zap.String("type", string(respType)), zap.Error(err))
	}
}

func (t *TCPConn) fail(reason string) {
	if err := protocol.WriteError(t, reason); err != nil {
		t.log.Warn("Failed to reply with error", zap.String("reason", reason), zap.Error(err))
	}
}

// errorReason turns a store error into a single token reason.
func errorReason(err error) string {
	return "internal_error(" + strings.ReplaceAll(err.Error(), " ", "_") + ")"
}

const eventIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// eventID returns the 8 character id correlating PENDING with its EVENT.
func eventID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}

	for i, b := range buf {
		buf[i] = eventIDAlphabet[int(b)%len(eventIDAlphabet)]
	}

	return string(buf)
}
