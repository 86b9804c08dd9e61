package protocol

type Command string

const (
	START   Command = "START"
	QUIT    Command = "QUIT"
	PING    Command = "PING"
	PUSH    Command = "PUSH"
	POP     Command = "POP"
	COUNT   Command = "COUNT"
	FLUSHC  Command = "FLUSHC"
	FLUSHB  Command = "FLUSHB"
	FLUSHO  Command = "FLUSHO"
	QUERY   Command = "QUERY"
	SUGGEST Command = "SUGGEST"
	LIST    Command = "LIST"
	TRIGGER Command = "TRIGGER"
	INFO    Command = "INFO"
)

type ResponseType string

const (
	RespConnected ResponseType = "CONNECTED"
	RespStarted   ResponseType = "STARTED"
	RespOk        ResponseType = "OK"
	RespPong      ResponseType = "PONG"
	RespEnded     ResponseType = "ENDED"
	RespResult    ResponseType = "RESULT"
	RespPending   ResponseType = "PENDING"
	RespEvent     ResponseType = "EVENT"
	RespErr       ResponseType = "ERR"
)

var responseTypes = map[string]ResponseType{
	string(RespConnected): RespConnected,
	string(RespStarted):   RespStarted,
	string(RespOk):        RespOk,
	string(RespPong):      RespPong,
	string(RespEnded):     RespEnded,
	string(RespResult):    RespResult,
	string(RespPending):   RespPending,
	string(RespEvent):     RespEvent,
	string(RespErr):       RespErr,
}

// Mode is the channel mode selected by START.
type Mode string

const (
	ModeIngest  Mode = "ingest"
	ModeSearch  Mode = "search"
	ModeControl Mode = "control"
)

// Valid reports whether m is one of the three modes a server accepts.
func (m Mode) Valid() bool {
	switch m {
	case ModeIngest, ModeSearch, ModeControl:
		return true
	}

	return false
}

// Trigger actions accepted by TRIGGER on a control channel.
const (
	TriggerConsolidate = "consolidate"
	TriggerBackup      = "backup"
	TriggerRestore     = "restore"
	TriggerShutdown    = "shutdown"
)
