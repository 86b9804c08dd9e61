package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/luma/sonic/protocol"
)

// await reads until the terminal reply to spec arrives, following PENDING
// replies to their EVENT. Events for other ids are logged and dropped.
func (ch *Channel) await(ctx context.Context, conn *Conn, spec commandSpec, until time.Time) (*protocol.Response, error) {
	pendingID := ""

	for {
		resp, err := conn.Receive(ctx, until)
		if err != nil {
			return nil, err
		}

		switch resp.Kind() {
		case protocol.KindErr:
			return nil, &ServerError{Command: spec.name, Message: resp.Message}

		case protocol.KindPending:
			if spec.reply != replyList || pendingID != "" {
				conn.Close()
				return nil, unexpected(resp, "a terminal reply")
			}

			pendingID = resp.ID()

		case protocol.KindEvent:
			if spec.reply == replyList && resp.EventName() == spec.name &&
				(pendingID == "" || resp.ID() == pendingID) {
				return resp, nil
			}

			ch.log.Warn("Dropping event that matches no pending request",
				zap.String("event", string(resp.EventName())),
				zap.String("id", resp.ID()),
				zap.String("pending", pendingID))

		default:
			if pendingID != "" || !spec.expects(resp) {
				conn.Close()
				return nil, unexpected(resp, "the reply to "+string(spec.name))
			}

			return resp, nil
		}
	}
}

// count extracts the integer carried by a replyCount response. A bare OK
// counts as zero.
func count(resp *protocol.Response) (int, error) {
	if len(resp.Args) == 0 {
		return 0, nil
	}

	return resp.Int(0)
}

// list extracts the results of a replyList response.
func list(resp *protocol.Response) []string {
	var out []string

	if resp.Type == protocol.RespEvent {
		out = resp.EventPayload()
	} else {
		out = resp.Args
	}

	if out == nil {
		return []string{}
	}

	return out
}

// info extracts the name(value) pairs of an INFO response.
func info(resp *protocol.Response) map[string]string {
	out := make(map[string]string, len(resp.Args))

	for _, arg := range resp.Args {
		if name, value, ok := protocol.ParseOption(arg); ok {
			out[name] = value
			continue
		}

		out[arg] = ""
	}

	return out
}
