package client

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/luma/sonic/protocol"
)

// IngestChannel writes to the index.
type IngestChannel struct {
	*Channel
}

// NewIngestChannel returns an ingest channel in the Created state.
func NewIngestChannel(opts Options) *IngestChannel {
	return &IngestChannel{newChannel(protocol.ModeIngest, ingestCommands, opts)}
}

// StartIngest returns a started ingest channel.
func StartIngest(ctx context.Context, opts Options) (*IngestChannel, error) {
	ch := NewIngestChannel(opts)
	if err := ch.Start(ctx); err != nil {
		return nil, err
	}

	return ch, nil
}

type PushRequest struct {
	Collection string
	Bucket     string
	Object     string
	Text       string

	// Lang is an optional ISO 639-3 code, e.g. "eng"
	Lang string
}

// Push indexes req.Text for the object and returns the number of terms the
// server reports as indexed. Text that does not fit the negotiated buffer is
// pushed in several chunks.
func (ch *IngestChannel) Push(ctx context.Context, req PushRequest) (int, error) {
	args := []string{req.Collection, req.Bucket, req.Object}

	var opts []string
	if req.Lang != "" {
		opts = append(opts, protocol.Option(protocol.OptLang, req.Lang))
	}

	return ch.sendText(ctx, protocol.PUSH, args, opts, req.Text)
}

// Pop removes text from the object and returns the number of terms removed.
// Text that does not fit the negotiated buffer is popped in several chunks.
func (ch *IngestChannel) Pop(ctx context.Context, collection, bucket, object, text string) (int, error) {
	return ch.sendText(ctx, protocol.POP, []string{collection, bucket, object}, nil, text)
}

// sendText sends text for name in as many frames as the buffer requires and
// sums the counts.
func (ch *IngestChannel) sendText(ctx context.Context, name protocol.Command, args []string, opts []string, text string) (int, error) {
	chunks, err := ch.chunk(name, args, opts, text)
	if err != nil {
		return 0, err
	}

	total := 0

	for _, chunk := range chunks {
		n, err := ch.callCount(ctx, name, append(args[:len(args):len(args)], chunk), opts)
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}

// Count counts the buckets of a collection, the objects of a bucket, or the
// terms of an object, depending on how many identifiers are given. Empty
// trailing identifiers are left out.
func (ch *IngestChannel) Count(ctx context.Context, collection, bucket, object string) (int, error) {
	if bucket == "" && object != "" {
		return 0, &ValidationError{
			Command: protocol.COUNT,
			Field:   "bucket",
			Value:   bucket,
			Reason:  "required when counting an object",
		}
	}

	args := []string{collection}
	if bucket != "" {
		args = append(args, bucket)
	}
	if object != "" {
		args = append(args, object)
	}

	return ch.callCount(ctx, protocol.COUNT, args, nil)
}

// FlushCollection removes every bucket of a collection.
func (ch *IngestChannel) FlushCollection(ctx context.Context, collection string) (int, error) {
	return ch.flush(ctx, protocol.FLUSHC, collection)
}

// FlushBucket removes every object of a bucket.
func (ch *IngestChannel) FlushBucket(ctx context.Context, collection, bucket string) (int, error) {
	return ch.flush(ctx, protocol.FLUSHB, collection, bucket)
}

// FlushObject removes every term of an object.
func (ch *IngestChannel) FlushObject(ctx context.Context, collection, bucket, object string) (int, error) {
	return ch.flush(ctx, protocol.FLUSHO, collection, bucket, object)
}

func (ch *IngestChannel) flush(ctx context.Context, name protocol.Command, args ...string) (int, error) {
	return ch.callCount(ctx, name, args, nil)
}

// chunk splits text so every frame fits the buffer the server negotiated.
func (ch *IngestChannel) chunk(name protocol.Command, args []string, opts []string, text string) ([]string, error) {
	session := ch.Session()
	if session == nil {
		// Not started, call reports the state error
		return []string{text}, nil
	}

	// Everything but the text, plus the space before it
	overhead := len(protocol.EncodeRequest(name, append(append([]string{}, args...), opts...)...)) + 1
	room := session.BufferSize - overhead

	if len(protocol.QuoteText(text)) <= room {
		return []string{text}, nil
	}

	// Room for the quotes and at least one escaped rune
	if room < 2+2*utf8.UTFMax {
		return nil, &ValidationError{
			Command: name,
			Field:   "text",
			Value:   text,
			Reason:  "identifiers leave no room for text in the server buffer",
		}
	}

	return splitText(text, room), nil
}

// splitText greedily packs the words of text into chunks whose quoted form is
// at most room bytes. Words too long for a chunk of their own are cut between
// runes.
func splitText(text string, room int) []string {
	var (
		chunks []string
		cur    strings.Builder
		size   = 2
	)

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			size = 2
		}
	}

	for _, word := range strings.Fields(text) {
		wordSize := quotedSize(word)

		if cur.Len() > 0 && size+1+wordSize <= room {
			cur.WriteByte(' ')
			cur.WriteString(word)
			size += 1 + wordSize
			continue
		}

		flush()

		if 2+wordSize <= room {
			cur.WriteString(word)
			size += wordSize
			continue
		}

		for _, r := range word {
			rs := quotedSize(string(r))
			if size+rs > room {
				flush()
			}
			cur.WriteRune(r)
			size += rs
		}
	}

	flush()
	return chunks
}

// quotedSize is the size of s once escaped, without the surrounding quotes.
func quotedSize(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			n += 2
		default:
			n += utf8.RuneLen(r)
		}
	}

	return n
}
