package protocol_test

import (
	"bufio"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sonic/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("DecodeResponse()", func() {
		It("returns a protocol error for an empty line", func() {
			_, err := protocol.DecodeResponse([]byte(""))
			Expect(errors.Is(err, protocol.ErrEmptyFrame)).To(BeTrue())

			_, err = protocol.DecodeResponse([]byte("   \r\n"))
			Expect(errors.Is(err, protocol.ErrEmptyFrame)).To(BeTrue())
		})

		It("returns a protocol error carrying the raw line for unknown keywords", func() {
			_, err := protocol.DecodeResponse([]byte("WAT is this\n"))
			Expect(errors.Is(err, protocol.ErrUnknownResponse)).To(BeTrue())

			var perr *protocol.ProtocolError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Line).To(Equal("WAT is this"))
		})

		It("parses the greeting", func() {
			resp, err := protocol.DecodeResponse([]byte("CONNECTED <sonic-server v1.4.9>\r\n"))
			Expect(err).To(Succeed())
			Expect(resp.Type).To(Equal(protocol.RespConnected))
			Expect(resp.Message).To(Equal("<sonic-server v1.4.9>"))
			Expect(resp.Kind()).To(Equal(protocol.KindOk))
		})

		It("parses STARTED with its options", func() {
			resp, err := protocol.DecodeResponse([]byte("STARTED search protocol(1) buffer(20000)"))
			Expect(err).To(Succeed())
			Expect(resp.Type).To(Equal(protocol.RespStarted))
			Expect(resp.Args).To(Equal([]string{"search", "protocol(1)", "buffer(20000)"}))
		})

		It("keeps ERR messages verbatim", func() {
			resp, err := protocol.DecodeResponse([]byte(`ERR invalid_format(PUSH <collection> "<text>")`))
			Expect(err).To(Succeed())
			Expect(resp.Kind()).To(Equal(protocol.KindErr))
			Expect(resp.Message).To(Equal(`invalid_format(PUSH <collection> "<text>")`))
		})

		It("parses PENDING and EVENT ids", func() {
			pending, err := protocol.DecodeResponse([]byte("PENDING Bt2m2gYa"))
			Expect(err).To(Succeed())
			Expect(pending.Kind()).To(Equal(protocol.KindPending))
			Expect(pending.ID()).To(Equal("Bt2m2gYa"))

			event, err := protocol.DecodeResponse([]byte("EVENT QUERY Bt2m2gYa article-1 article-3"))
			Expect(err).To(Succeed())
			Expect(event.Kind()).To(Equal(protocol.KindEvent))
			Expect(event.ID()).To(Equal("Bt2m2gYa"))
			Expect(event.EventName()).To(Equal(protocol.QUERY))
			Expect(event.EventPayload()).To(Equal([]string{"article-1", "article-3"}))
		})

		It("accepts an EVENT with an empty result list", func() {
			event, err := protocol.DecodeResponse([]byte("EVENT QUERY abc"))
			Expect(err).To(Succeed())
			Expect(event.EventPayload()).To(BeEmpty())
		})

		It("rejects PENDING and EVENT without an id", func() {
			_, err := protocol.DecodeResponse([]byte("PENDING"))
			Expect(errors.Is(err, protocol.ErrMissingEventID)).To(BeTrue())

			_, err = protocol.DecodeResponse([]byte("EVENT QUERY"))
			Expect(errors.Is(err, protocol.ErrMissingEventID)).To(BeTrue())
		})

		It("parses RESULT integers", func() {
			resp, err := protocol.DecodeResponse([]byte("RESULT 42"))
			Expect(err).To(Succeed())
			Expect(resp.Int(0)).To(Equal(42))

			_, err = resp.Int(1)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("DecodeRequest()", func() {
		It("parses commands and quoted arguments", func() {
			req, err := protocol.DecodeRequest([]byte(`PUSH wiki articles a1 "for the \"love\" of god"` + "\n"))
			Expect(err).To(Succeed())
			Expect(req.Command).To(Equal(protocol.PUSH))
			Expect(req.Args).To(Equal([]string{"wiki", "articles", "a1", `for the "love" of god`}))
			Expect(req.Quoted(2)).To(BeFalse())
			Expect(req.Quoted(3)).To(BeTrue())
			Expect(req.Quoted(4)).To(BeFalse())
			Expect(req.Arg(3)).To(Equal(`for the "love" of god`))
			Expect(req.Arg(4)).To(Equal(""))
		})

		It("rejects lowercase commands", func() {
			_, err := protocol.DecodeRequest([]byte("ping"))
			Expect(errors.Is(err, protocol.ErrUnknownCommand)).To(BeTrue())
		})

		It("rejects unterminated quotes", func() {
			_, err := protocol.DecodeRequest([]byte(`QUERY wiki articles "love`))
			Expect(errors.Is(err, protocol.ErrUnterminatedQuote)).To(BeTrue())
		})
	})

	Describe("ReadLine()", func() {
		It("returns an error if the reader cannot find a newline", func() {
			r := bufio.NewReader(strings.NewReader("I have no new line"))
			_, err := protocol.ReadLine(r, 0)
			Expect(err).To(MatchError(io.EOF))
		})

		It("reads several frames delivered in one chunk", func() {
			r := bufio.NewReader(strings.NewReader("PENDING abc\nEVENT QUERY abc a1\r\n"))

			line, err := protocol.ReadLine(r, 0)
			Expect(err).To(Succeed())
			Expect(string(line)).To(Equal("PENDING abc"))

			line, err = protocol.ReadLine(r, 0)
			Expect(err).To(Succeed())
			Expect(string(line)).To(Equal("EVENT QUERY abc a1"))
		})

		It("reads lines longer than the reader buffer", func() {
			long := strings.Repeat("x", 100)
			r := bufio.NewReaderSize(strings.NewReader("RESULT "+long+"\n"), 16)

			line, err := protocol.ReadLine(r, 0)
			Expect(err).To(Succeed())
			Expect(string(line)).To(Equal("RESULT " + long))
		})

		It("bounds the line length", func() {
			r := bufio.NewReader(strings.NewReader("RESULT 123456789\n"))
			_, err := protocol.ReadLine(r, 8)
			Expect(errors.Is(err, protocol.ErrLineTooLong)).To(BeTrue())
		})
	})

	Describe("Options", func() {
		It("renders and parses options", func() {
			Expect(protocol.IntOption(protocol.OptLimit, 10)).To(Equal("LIMIT(10)"))

			name, value, ok := protocol.ParseOption("LANG(eng)")
			Expect(ok).To(BeTrue())
			Expect(name).To(Equal("LANG"))
			Expect(value).To(Equal("eng"))

			_, _, ok = protocol.ParseOption("love")
			Expect(ok).To(BeFalse())
		})

		It("rejects negative integer options", func() {
			_, _, err := protocol.ParseIntOption("LIMIT(-1)")
			Expect(err).To(HaveOccurred())

			name, n, err := protocol.ParseIntOption("OFFSET(20)")
			Expect(err).To(Succeed())
			Expect(name).To(Equal(protocol.OptOffset))
			Expect(n).To(Equal(20))
		})
	})

	Describe("RemoveTrailingCR()", func() {
		It("does nothing if the data does not end in CR", func() {
			data := []byte("I am awesome data")
			Expect(protocol.RemoveTrailingCR(data)).To(Equal(data))
		})

		It("removes the trailling CR", func() {
			input := []byte("I am awesome data\r")
			output := []byte("I am awesome data")
			Expect(protocol.RemoveTrailingCR(input)).To(Equal(output))
		})
	})
})
