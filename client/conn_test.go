package client_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/sonic/client"
)

// fakeServer plays a scripted conversation with a single client.
type fakeServer struct {
	listener net.Listener
	done     chan struct{}
}

type script func(r *bufio.Reader, conn net.Conn)

func startFakeServer(started string, play script) (*fakeServer, client.Options) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).To(Succeed())

	s := &fakeServer{listener: listener, done: make(chan struct{})}

	go func() {
		defer GinkgoRecover()
		defer close(s.done)

		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)

		conn.Write([]byte("CONNECTED <sonic-server v1.4.9>\r\n"))
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		conn.Write([]byte(started + "\r\n"))

		play(r, conn)
	}()

	return s, client.Options{
		Host:        "127.0.0.1",
		Port:        listener.Addr().(*net.TCPAddr).Port,
		ReadTimeout: time.Second,
		Log:         zap.NewNop(),
	}
}

func (s *fakeServer) Close() {
	s.listener.Close()
	Eventually(s.done, 5*time.Second).Should(BeClosed())
}

func expectLine(r *bufio.Reader, line string) {
	got, err := r.ReadString('\n')
	Expect(err).To(Succeed())
	Expect(strings.TrimRight(got, "\r\n")).To(Equal(line))
}

var _ = Describe("client against a scripted server", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("understands the short STARTED form", func() {
		server, opts := startFakeServer("STARTED 4096", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "QUIT")
			conn.Write([]byte("ENDED quit\r\n"))
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())

		Expect(ch.Session().BufferSize).To(Equal(4096))
		Expect(ch.Session().Protocol).To(Equal(0))
		Expect(ch.Quit(ctx)).To(Succeed())
	})

	It("drops events for other requests", func() {
		server, opts := startFakeServer("STARTED search protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, `QUERY wiki articles "love"`)
			conn.Write([]byte("PENDING abc\r\nEVENT QUERY zzz stale\r\nEVENT SUGGEST abc wrong\r\nEVENT QUERY abc a1 a2\r\n"))
		})
		defer server.Close()

		ch, err := client.StartSearch(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		results, err := ch.Query(ctx, client.QueryRequest{Collection: "wiki", Bucket: "articles", Terms: "love"})
		Expect(err).To(Succeed())
		Expect(results).To(Equal([]string{"a1", "a2"}))
	})

	It("accepts results without a PENDING step", func() {
		server, opts := startFakeServer("STARTED search protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, `SUGGEST wiki articles "hel" LIMIT(2)`)
			conn.Write([]byte("EVENT SUGGEST x1 hell hello\r\n"))
		})
		defer server.Close()

		ch, err := client.StartSearch(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		results, err := ch.Suggest(ctx, client.SuggestRequest{Collection: "wiki", Bucket: "articles", Word: "hel", Limit: 2})
		Expect(err).To(Succeed())
		Expect(results).To(Equal([]string{"hell", "hello"}))
	})

	It("quotes text on the wire", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, `PUSH wiki articles a1 "say \"hi\"\nthere" LANG(eng)`)
			conn.Write([]byte("OK\r\n"))
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		n, err := ch.Push(ctx, client.PushRequest{Collection: "wiki", Bucket: "articles", Object: "a1", Text: "say \"hi\"\nthere", Lang: "eng"})
		Expect(err).To(Succeed())
		Expect(n).To(Equal(0))
	})

	It("times out and closes the channel", func() {
		server, opts := startFakeServer("STARTED control protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "PING")
			r.ReadString('\n')
		})
		defer server.Close()

		opts.ReadTimeout = 100 * time.Millisecond

		ch, err := client.StartControl(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		err = ch.Ping(ctx)

		var timeoutErr *client.TimeoutError
		Expect(errors.As(err, &timeoutErr)).To(BeTrue())
		Expect(client.IsFatal(err)).To(BeTrue())
		Expect(ch.State()).To(Equal(client.ChannelClosed))
	})

	It("honours the context deadline", func() {
		server, opts := startFakeServer("STARTED control protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "TRIGGER consolidate")
			r.ReadString('\n')
		})
		defer server.Close()

		ch, err := client.StartControl(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		callCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		err = ch.Consolidate(callCtx)

		var timeoutErr *client.TimeoutError
		Expect(errors.As(err, &timeoutErr)).To(BeTrue())
	})

	It("aborts on cancellation", func() {
		server, opts := startFakeServer("STARTED control protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "INFO")
			r.ReadString('\n')
		})
		defer server.Close()

		ch, err := client.StartControl(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		callCtx, cancel := context.WithCancel(ctx)
		time.AfterFunc(50*time.Millisecond, cancel)

		_, err = ch.Info(callCtx)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(ch.State()).To(Equal(client.ChannelClosed))
	})

	It("fails with an IOError when the server hangs up mid-command", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "COUNT wiki")
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		_, err = ch.Count(ctx, "wiki", "", "")

		var ioErr *client.IOError
		Expect(errors.As(err, &ioErr)).To(BeTrue())
		Expect(ch.State()).To(Equal(client.ChannelClosed))
	})

	It("fails with a ProtocolError on a frame it does not understand", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "FLUSHC wiki")
			conn.Write([]byte("GARBAGE 12\r\n"))
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		_, err = ch.FlushCollection(ctx, "wiki")

		var protoErr *client.ProtocolError
		Expect(errors.As(err, &protoErr)).To(BeTrue())
		Expect(protoErr.Line).To(Equal("GARBAGE 12"))
		Expect(ch.State()).To(Equal(client.ChannelClosed))
	})

	It("closes the channel on a count it cannot read", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, `PUSH wiki articles a1 "hello"`)
			conn.Write([]byte("OK notanumber\r\n"))
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		_, err = ch.Push(ctx, client.PushRequest{Collection: "wiki", Bucket: "articles", Object: "a1", Text: "hello"})

		var protoErr *client.ProtocolError
		Expect(errors.As(err, &protoErr)).To(BeTrue())
		Expect(protoErr.Line).To(Equal("OK notanumber"))
		Expect(client.IsFatal(err)).To(BeTrue())
		Expect(ch.State()).To(Equal(client.ChannelClosed))
	})

	It("pops text in chunks that fit the buffer and sums the counts", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(40)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, `POP wiki articles a1 "alpha bravo"`)
			conn.Write([]byte("RESULT 2\r\n"))
			expectLine(r, `POP wiki articles a1 "charlie delta"`)
			conn.Write([]byte("RESULT 1\r\n"))
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		n, err := ch.Pop(ctx, "wiki", "articles", "a1", "alpha bravo charlie delta")
		Expect(err).To(Succeed())
		Expect(n).To(Equal(3))
	})

	It("refuses text with control characters other than line breaks and tabs", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		_, err = ch.Push(ctx, client.PushRequest{Collection: "wiki", Bucket: "articles", Object: "a1", Text: "nul\x00byte"})

		var validationErr *client.ValidationError
		Expect(errors.As(err, &validationErr)).To(BeTrue())
		Expect(validationErr.Field).To(Equal("text"))
		Expect(client.IsFatal(err)).To(BeFalse())
		Expect(ch.State()).To(Equal(client.ChannelReady))
	})

	It("fails with a ProtocolError on a reply meant for another command", func() {
		server, opts := startFakeServer("STARTED ingest protocol(1) buffer(20000)", func(r *bufio.Reader, conn net.Conn) {
			expectLine(r, "PING")
			conn.Write([]byte("RESULT 3\r\n"))
		})
		defer server.Close()

		ch, err := client.StartIngest(ctx, opts)
		Expect(err).To(Succeed())
		defer ch.Close()

		err = ch.Ping(ctx)
		Expect(errors.Is(err, client.ErrUnexpectedResponse)).To(BeTrue())
	})
})

var _ = Describe("SplitText()", func() {
	It("keeps every chunk within the room given", func() {
		text := "the quick brown fox jumps over the lazy dog"

		chunks := client.SplitText(text, 16)
		Expect(strings.Join(chunks, " ")).To(Equal(text))

		for _, chunk := range chunks {
			Expect(len(chunk) + 2).To(BeNumerically("<=", 16))
		}
	})

	It("cuts words longer than a chunk between runes", func() {
		chunks := client.SplitText("ééééé", 6)
		Expect(chunks).To(Equal([]string{"éé", "éé", "é"}))
	})
})
