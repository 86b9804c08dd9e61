package transport_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/sonic/storage"
	"github.com/luma/sonic/transport"
)

var _ = Describe("transport", func() {
	var tcp *transport.TCP

	AfterEach(func() {
		if tcp != nil {
			Expect(tcp.Close()).To(Succeed())
		}
	})

	Describe("TCP", func() {
		It("resolves the port it listens on", func() {
			tcp = makeTCPServer("")

			Expect(tcp.Addr()).NotTo(HaveSuffix(":0"))

			conn, err := net.Dial("tcp", tcp.Addr())
			Expect(err).To(Succeed())
			conn.Close()
		})

		It("greets every client", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.greeting).To(Equal("CONNECTED <sonic-server v1.4.9>"))
		})

		It("answers PING before START", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("PING")).To(Equal("PONG"))
		})

		It("refuses other commands before START", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("QUERY wiki articles love")).To(Equal("ERR not_started"))
		})

		It("ends the session on QUIT", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("QUIT")).To(Equal("ENDED quit"))
			waitForClose(c)
		})

		It("counts connected clients and commands", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("PING")).To(Equal("PONG"))

			stats := tcp.Stats()
			Expect(stats.ClientsConnected).To(BeEquivalentTo(1))
			Expect(stats.CommandsTotal).To(BeEquivalentTo(1))
		})

		It("closes client connections when closed", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(tcp.Close()).To(Succeed())
			Eventually(tcp.Done()).Should(BeClosed())
			waitForClose(c)
		})
	})

	Describe("START", func() {
		It("advertises the protocol revision and buffer size", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("START search SecretPassword")).To(Equal("STARTED search protocol(1) buffer(20000)"))
		})

		It("rejects a wrong password", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("START search nope")).To(Equal("ERR authentication_failed"))
		})

		It("rejects an unknown mode", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("START index SecretPassword")).To(Equal("ERR invalid_mode"))
		})

		It("refuses a second START", func() {
			tcp = makeTCPServer("")
			c := dial(tcp)
			defer c.Close()

			Expect(c.roundTrip("START ingest SecretPassword")).To(HavePrefix("STARTED"))
			Expect(c.roundTrip("START search SecretPassword")).To(Equal("ERR already_started"))
		})
	})

	Describe("ingest mode", func() {
		var c *client

		BeforeEach(func() {
			tcp = makeTCPServer("")
			c = dial(tcp)
			Expect(c.roundTrip("START ingest SecretPassword")).To(HavePrefix("STARTED"))
		})

		AfterEach(func() {
			c.Close()
		})

		It("indexes text with PUSH", func() {
			Expect(c.roundTrip(`PUSH wiki articles a1 "for the love of god"`)).To(Equal("OK 5"))
			Expect(c.roundTrip("COUNT wiki articles a1")).To(Equal("RESULT 5"))
			Expect(c.roundTrip("COUNT wiki")).To(Equal("RESULT 1"))
		})

		It("removes terms with POP", func() {
			Expect(c.roundTrip(`PUSH wiki articles a1 "hello world"`)).To(Equal("OK 2"))
			Expect(c.roundTrip(`POP wiki articles a1 "hello"`)).To(Equal("RESULT 1"))
		})

		It("flushes objects, buckets and collections", func() {
			Expect(c.roundTrip(`PUSH wiki articles a1 "hello"`)).To(Equal("OK 1"))
			Expect(c.roundTrip(`PUSH wiki articles a2 "hello"`)).To(Equal("OK 1"))
			Expect(c.roundTrip("FLUSHO wiki articles a1")).To(Equal("RESULT 1"))
			Expect(c.roundTrip("FLUSHB wiki articles")).To(Equal("RESULT 1"))
			Expect(c.roundTrip("FLUSHC wiki")).To(Equal("RESULT 0"))
		})

		It("refuses search commands", func() {
			Expect(c.roundTrip("QUERY wiki articles love")).To(Equal("ERR not_recognized"))
		})

		It("refuses unquoted text", func() {
			Expect(c.roundTrip("PUSH wiki articles a1 hello")).To(HavePrefix("ERR invalid_format(PUSH "))
			Expect(c.roundTrip("POP wiki articles a1 hello")).To(HavePrefix("ERR invalid_format(POP "))
		})

		It("describes the expected format on missing arguments", func() {
			Expect(c.roundTrip("FLUSHB wiki")).To(Equal("ERR invalid_format(FLUSHB <collection> <bucket>)"))
		})

		It("rejects a frame larger than the buffer", func() {
			_, err := c.conn.Write([]byte("PUSH wiki articles a1 " + strings.Repeat("a", 20001) + "\n"))
			Expect(err).To(Succeed())

			Expect(c.readLine()).To(Equal("ERR buffer_overflow"))
			waitForClose(c)
		})
	})

	Describe("search mode", func() {
		var c *client

		BeforeEach(func() {
			tcp = makeTCPServer("")

			ingest := dial(tcp)
			defer ingest.Close()

			Expect(ingest.roundTrip("START ingest SecretPassword")).To(HavePrefix("STARTED"))
			Expect(ingest.roundTrip(`PUSH wiki articles a1 "hello world of love"`)).To(Equal("OK 4"))
			Expect(ingest.roundTrip(`PUSH wiki articles a2 "hell is other people"`)).To(Equal("OK 4"))

			c = dial(tcp)
			Expect(c.roundTrip("START search SecretPassword")).To(HavePrefix("STARTED"))
		})

		AfterEach(func() {
			c.Close()
		})

		It("answers QUERY with PENDING then EVENT", func() {
			pending := c.roundTrip(`QUERY wiki articles "love"`)
			Expect(pending).To(HavePrefix("PENDING "))
			id := strings.TrimPrefix(pending, "PENDING ")
			Expect(id).To(HaveLen(8))

			Expect(c.readLine()).To(Equal("EVENT QUERY " + id + " a1"))
		})

		It("answers an empty EVENT when nothing matches", func() {
			id := strings.TrimPrefix(c.roundTrip(`QUERY wiki articles "nothing"`), "PENDING ")
			Expect(c.readLine()).To(Equal("EVENT QUERY " + id))
		})

		It("completes words with SUGGEST", func() {
			id := strings.TrimPrefix(c.roundTrip(`SUGGEST wiki articles "hel"`), "PENDING ")
			Expect(c.readLine()).To(Equal("EVENT SUGGEST " + id + " hell hello"))
		})

		It("refuses unquoted terms and words", func() {
			Expect(c.roundTrip("QUERY wiki articles love")).To(HavePrefix(`ERR invalid_format(QUERY <collection> <bucket> "<terms>"`))
			Expect(c.roundTrip("SUGGEST wiki articles hel")).To(HavePrefix(`ERR invalid_format(SUGGEST <collection> <bucket> "<word>"`))
		})

		It("pages through terms with LIST", func() {
			id := strings.TrimPrefix(c.roundTrip("LIST wiki articles LIMIT(2) OFFSET(1)"), "PENDING ")
			Expect(c.readLine()).To(Equal("EVENT LIST " + id + " hello is"))
		})

		It("rejects a negative LIMIT", func() {
			Expect(c.roundTrip("LIST wiki articles LIMIT(-1)")).To(Equal("ERR invalid_meta_value"))
		})
	})

	Describe("control mode", func() {
		var c *client

		BeforeEach(func() {
			tcp = makeTCPServer(`{"version":1,"objects":[{"collection":"wiki","bucket":"articles","object":"a1","seq":1,"terms":["hello"]}]}`)
			c = dial(tcp)
			Expect(c.roundTrip("START control SecretPassword")).To(HavePrefix("STARTED"))
		})

		AfterEach(func() {
			c.Close()
		})

		It("consolidates", func() {
			Expect(c.roundTrip("TRIGGER consolidate")).To(Equal("OK"))
		})

		It("backs up and restores", func() {
			dir, err := os.MkdirTemp("", "sonic-backup")
			Expect(err).To(Succeed())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "backup")

			Expect(c.roundTrip("TRIGGER backup " + path)).To(Equal("OK"))
			Expect(path).To(BeAnExistingFile())
			Expect(c.roundTrip("TRIGGER restore " + path)).To(Equal("OK"))
		})

		It("requires a path to back up", func() {
			Expect(c.roundTrip("TRIGGER backup")).To(HavePrefix("ERR invalid_format("))
		})

		It("rejects unknown actions", func() {
			Expect(c.roundTrip("TRIGGER explode")).To(Equal("ERR invalid_action"))
		})

		It("reports counters with INFO", func() {
			info := c.roundTrip("INFO")
			Expect(info).To(HavePrefix("RESULT uptime("))
			Expect(info).To(ContainSubstring("clients_connected(1)"))
			Expect(info).To(ContainSubstring("objects(1)"))
		})

		It("shuts the server down", func() {
			_, err := c.conn.Write([]byte("TRIGGER shutdown\n"))
			Expect(err).To(Succeed())

			Eventually(tcp.Done(), 5*time.Second).Should(BeClosed())
			waitForClose(c)
		})
	})
})

type client struct {
	conn     net.Conn
	r        *bufio.Reader
	greeting string
}

func dial(tcp *transport.TCP) *client {
	conn, err := net.Dial("tcp", tcp.Addr())
	Expect(err).To(Succeed())

	c := &client{conn: conn, r: bufio.NewReader(conn)}
	c.greeting = c.readLine()

	return c
}

func (c *client) Close() {
	c.conn.Close()
}

func (c *client) roundTrip(line string) string {
	_, err := c.conn.Write([]byte(line + "\n"))
	Expect(err).To(Succeed())

	return c.readLine()
}

func (c *client) readLine() string {
	Expect(c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	line, err := c.r.ReadString('\n')
	Expect(err).To(Succeed())

	return strings.TrimRight(line, "\r\n")
}

func waitForClose(c *client) {
	Expect(c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	_, err := io.Copy(io.Discard, c.r)

	// io.Copy swallows EOF, anything else is a reset or the deadline
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		Fail("The client was never closed by the server")
	}
}

func makeTCPServer(restore string) *transport.TCP {
	store := storage.NewInmemoryStore()
	if restore != "" {
		Expect(store.Load([]byte(restore))).To(Succeed())
	}

	tcp := transport.NewTCP(transport.Options{
		Host:     "127.0.0.1",
		Password: "SecretPassword",
		Log:      zap.NewNop(),
		Store:    store,
	})

	Expect(tcp.Start(context.Background())).To(Succeed())

	return tcp
}
