package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/sonic/client"
)

var (
	loadWorkers    int
	loadCollection string
	loadBucket     string
)

func init() {
	flags := LoadCmd.Flags()

	flags.IntVarP(&loadWorkers, "workers", "w", 4, "The number of ingest channels pushing in parallel")
	flags.StringVar(&loadCollection, "collection", "", "The collection of documents that do not name one")
	flags.StringVar(&loadBucket, "bucket", "", "The bucket of documents that do not name one")
}

var LoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Bulk push JSON lines documents",
	Long: `Bulk push JSON lines documents

Every line of the file, or of stdin when the file is "-", is a document:

	{"collection":"wiki","bucket":"articles","object":"a1","text":"...","lang":"eng"}

collection and bucket may be left to --collection and --bucket. Documents are
pushed over --workers ingest channels in parallel.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()

		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			in = f
		}

		loader, err := newLoader(cmd.Context(), loadWorkers)
		if err != nil {
			return err
		}

		started := time.Now()
		loadErr := loader.Load(cmd.Context(), in)
		closeErr := loader.Close(cmd.Context())

		fmt.Fprintf(cmd.OutOrStdout(), "pushed %d documents (%d terms) in %s, %d failed\n",
			loader.pushed.Load(), loader.terms.Load(), time.Since(started).Round(time.Millisecond), loader.failed.Load())

		return multierr.Append(loadErr, closeErr)
	},
}

// loader pushes documents over a fixed set of ingest channels. A channel
// carries one command at a time, so each task borrows one for its push.
type loader struct {
	pool     *ants.Pool
	channels chan *client.IngestChannel
	wg       sync.WaitGroup

	pushed atomic.Int64
	terms  atomic.Int64
	failed atomic.Int64

	mu  sync.Mutex
	err error
}

func newLoader(ctx context.Context, workers int) (*loader, error) {
	if workers < 1 {
		return nil, fmt.Errorf("At least one worker is needed, got %d", workers)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	l := &loader{
		pool:     pool,
		channels: make(chan *client.IngestChannel, workers),
	}

	for i := 0; i < workers; i++ {
		ch, err := client.StartIngest(ctx, conf.ClientOptions(log.Named("client").With(zap.Int("worker", i))))
		if err != nil {
			return nil, multierr.Append(err, l.Close(ctx))
		}

		l.channels <- ch
	}

	return l, nil
}

// Load pushes every document read from r and waits for the pushes to finish.
func (l *loader) Load(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++

		doc := scanner.Text()
		if len(doc) == 0 {
			continue
		}

		req, err := parseDocument(doc)
		if err != nil {
			l.fail(fmt.Errorf("line %d: %w", line, err))
			continue
		}

		l.wg.Add(1)
		if err := l.pool.Submit(func() {
			defer l.wg.Done()
			l.push(ctx, req)
		}); err != nil {
			l.wg.Done()
			l.fail(err)
		}
	}

	l.wg.Wait()

	return multierr.Append(scanner.Err(), l.firstErr())
}

func (l *loader) push(ctx context.Context, req client.PushRequest) {
	ch := <-l.channels
	defer func() { l.channels <- ch }()

	n, err := ch.Push(ctx, req)
	if err != nil {
		log.Warn("Failed to push document", zap.String("object", req.Object), zap.Error(err))
		l.fail(fmt.Errorf("object %s: %w", req.Object, err))

		if client.IsFatal(err) {
			// The channel is gone, replace it for the next task. A failed
			// restart is retried by the next task borrowing the channel.
			ch.Close()

			fresh, startErr := client.StartIngest(ctx, conf.ClientOptions(log.Named("client")))
			if startErr != nil {
				log.Error("Failed to restart ingest channel", zap.Error(startErr))
				return
			}

			ch = fresh
		}

		return
	}

	l.pushed.Add(1)
	l.terms.Add(int64(n))
}

func (l *loader) fail(err error) {
	l.failed.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err == nil {
		l.err = err
	}
}

func (l *loader) firstErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.err
}

// Close quits every channel and releases the pool.
func (l *loader) Close(ctx context.Context) (err error) {
	l.pool.Release()

	for {
		select {
		case ch := <-l.channels:
			if ch.State() != client.ChannelReady {
				ch.Close()
				continue
			}

			err = multierr.Append(err, ch.Quit(ctx))
		default:
			return err
		}
	}
}

func parseDocument(doc string) (client.PushRequest, error) {
	if !gjson.Valid(doc) {
		return client.PushRequest{}, fmt.Errorf("not a JSON document")
	}

	fields := gjson.GetMany(doc, "collection", "bucket", "object", "text", "lang")

	req := client.PushRequest{
		Collection: fields[0].String(),
		Bucket:     fields[1].String(),
		Object:     fields[2].String(),
		Text:       fields[3].String(),
		Lang:       fields[4].String(),
	}

	if req.Collection == "" {
		req.Collection = loadCollection
	}

	if req.Bucket == "" {
		req.Bucket = loadBucket
	}

	if req.Collection == "" || req.Bucket == "" || req.Object == "" {
		return req, fmt.Errorf("collection, bucket and object are required")
	}

	return req, nil
}
