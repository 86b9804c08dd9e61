package storage_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/sonic/storage"
)

var _ = Describe("storage / snapshots", func() {
	var (
		ctx   context.Context
		store *storage.InmemoryStore
		dir   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = storage.NewInmemoryStore()

		var err error
		dir, err = os.MkdirTemp("", "sonic-snapshot")
		Expect(err).To(Succeed())

		_, err = store.Push(ctx, "wiki", "articles", "a1", "for the love of god")
		Expect(err).To(Succeed())
		_, err = store.Push(ctx, "wiki", "articles", "a2", "heaven")
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("renders an empty index as a document without objects", func() {
		empty := storage.NewInmemoryStore()
		defer empty.Close()

		doc, err := empty.Snapshot()
		Expect(err).To(Succeed())
		Expect(string(doc)).To(MatchJSON(`{"objects":[],"version":1}`))
	})

	It("loads what it snapshots", func() {
		doc, err := store.Snapshot()
		Expect(err).To(Succeed())

		other := storage.NewInmemoryStore()
		defer other.Close()

		Expect(other.Load(doc)).To(Succeed())
		Expect(other.Stats()).To(Equal(store.Stats()))
		Expect(other.Query(ctx, "wiki", "articles", "love", 0, 0)).To(Equal([]string{"a1"}))

		// Recency survives the trip
		Expect(other.Query(ctx, "wiki", "articles", "", 0, 0)).To(BeEmpty())
		_, err = other.Push(ctx, "wiki", "articles", "a1", "heaven")
		Expect(err).To(Succeed())
		Expect(other.Query(ctx, "wiki", "articles", "heaven", 0, 0)).To(Equal([]string{"a1", "a2"}))
	})

	It("rejects malformed and unknown documents", func() {
		Expect(store.Load([]byte("nope"))).To(MatchError(storage.ErrSnapshotMalformed))
		Expect(store.Load([]byte(`{"version":7,"objects":[]}`))).To(MatchError(ContainSubstring("version")))
	})

	It("backs up to and restores from a file", func() {
		path := filepath.Join(dir, "nested", "backup.snap")
		Expect(store.Backup(path)).To(Succeed())

		other := storage.NewInmemoryStore()
		defer other.Close()

		Expect(other.Restore(path)).To(Succeed())
		Expect(other.Stats()).To(Equal(store.Stats()))
	})

	It("refuses a backup whose contents were altered", func() {
		path := filepath.Join(dir, "backup.snap")
		Expect(store.Backup(path)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).To(Succeed())
		data[0] ^= 0xff
		Expect(os.WriteFile(path, data, 0640)).To(Succeed())

		Expect(store.Restore(path)).To(MatchError(storage.ErrSnapshotCorrupt))
	})

	It("refuses a truncated backup", func() {
		path := filepath.Join(dir, "short.snap")
		Expect(os.WriteFile(path, []byte("short"), 0640)).To(Succeed())

		Expect(store.Restore(path)).To(MatchError(storage.ErrSnapshotTooShort))
	})
})
