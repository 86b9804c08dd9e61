package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/zeebo/blake3"
)

const snapshotVersion = 1

var (
	ErrStoreClosed       = errors.New("Store is closed")
	ErrSnapshotCorrupt   = errors.New("Snapshot checksum does not match its contents")
	ErrSnapshotTooShort  = errors.New("Snapshot is too short to hold a checksum")
	ErrSnapshotMalformed = errors.New("Snapshot is not a valid index document")
	ErrSnapshotVersion   = errors.New("Snapshot version is not supported")
)

// Snapshot renders the whole index as a JSON document:
//
//   {"version":1,"objects":[{"collection":"wiki","bucket":"articles",
//     "object":"a1","seq":3,"terms":["god","love"]}]}
//
// Objects and terms are sorted so equal indexes give equal snapshots.
func (i *InmemoryStore) Snapshot() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	doc := []byte(`{"objects":[]}`)

	doc, err := sjson.SetBytes(doc, "version", snapshotVersion)
	if err != nil {
		return nil, err
	}

	for _, colName := range sortedKeys(i.collections) {
		c := i.collections[colName]

		for _, bucName := range sortedKeys(c) {
			b := c[bucName]

			for _, objName := range sortedKeys(b) {
				o := b[objName]

				terms := sortedKeys(o.terms)

				doc, err = sjson.SetBytes(doc, "objects.-1", map[string]interface{}{
					"collection": colName,
					"bucket":     bucName,
					"object":     objName,
					"seq":        o.seq,
					"terms":      terms,
				})
				if err != nil {
					return nil, fmt.Errorf("Failed to snapshot %s/%s/%s: %w", colName, bucName, objName, err)
				}
			}
		}
	}

	return doc, nil
}

// Load replaces the index with the contents of a Snapshot.
func (i *InmemoryStore) Load(doc []byte) error {
	if !gjson.ValidBytes(doc) {
		return ErrSnapshotMalformed
	}

	if v := gjson.GetBytes(doc, "version").Int(); v != snapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, v)
	}

	collections := make(map[string]collection)
	var (
		seq     uint64
		loadErr error
	)

	gjson.GetBytes(doc, "objects").ForEach(func(_, value gjson.Result) bool {
		colName := value.Get("collection").String()
		bucName := value.Get("bucket").String()
		objName := value.Get("object").String()

		if colName == "" || bucName == "" || objName == "" {
			loadErr = fmt.Errorf("%w: object without identifiers: %s", ErrSnapshotMalformed, value.Raw)
			return false
		}

		o := &object{
			terms: make(map[string]struct{}),
			seq:   value.Get("seq").Uint(),
		}

		for _, term := range value.Get("terms").Array() {
			o.terms[term.String()] = struct{}{}
		}

		if o.seq > seq {
			seq = o.seq
		}

		c, ok := collections[colName]
		if !ok {
			c = make(collection)
			collections[colName] = c
		}

		b, ok := c[bucName]
		if !ok {
			b = make(bucket)
			c[bucName] = b
		}

		b[objName] = o
		return true
	})

	if loadErr != nil {
		return loadErr
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.checkRunning(); err != nil {
		return err
	}

	i.collections = collections
	i.seq = seq
	i.invalidate()

	return nil
}

// Backup writes a checksummed, compressed snapshot to path. The file is the
// 32 byte BLAKE3 digest of the JSON snapshot followed by the zstd compressed
// snapshot.
func (i *InmemoryStore) Backup(path string) error {
	doc, err := i.Snapshot()
	if err != nil {
		return err
	}

	sum := blake3.Sum256(doc)

	var buf bytes.Buffer
	buf.Write(sum[:])
	buf.Write(CompressBytes(doc))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0640); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Restore replaces the index with the backup at path.
func (i *InmemoryStore) Restore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if len(data) < 32 {
		return ErrSnapshotTooShort
	}

	doc, err := DecompressBytes(data[32:])
	if err != nil {
		return fmt.Errorf("Failed to decompress %s: %w", path, err)
	}

	if sum := blake3.Sum256(doc); !bytes.Equal(sum[:], data[:32]) {
		return ErrSnapshotCorrupt
	}

	return i.Load(doc)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
