package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const resultCacheTTL = 30 * time.Second

type object struct {
	terms map[string]struct{}

	// seq orders objects by their last push, most recent first in results
	seq uint64
}

type bucket map[string]*object

type collection map[string]bucket

type InmemoryStore struct {
	mu          sync.RWMutex
	collections map[string]collection
	seq         uint64

	// results caches query, suggest and list results until the next write
	results *ttlcache.Cache[string, []string]

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		collections: make(map[string]collection),
		results: ttlcache.New[string, []string](
			ttlcache.WithTTL[string, []string](resultCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, []string](),
		),
		stop: make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRunning() {
		close(i.stop)
	}

	i.results.DeleteAll()

	return nil
}

func (i *InmemoryStore) Push(ctx context.Context, col, buc, obj, text string) (int, error) {
	terms := Terms(text)
	if len(terms) == 0 {
		return 0, fmt.Errorf("text has no indexable terms")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.checkRunning(); err != nil {
		return 0, err
	}

	c, ok := i.collections[col]
	if !ok {
		c = make(collection)
		i.collections[col] = c
	}

	b, ok := c[buc]
	if !ok {
		b = make(bucket)
		c[buc] = b
	}

	o, ok := b[obj]
	if !ok {
		o = &object{terms: make(map[string]struct{}, len(terms))}
		b[obj] = o
	}

	for _, term := range terms {
		o.terms[term] = struct{}{}
	}

	i.seq++
	o.seq = i.seq

	i.invalidate()

	return len(terms), nil
}

func (i *InmemoryStore) Pop(ctx context.Context, col, buc, obj, text string) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.checkRunning(); err != nil {
		return 0, err
	}

	o := i.object(col, buc, obj)
	if o == nil {
		return 0, nil
	}

	removed := 0
	for _, term := range Terms(text) {
		if _, ok := o.terms[term]; ok {
			delete(o.terms, term)
			removed++
		}
	}

	if removed > 0 {
		i.invalidate()
	}

	return removed, nil
}

func (i *InmemoryStore) Count(ctx context.Context, col, buc, obj string) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	c := i.collections[col]

	switch {
	case buc == "":
		return len(c), nil

	case obj == "":
		return len(c[buc]), nil

	default:
		if o := i.object(col, buc, obj); o != nil {
			return len(o.terms), nil
		}
		return 0, nil
	}
}

func (i *InmemoryStore) FlushCollection(ctx context.Context, col string) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	flushed := 0
	for _, b := range i.collections[col] {
		flushed += len(b)
	}

	delete(i.collections, col)
	i.invalidate()

	return flushed, nil
}

func (i *InmemoryStore) FlushBucket(ctx context.Context, col, buc string) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	c := i.collections[col]
	flushed := len(c[buc])

	delete(c, buc)
	i.invalidate()

	return flushed, nil
}

func (i *InmemoryStore) FlushObject(ctx context.Context, col, buc, obj string) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	o := i.object(col, buc, obj)
	if o == nil {
		return 0, nil
	}

	flushed := len(o.terms)

	delete(i.collections[col][buc], obj)
	i.invalidate()

	return flushed, nil
}

// Query returns the objects holding every term, most recently pushed first.
func (i *InmemoryStore) Query(ctx context.Context, col, buc, terms string, limit, offset int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	key := cacheKey("query", col, buc, terms, limit, offset)
	if cached, ok := i.cached(key); ok {
		return cached, nil
	}

	wanted := Terms(terms)

	i.mu.RLock()
	defer i.mu.RUnlock()

	type hit struct {
		id  string
		seq uint64
	}

	var hits []hit

	if len(wanted) > 0 {
	objects:
		for id, o := range i.collections[col][buc] {
			for _, term := range wanted {
				if _, ok := o.terms[term]; !ok {
					continue objects
				}
			}

			hits = append(hits, hit{id: id, seq: o.seq})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		return hits[a].seq > hits[b].seq
	})

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}

	return i.remember(key, page(ids, limit, offset)), nil
}

// Suggest completes word with the bucket's terms, the most widespread first.
func (i *InmemoryStore) Suggest(ctx context.Context, col, buc, word string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	prefix := strings.ToLower(word)

	key := cacheKey("suggest", col, buc, prefix, limit, 0)
	if cached, ok := i.cached(key); ok {
		return cached, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	counts := make(map[string]int)
	for _, o := range i.collections[col][buc] {
		for term := range o.terms {
			if strings.HasPrefix(term, prefix) {
				counts[term]++
			}
		}
	}

	words := make([]string, 0, len(counts))
	for term := range counts {
		words = append(words, term)
	}

	sort.Slice(words, func(a, b int) bool {
		if counts[words[a]] != counts[words[b]] {
			return counts[words[a]] > counts[words[b]]
		}
		return words[a] < words[b]
	})

	return i.remember(key, page(words, limit, 0)), nil
}

// List returns the bucket's terms in alphabetical order.
func (i *InmemoryStore) List(ctx context.Context, col, buc string, limit, offset int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	key := cacheKey("list", col, buc, "", limit, offset)
	if cached, ok := i.cached(key); ok {
		return cached, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, o := range i.collections[col][buc] {
		for term := range o.terms {
			seen[term] = struct{}{}
		}
	}

	words := make([]string, 0, len(seen))
	for term := range seen {
		words = append(words, term)
	}
	sort.Strings(words)

	return i.remember(key, page(words, limit, offset)), nil
}

// Consolidate drops objects, buckets and collections left empty by pops and
// flushes.
func (i *InmemoryStore) Consolidate(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.checkRunning(); err != nil {
		return err
	}

	for colName, c := range i.collections {
		for bucName, b := range c {
			for objName, o := range b {
				if len(o.terms) == 0 {
					delete(b, objName)
				}
			}

			if len(b) == 0 {
				delete(c, bucName)
			}
		}

		if len(c) == 0 {
			delete(i.collections, colName)
		}
	}

	i.invalidate()

	return nil
}

func (i *InmemoryStore) Stats() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	stats := Stats{Collections: len(i.collections)}
	for _, c := range i.collections {
		stats.Buckets += len(c)
		for _, b := range c {
			stats.Objects += len(b)
			for _, o := range b {
				stats.Terms += len(o.terms)
			}
		}
	}

	return stats
}

func (i *InmemoryStore) object(col, buc, obj string) *object {
	return i.collections[col][buc][obj]
}

// invalidate drops cached results. Callers hold the write lock.
func (i *InmemoryStore) invalidate() {
	i.results.DeleteAll()
}

func (i *InmemoryStore) cached(key string) ([]string, bool) {
	item := i.results.Get(key)
	if item == nil {
		return nil, false
	}

	return append([]string{}, item.Value()...), true
}

func (i *InmemoryStore) remember(key string, results []string) []string {
	i.results.Set(key, results, ttlcache.DefaultTTL)

	return append([]string{}, results...)
}

func (i *InmemoryStore) checkRunning() error {
	if !i.isRunning() {
		return ErrStoreClosed
	}

	return nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

func cacheKey(kind, col, buc, arg string, limit, offset int) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%d\x00%d", kind, col, buc, arg, limit, offset)
}

func page(items []string, limit, offset int) []string {
	if offset >= len(items) {
		return []string{}
	}

	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}

	return items
}

var _ Store = (*InmemoryStore)(nil)
