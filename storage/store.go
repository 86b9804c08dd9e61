package storage

import "context"

// Store is the index behind a development server.
type Store interface {
	Push(ctx context.Context, collection, bucket, object, text string) (int, error)
	Pop(ctx context.Context, collection, bucket, object, text string) (int, error)
	Count(ctx context.Context, collection, bucket, object string) (int, error)

	FlushCollection(ctx context.Context, collection string) (int, error)
	FlushBucket(ctx context.Context, collection, bucket string) (int, error)
	FlushObject(ctx context.Context, collection, bucket, object string) (int, error)

	Query(ctx context.Context, collection, bucket, terms string, limit, offset int) ([]string, error)
	Suggest(ctx context.Context, collection, bucket, word string, limit int) ([]string, error)
	List(ctx context.Context, collection, bucket string, limit, offset int) ([]string, error)

	Consolidate(ctx context.Context) error

	Backup(path string) error
	Restore(path string) error

	Stats() Stats

	Close() error
}

type Stats struct {
	Collections int `json:"collections"`
	Buckets     int `json:"buckets"`
	Objects     int `json:"objects"`
	Terms       int `json:"terms"`
}

const (
	DefaultQueryLimit   = 10
	DefaultSuggestLimit = 5
	DefaultListLimit    = 100
)
