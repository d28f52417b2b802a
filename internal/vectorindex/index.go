package vectorindex

import (
	"context"
	"errors"
)

var ErrMalformedHit = errors.New("malformed hit")

// Index is a vector store addressed by string ids with per-record metadata.
type Index interface {
	Query(ctx context.Context, q Query) ([]Hit, error)
	Upsert(ctx context.Context, records []Record) error
	Close() error
}

// Query describes one nearest-neighbour lookup. Filter is an equality
// conjunction over record metadata. An empty Namespace searches all records.
type Query struct {
	Vector          []float32
	TopK            int
	Filter          map[string]any
	IncludeValues   bool
	IncludeMetadata bool
	Namespace       string
}

type Hit struct {
	ID       string
	Score    float32
	Values   []float32
	Metadata map[string]any
}

type Record struct {
	ID        string
	Values    []float32
	Metadata  map[string]any
	Namespace string
}
