package matching

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spigell/cv-matcher/internal/vectorindex"
)

// stubEmbedder returns the vector registered for a text, or fallback.
type stubEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	queries  int
	docs     int
}

func (s *stubEmbedder) Model() string   { return "stub" }
func (s *stubEmbedder) Dimensions() int { return len(s.fallback) }

func (s *stubEmbedder) lookup(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	return s.fallback
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.err != nil {
		return nil, s.err
	}
	return s.lookup(text), nil
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.lookup(text)
	}
	return out, nil
}

type failingIndex struct {
	err error
}

func (f failingIndex) Query(context.Context, vectorindex.Query) ([]vectorindex.Hit, error) {
	return nil, f.err
}

func (f failingIndex) Upsert(context.Context, []vectorindex.Record) error { return f.err }
func (f failingIndex) Close() error                                       { return nil }

// recordingIndex wraps an index and keeps every query it served.
type recordingIndex struct {
	vectorindex.Index

	mu      sync.Mutex
	queries []vectorindex.Query
}

func (r *recordingIndex) Query(ctx context.Context, q vectorindex.Query) ([]vectorindex.Hit, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	return r.Index.Query(ctx, q)
}

type jdRecord struct {
	id       string
	values   []float32
	metadata map[string]any
}

func seedIndex(t *testing.T, records ...jdRecord) *vectorindex.Memory {
	t.Helper()

	idx := vectorindex.NewMemory()
	batch := make([]vectorindex.Record, 0, len(records))
	for _, r := range records {
		batch = append(batch, vectorindex.Record{ID: r.id, Values: r.values, Metadata: r.metadata})
	}
	require.NoError(t, idx.Upsert(context.Background(), batch))

	return idx
}

const resumeText = "Senior Go engineer with distributed systems experience."

func newTestEngine(t *testing.T, cfg Config, embedder *stubEmbedder, index vectorindex.Index, opts ...Option) *Engine {
	t.Helper()

	e, err := New(cfg, embedder, index, nil, opts...)
	require.NoError(t, err)

	return e
}
