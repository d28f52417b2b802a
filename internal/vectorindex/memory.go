package vectorindex

import (
	"context"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"sort"
	"sync"
)

// Memory is an in-process brute-force index. Ties in score keep insertion order.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// Upsert replaces records with the same id in place and appends new ones.
func (m *Memory) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record id is required")
		}

		stored := Record{
			ID:        r.ID,
			Values:    slices.Clone(r.Values),
			Metadata:  maps.Clone(r.Metadata),
			Namespace: r.Namespace,
		}

		if idx, ok := m.byID[r.ID]; ok {
			m.records[idx] = stored
			continue
		}

		m.byID[r.ID] = len(m.records)
		m.records = append(m.records, stored)
	}

	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.TopK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, r := range m.records {
		if q.Namespace != "" && r.Namespace != q.Namespace {
			continue
		}
		if !matches(r.Metadata, q.Filter) {
			continue
		}

		hit := Hit{ID: r.ID, Score: cosine(q.Vector, r.Values)}
		if q.IncludeValues {
			hit.Values = slices.Clone(r.Values)
		}
		if q.IncludeMetadata {
			hit.Metadata = maps.Clone(r.Metadata)
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}

	return hits, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func matches(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	denom := float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb)))
	if denom <= 1e-9 {
		return 0
	}

	return dot / denom
}
