package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/cv-matcher/internal/vectorindex"
)

func TestSelectCandidates(t *testing.T) {
	t.Parallel()

	index := seedIndex(t,
		jdRecord{id: "j1__0", values: []float32{1, 0}, metadata: map[string]any{"company_name": "First"}},
		jdRecord{id: "j1__1", values: []float32{0.9, 0.1}, metadata: map[string]any{"company_name": "Second"}},
		jdRecord{id: "orphan", values: []float32{1, 0}},
		jdRecord{id: "point-7", values: []float32{0.5, 0.5}, metadata: map[string]any{"job_url": "https://hh.ru/vacancy/7"}},
	)

	candidates, err := SelectCandidates(context.Background(), index, []float32{1, 0}, nil, 10, "", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, candidates.Len())
	assert.True(t, candidates.Has("j1"))
	assert.True(t, candidates.Has("7"))
	assert.False(t, candidates.Has("orphan"))
	assert.Equal(t, "First", candidates.SeedMetadata["j1"].String("company_name"))
}

func TestSelectCandidatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("down")
	candidates, err := SelectCandidates(context.Background(), failingIndex{err: boom}, []float32{1}, nil, 10, "", nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, candidates.Len())
}

func TestFetchBundles(t *testing.T) {
	t.Parallel()

	index := seedIndex(t,
		jdRecord{id: "j1__0", values: []float32{1, 0}},
		jdRecord{id: "j2__0", values: []float32{0.8, 0.2}, metadata: map[string]any{"text": "Go", "company_name": "Two"}},
		jdRecord{id: "j1__1", values: []float32{0.7, 0.3}, metadata: map[string]any{"company_name": "One"}},
		jdRecord{id: "j3__0", values: []float32{0.6, 0.4}},
	)

	candidates := newCandidateSet()
	candidates.JobIDs["j1"] = struct{}{}
	candidates.JobIDs["j2"] = struct{}{}

	bundles, err := FetchBundles(context.Background(), index, []float32{1, 0}, candidates, FetchOptions{Budget: 10}, nil)
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	assert.Equal(t, "j1", bundles[0].JobID)
	assert.Len(t, bundles[0].Chunks, 2)
	assert.Equal(t, "One", bundles[0].Metadata.String("company_name"))

	assert.Equal(t, "j2", bundles[1].JobID)
	require.Len(t, bundles[1].Chunks, 1)
	assert.Equal(t, "Go", bundles[1].Chunks[0].Text)
	assert.Equal(t, []float32{0.8, 0.2}, bundles[1].Chunks[0].Values)

	assert.Equal(t, "One", candidates.SeedMetadata["j1"].String("company_name"))
	assert.Equal(t, "Two", candidates.SeedMetadata["j2"].String("company_name"))
}

func TestFetchBundlesKeepsSeedMetadata(t *testing.T) {
	t.Parallel()

	index := seedIndex(t, jdRecord{id: "j1__0", values: []float32{1, 0}, metadata: map[string]any{"company_name": "Scan"}})

	candidates := newCandidateSet()
	candidates.JobIDs["j1"] = struct{}{}
	candidates.seed("j1", Metadata{"company_name": "Probe"})

	_, err := FetchBundles(context.Background(), index, []float32{1, 0}, candidates, FetchOptions{Budget: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Probe", candidates.SeedMetadata["j1"].String("company_name"))
}

type flakyFollowUp struct {
	vectorindex.Index
	err error
}

func (f flakyFollowUp) Query(ctx context.Context, q vectorindex.Query) ([]vectorindex.Hit, error) {
	if q.Filter != nil {
		return nil, f.err
	}
	return f.Index.Query(ctx, q)
}

func TestFetchBundlesFollowUpErrorsAreSkipped(t *testing.T) {
	t.Parallel()

	index := flakyFollowUp{
		Index: seedIndex(t,
			jdRecord{id: "j1__0", values: []float32{1, 0}},
			jdRecord{id: "j2__0", values: []float32{0, 1}, metadata: map[string]any{"job_id": "j2"}},
		),
		err: errors.New("timeout"),
	}

	candidates := newCandidateSet()
	candidates.JobIDs["j1"] = struct{}{}
	candidates.JobIDs["j2"] = struct{}{}

	bundles, err := FetchBundles(context.Background(), index, []float32{1, 0}, candidates, FetchOptions{Budget: 1, FetchMissing: true}, nil)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "j1", bundles[0].JobID)
}

func TestFetchBundlesScanError(t *testing.T) {
	t.Parallel()

	boom := errors.New("down")
	candidates := newCandidateSet()
	candidates.JobIDs["j1"] = struct{}{}

	_, err := FetchBundles(context.Background(), failingIndex{err: boom}, []float32{1}, candidates, FetchOptions{Budget: 1}, nil)
	assert.ErrorIs(t, err, boom)
}
