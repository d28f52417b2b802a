package matching

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/vectorindex"
)

// Upper bound of chunks requested per job by follow-up lookups.
const followUpTopK = 256

// FetchOptions controls how JD chunks are materialised.
type FetchOptions struct {
	// Budget is the top-k of the full-scan query. It should be at least the
	// number of chunks in the corpus.
	Budget int
	// FetchMissing issues one job_id-filtered query for every candidate the
	// scan did not reach.
	FetchMissing bool
}

// FetchBundles materialises every chunk of the candidate jobs with a single
// unfiltered full-scan query. Bundles are returned in first-seen order and
// candidates' seed metadata is extended first-wins.
func FetchBundles(ctx context.Context, index vectorindex.Index, query []float32, candidates *CandidateSet, opts FetchOptions, logger *zap.Logger) ([]JobBundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	hits, err := index.Query(ctx, vectorindex.Query{
		Vector:          query,
		TopK:            opts.Budget,
		IncludeValues:   true,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("full scan: %w", err)
	}

	b := newBundler(candidates)
	for _, hit := range hits {
		b.add(hit)
	}

	missing := b.missing()
	if len(missing) > 0 && opts.FetchMissing {
		for _, jobID := range missing {
			hits, err := index.Query(ctx, vectorindex.Query{
				Vector:          query,
				TopK:            followUpTopK,
				Filter:          map[string]any{"job_id": jobID},
				IncludeValues:   true,
				IncludeMetadata: true,
			})
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Debug("follow-up fetch failed", zap.String("job_id", jobID), zap.Error(err))
				continue
			}

			for _, hit := range hits {
				if ExtractJobID(hit.ID, hit.Metadata) == jobID {
					b.add(hit)
				}
			}
		}
		missing = b.missing()
	}

	logger.Debug("full scan",
		zap.Int("hits", len(hits)),
		zap.Int("bundles", len(b.bundles)),
		zap.Int("dropped_candidates", len(missing)),
	)

	return b.bundles, nil
}

type bundler struct {
	candidates *CandidateSet
	bundles    []JobBundle
	position   map[string]int
}

func newBundler(candidates *CandidateSet) *bundler {
	return &bundler{
		candidates: candidates,
		position:   make(map[string]int),
	}
}

func (b *bundler) add(hit vectorindex.Hit) {
	md := Metadata(hit.Metadata)

	jobID := ExtractJobID(hit.ID, md)
	if jobID == "" || !b.candidates.Has(jobID) {
		return
	}

	b.candidates.seed(jobID, md)

	idx, ok := b.position[jobID]
	if !ok {
		idx = len(b.bundles)
		b.position[jobID] = idx
		b.bundles = append(b.bundles, JobBundle{JobID: jobID})
	}

	bundle := &b.bundles[idx]
	if len(bundle.Metadata) == 0 && len(md) > 0 {
		bundle.Metadata = md
	}
	bundle.Chunks = append(bundle.Chunks, JDChunk{
		VectorID: hit.ID,
		JobID:    jobID,
		Values:   hit.Values,
		Text:     ChunkText(md),
		Metadata: md,
	})
}

func (b *bundler) missing() []string {
	var missing []string
	for jobID := range b.candidates.JobIDs {
		if _, ok := b.position[jobID]; !ok {
			missing = append(missing, jobID)
		}
	}
	sort.Strings(missing)
	return missing
}
