package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/vectorindex"
)

// SelectCandidates runs one filtered top-probeK query and collects the jobs it
// touches. Hits without a recognisable job are skipped.
func SelectCandidates(ctx context.Context, index vectorindex.Index, query []float32, filter Filter, probeK int, namespace string, logger *zap.Logger) (*CandidateSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	hits, err := index.Query(ctx, vectorindex.Query{
		Vector:          query,
		TopK:            probeK,
		Filter:          filter.Normalize(),
		IncludeMetadata: true,
		Namespace:       namespace,
	})
	if err != nil {
		return newCandidateSet(), fmt.Errorf("candidate probe: %w", err)
	}

	candidates := newCandidateSet()
	skipped := 0
	for _, hit := range hits {
		md := Metadata(hit.Metadata)

		jobID := ExtractJobID(hit.ID, md)
		if jobID == "" {
			skipped++
			continue
		}

		candidates.JobIDs[jobID] = struct{}{}
		candidates.seed(jobID, md)
	}

	logger.Debug("candidate probe",
		zap.Int("hits", len(hits)),
		zap.Int("candidates", candidates.Len()),
		zap.Int("skipped", skipped),
	)

	return candidates, nil
}
