package matching

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-matcher/internal/logger"
)

// ScoreBundles scores every bundle against cv on at most workers goroutines.
// Bundles that are empty or cannot be stacked against cv are skipped. The
// order of the returned jobs is unspecified.
func ScoreBundles(ctx context.Context, cv Matrix, bundles []JobBundle, workers int, log *zap.Logger) ([]ScoredJob, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if workers <= 0 {
		workers = DefaultNumWorkers
	}

	var (
		mu     sync.Mutex
		scored = make([]ScoredJob, 0, len(bundles))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range bundles {
		if gCtx.Err() != nil {
			break
		}

		bundle := &bundles[i]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			job, ok := scoreBundle(cv, bundle)
			if !ok {
				log.Debug("skipping bundle", logger.JobFields(bundle.JobID, "")...)
				return nil
			}

			mu.Lock()
			scored = append(scored, job)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return scored, nil
}

func scoreBundle(cv Matrix, bundle *JobBundle) (ScoredJob, bool) {
	if len(bundle.Chunks) == 0 {
		return ScoredJob{}, false
	}

	vectors := make([][]float32, len(bundle.Chunks))
	for i, chunk := range bundle.Chunks {
		vectors[i] = chunk.Values
	}

	jd, err := Stack(vectors)
	if err != nil || jd.Cols != cv.Cols {
		return ScoredJob{}, false
	}

	sim := CosineMean(cv, jd)

	return ScoredJob{
		JobID:      bundle.JobID,
		Similarity: sim,
		FinalScore: sim,
	}, true
}
