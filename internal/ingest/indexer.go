package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/segment"
	"github.com/spigell/cv-matcher/internal/vectorindex"
)

const defaultWorkers = 4

type Options struct {
	MinChunkLength int
	MaxChunkLength int
	Namespace      string
	Workers        int
}

// Stats summarises one IndexJobs call.
type Stats struct {
	Jobs    int
	Skipped int
	Chunks  int
}

// Indexer segments job descriptions, embeds the chunks and upserts them.
type Indexer struct {
	segmenter *segment.Segmenter
	embedder  embedding.Embedder
	index     vectorindex.Index
	namespace string
	workers   int
	logger    *zap.Logger
}

func NewIndexer(embedder embedding.Embedder, index vectorindex.Index, opts Options, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	return &Indexer{
		segmenter: segment.New(opts.MinChunkLength, opts.MaxChunkLength),
		embedder:  embedder,
		index:     index,
		namespace: opts.Namespace,
		workers:   opts.Workers,
		logger:    log,
	}
}

// IndexJobs indexes jobs concurrently. Invalid jobs and jobs without text are
// skipped; embedder and index errors abort the run.
func (x *Indexer) IndexJobs(ctx context.Context, jobs []Job) (Stats, error) {
	var (
		mu    sync.Mutex
		stats Stats
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(x.workers)

	for _, job := range jobs {
		g.Go(func() error {
			chunks, err := x.indexJob(gCtx, job)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err != nil:
				return err
			case chunks == 0:
				stats.Skipped++
			default:
				stats.Jobs++
				stats.Chunks += chunks
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	x.logger.Info("jobs indexed",
		zap.Int("jobs", stats.Jobs),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
	)

	return stats, nil
}

func (x *Indexer) indexJob(ctx context.Context, job Job) (int, error) {
	log := x.logger.With(logger.JobFields(job.ID, job.Company)...)

	if err := job.Validate(); err != nil {
		log.Warn("skipping invalid job", zap.Error(err))
		return 0, nil
	}

	chunks := x.segmenter.Segment(job.Body())
	if len(chunks) == 0 {
		log.Warn("skipping job without text")
		return 0, nil
	}

	vectors, err := x.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding job %s: %w", job.ID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedding job %s: got %d vectors for %d chunks", job.ID, len(vectors), len(chunks))
	}

	records := make([]vectorindex.Record, len(chunks))
	for n, chunk := range chunks {
		records[n] = vectorindex.Record{
			ID:        ChunkID(job.ID, n),
			Values:    vectors[n],
			Metadata:  job.Metadata(chunk),
			Namespace: x.namespace,
		}
	}

	if err := x.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upserting job %s: %w", job.ID, err)
	}

	log.Debug("job indexed", zap.Int("chunks", len(chunks)))

	return len(chunks), nil
}
