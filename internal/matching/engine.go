package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/segment"
	"github.com/spigell/cv-matcher/internal/utils"
	"github.com/spigell/cv-matcher/internal/vectorindex"
)

const (
	DefaultCandidateProbeK = 50
	DefaultFetchBudget     = 2000
	DefaultNumWorkers      = 4
	DefaultTopK            = 4

	QueryFusionFirst = "first"
	QueryFusionMean  = "mean"

	minResumeLength = 10
	logPreviewLen   = 80
)

// ErrEmbedder marks failures of the embedding provider. They abort the request.
var ErrEmbedder = errors.New("embedder failure")

// Config tunes the matching pipeline. Zero values are replaced by defaults in Normalize.
type Config struct {
	MinChunkLength  int    `mapstructure:"min-chunk-length" validate:"min=1"`
	MaxChunkLength  int    `mapstructure:"max-chunk-length" validate:"gtefield=MinChunkLength"`
	CandidateProbeK int    `mapstructure:"candidate-probe-k" validate:"min=1"`
	FetchBudget     int    `mapstructure:"fetch-budget" validate:"min=1"`
	NumWorkers      int    `mapstructure:"num-workers" validate:"min=1,max=256"`
	TopK            int    `mapstructure:"top-k" validate:"min=1"`
	QueryFusion     string `mapstructure:"query-fusion" validate:"oneof=first mean"`
	FetchMissing    bool   `mapstructure:"fetch-missing"`
	Namespace       string `mapstructure:"namespace"`
}

// Normalize fills unset fields with defaults.
func (c Config) Normalize() Config {
	if c.MinChunkLength <= 0 {
		c.MinChunkLength = segment.DefaultMinChunkLength
	}
	if c.MaxChunkLength <= 0 {
		c.MaxChunkLength = segment.DefaultMaxChunkLength
	}
	if c.CandidateProbeK <= 0 {
		c.CandidateProbeK = DefaultCandidateProbeK
	}
	if c.FetchBudget <= 0 {
		c.FetchBudget = DefaultFetchBudget
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = DefaultNumWorkers
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	c.QueryFusion = strings.ToLower(strings.TrimSpace(c.QueryFusion))
	if c.QueryFusion == "" {
		c.QueryFusion = QueryFusionFirst
	}
	return c
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid matching config: %w", err)
	}
	return nil
}

// BundleFilter drops fetched jobs before they are scored.
type BundleFilter interface {
	Apply(ctx context.Context, bundles []JobBundle) ([]JobBundle, error)
}

type Option func(*Engine)

// WithBundleFilter runs f between fetching and scoring.
func WithBundleFilter(f BundleFilter) Option {
	return func(e *Engine) {
		if f != nil {
			e.filters = append(e.filters, f)
		}
	}
}

// Engine matches résumés against the JD corpus held in a vector index.
// It keeps no per-request state and is safe for concurrent use.
type Engine struct {
	cfg       Config
	segmenter *segment.Segmenter
	embedder  embedding.Embedder
	index     vectorindex.Index
	filters   []BundleFilter
	logger    *zap.Logger
}

func New(cfg Config, embedder embedding.Embedder, index vectorindex.Index, logger *zap.Logger, opts ...Option) (*Engine, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if index == nil {
		return nil, errors.New("vector index is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:       cfg,
		segmenter: segment.New(cfg.MinChunkLength, cfg.MaxChunkLength),
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Match returns up to topK jobs for the résumé, best first. A non-positive
// topK uses the configured default. Only embedder failures and cancellation
// are returned as errors; every other failure yields an empty result.
func (e *Engine) Match(ctx context.Context, resumeText string, filter Filter, topK int) (*Result, error) {
	started := time.Now()
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	if utf8.RuneCountInString(strings.TrimSpace(resumeText)) < minResumeLength {
		e.logger.Info("resume is empty or too short")
		return EmptyResult(), nil
	}

	chunks := e.segmenter.Segment(resumeText)
	if len(chunks) == 0 {
		e.logger.Info("resume produced no chunks")
		return EmptyResult(), nil
	}
	e.logger.Debug("resume segmented",
		zap.Int("chunks", len(chunks)),
		zap.String("first", utils.TruncateForLog(chunks[0], logPreviewLen)),
	)

	cv, query, err := e.embedResume(ctx, chunks)
	if err != nil {
		return nil, err
	}

	candidates, err := SelectCandidates(ctx, e.index, query, filter, e.cfg.CandidateProbeK, e.cfg.Namespace, e.logger)
	if err != nil {
		return e.indexFailure(ctx, err)
	}
	if candidates.Len() == 0 {
		e.logger.Info("no candidates found")
		return EmptyResult(), nil
	}

	bundles, err := FetchBundles(ctx, e.index, query, candidates, FetchOptions{
		Budget:       e.cfg.FetchBudget,
		FetchMissing: e.cfg.FetchMissing,
	}, e.logger)
	if err != nil {
		return e.indexFailure(ctx, err)
	}

	for _, f := range e.filters {
		if bundles, err = f.Apply(ctx, bundles); err != nil {
			return nil, fmt.Errorf("filtering bundles: %w", err)
		}
	}

	scored, err := ScoreBundles(ctx, cv, bundles, e.cfg.NumWorkers, e.logger)
	if err != nil {
		return nil, err
	}

	result := Rank(scored, candidates.SeedMetadata, topK)

	e.logger.Info("matching finished",
		zap.Int("chunks", len(chunks)),
		zap.Int("candidates", candidates.Len()),
		zap.Int("bundles", len(bundles)),
		zap.Int("scored", len(scored)),
		zap.Int("returned", result.Len()),
		zap.Duration("took", time.Since(started)),
	)

	return result, nil
}

// embedResume returns the résumé chunk matrix and the probe vector.
func (e *Engine) embedResume(ctx context.Context, chunks []string) (Matrix, []float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return Matrix{}, nil, fmt.Errorf("%w: embedding resume chunks: %w", ErrEmbedder, err)
	}
	if len(vectors) != len(chunks) {
		return Matrix{}, nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedder, len(vectors), len(chunks))
	}

	cv, err := Stack(vectors)
	if err != nil {
		return Matrix{}, nil, fmt.Errorf("%w: %w", ErrEmbedder, err)
	}

	var query []float32
	switch e.cfg.QueryFusion {
	case QueryFusionMean:
		query, err = MeanPool(vectors)
	default:
		query, err = e.embedder.EmbedQuery(ctx, chunks[0])
	}
	if err != nil {
		return Matrix{}, nil, fmt.Errorf("%w: embedding probe query: %w", ErrEmbedder, err)
	}

	return cv, query, nil
}

func (e *Engine) indexFailure(ctx context.Context, err error) (*Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	e.logger.Warn("vector index failure, returning no matches", zap.Error(err))
	return EmptyResult(), nil
}
