package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/utils"
)

const (
	ProviderGemini = "gemini"

	defaultModel      = "gemini-embedding-001"
	defaultMaxRetries = 3
	defaultMaxLogLen  = 120
	// Gemini rejects batch embedding requests above this size.
	maxBatchSize = 100

	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"

	defaultBaseDelay = time.Second
	// Quota errors asking to wait longer than this are returned immediately.
	maxRetryDelay = 10 * time.Second
)

var retryHint = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiConfig holds the Gemini embedding settings.
type GeminiConfig struct {
	APIKey            string
	Model             string
	Dimensions        int
	MaxRetries        int
	RequestsPerMinute int
	MaxLogLength      int
}

// Gemini embeds text with the Gemini API.
type Gemini struct {
	models     contentEmbedder
	model      string
	dimensions int
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
	maxLogLen  int
	logger     *zap.Logger
}

// NewGemini creates a Gemini embedder configured for the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, cfg, log), nil
}

func newGemini(models contentEmbedder, cfg GeminiConfig, log *zap.Logger) *Gemini {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Gemini{
		models:     models,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: retries,
		baseDelay:  defaultBaseDelay,
		limiter:    rate.NewLimiter(limit, 1),
		maxLogLen:  maxLogLen,
		logger:     logger.WithEmbedder(log, ProviderGemini, model),
	}
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Dimensions() int { return g.dimensions }

func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gemini) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))

		batch, err := g.embed(ctx, texts[start:end], taskDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (g *Gemini) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		})
	}

	cfg := &genai.EmbedContentConfig{TaskType: task}
	if g.dimensions > 0 {
		dims := int32(g.dimensions)
		cfg.OutputDimensionality = &dims
	}

	if len(texts) > 0 {
		g.logger.Debug("embedding texts",
			zap.String("task", task),
			zap.Int("count", len(texts)),
			zap.String("first", utils.TruncateForLog(texts[0], g.maxLogLen)),
		)
	}

	resp, err := g.embedWithRetry(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini returned empty embedding at position %d", i)
		}
		if g.dimensions > 0 && len(e.Values) != g.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dimensions, len(e.Values))
		}
		vectors = append(vectors, e.Values)
	}

	return vectors, nil
}

func (g *Gemini) embedWithRetry(ctx context.Context, contents []*genai.Content, cfg *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		resp, err := g.models.EmbedContent(ctx, g.model, contents, cfg)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		delay, retry := g.retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("embedding request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := utils.WaitFor(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

// retryDelay decides whether err is temporary and how long to wait before
// the next attempt.
func (g *Gemini) retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return 0, false
		}
		apiErr = *ptr
	}

	backoff := utils.Backoff(g.baseDelay, attempt, maxRetryDelay)

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	case apiErr.Code == http.StatusTooManyRequests:
		hint, ok := parseRetryHint(apiErr.Message)
		if !ok {
			return backoff, true
		}
		if hint > maxRetryDelay {
			return 0, false
		}
		return hint, true
	default:
		return 0, false
	}
}

func parseRetryHint(message string) (time.Duration, bool) {
	m := retryHint.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}
