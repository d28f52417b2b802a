package embedding

import (
	"context"
	"errors"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector size, or 0 when it is not known up front.
	Dimensions() int
	Model() string
}
