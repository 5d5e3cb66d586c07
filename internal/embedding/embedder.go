// Package embedding turns text into fixed-dimension vectors for knowledge retrieval.
package embedding

import (
	"context"
	"errors"
)

var ErrEmptyInput = errors.New("embedding input is empty")

// Embedder produces vectors of a fixed dimension. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}
