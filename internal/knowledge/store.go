package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/support-router/backend/internal/embedding"
	"github.com/support-router/backend/pkg/logger"
)

var ErrEmptyKnowledge = errors.New("knowledge store has no documents")

// Store is an immutable, pre-embedded document set. Documents and their vectors are never mutated
// after NewStore returns, so reads need no locking.
type Store struct {
	docs     []Document
	embedder embedding.Embedder
}

// NewStore embeds every document once with embedder. An empty docs slice yields an empty store.
func NewStore(ctx context.Context, embedder embedding.Embedder, docs []Document) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("knowledge store requires an embedder")
	}

	s := &Store{embedder: embedder, docs: make([]Document, len(docs))}
	copy(s.docs, docs)
	if len(s.docs) == 0 {
		logger.Warn("Knowledge store is empty")
		return s, nil
	}

	texts := make([]string, len(s.docs))
	for i, d := range s.docs {
		texts[i] = d.Content
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed knowledge documents: %w", err)
	}
	if len(vectors) != len(s.docs) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(s.docs))
	}

	for i := range s.docs {
		s.docs[i].Embedding = vectors[i]
	}

	logger.Info("Knowledge store built",
		zap.Int("documents", len(s.docs)),
		zap.String("embedder", embedder.Name()),
		zap.Int("dimension", embedder.Dimension()),
	)

	return s, nil
}

func (s *Store) Len() int {
	return len(s.docs)
}

// Documents returns the documents in load order. Callers must not modify the embeddings.
func (s *Store) Documents() []Document {
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *Store) Embedder() embedding.Embedder {
	return s.embedder
}
