// Package retrieval ranks knowledge documents by embedding similarity to a query.
package retrieval

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/support-router/backend/internal/knowledge"
	"github.com/support-router/backend/internal/metrics"
	"github.com/support-router/backend/pkg/logger"
)

// Match pairs a document with its cosine similarity to the query.
type Match struct {
	Document   knowledge.Document
	Similarity float64
}

// Retriever is read-only and safe for concurrent use.
type Retriever struct {
	store *knowledge.Store
}

func NewRetriever(store *knowledge.Store) *Retriever {
	return &Retriever{store: store}
}

// Rank orders every document by descending similarity, keeping load order among equal scores, and
// returns at most topK matches.
func (r *Retriever) Rank(queryEmbedding []float32, topK int) []Match {
	if r.store == nil || r.store.Len() == 0 || topK <= 0 {
		return []Match{}
	}

	docs := r.store.Documents()
	matches := make([]Match, len(docs))
	for i, d := range docs {
		matches[i] = Match{Document: d, Similarity: CosineSimilarity(queryEmbedding, d.Embedding)}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Retrieve returns the topK most similar documents.
func (r *Retriever) Retrieve(queryEmbedding []float32, topK int) []knowledge.Document {
	matches := r.Rank(queryEmbedding, topK)
	docs := make([]knowledge.Document, len(matches))
	for i, m := range matches {
		docs[i] = m.Document
	}
	return docs
}

// RetrieveForQuery embeds query with the store's embedder and ranks the store. Embedding failures
// are logged and yield an empty result.
func (r *Retriever) RetrieveForQuery(ctx context.Context, query string, topK int) []Match {
	if r.store == nil || r.store.Len() == 0 {
		return []Match{}
	}

	vec, err := r.store.Embedder().Embed(ctx, query)
	if err != nil {
		metrics.RetrievalFailures.Inc()
		logger.Warn("Query embedding failed, answering without context", zap.Error(err))
		return []Match{}
	}
	return r.Rank(vec, topK)
}

// CosineSimilarity returns 0 for vectors of different length or zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0
	}
	return sim
}
