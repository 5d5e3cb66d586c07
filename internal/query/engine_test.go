package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-router/backend/internal/agent"
	"github.com/support-router/backend/internal/analytics"
	"github.com/support-router/backend/internal/embedding"
	"github.com/support-router/backend/internal/intent"
	"github.com/support-router/backend/internal/knowledge"
	"github.com/support-router/backend/internal/retrieval"
)

type brokenEmbedder struct{ *embedding.HashingEmbedder }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func newTestEngine(t *testing.T, e embedding.Embedder, opts ...Option) (*Engine, *analytics.Aggregator) {
	t.Helper()

	store, err := knowledge.NewStore(context.Background(), e, knowledge.DefaultDocuments())
	require.NoError(t, err)

	agg := analytics.New(analytics.Options{})
	return NewEngine(retrieval.NewRetriever(store), agent.NewRouter(), agg, opts...), agg
}

func hashing(t *testing.T) *embedding.HashingEmbedder {
	h, err := embedding.NewHashingEmbedder(256)
	require.NoError(t, err)
	return h
}

func TestProcessQueryTechnical(t *testing.T) {
	engine, agg := newTestEngine(t, hashing(t))

	resp, err := engine.ProcessQuery(context.Background(), QueryRequest{
		Query:      "I cannot log into my account",
		CustomerID: "cust-1",
		SessionID:  "sess-1",
		Priority:   agent.PriorityUrgent,
	})
	require.NoError(t, err)

	assert.Equal(t, intent.Technical, resp.Intent)
	assert.Equal(t, agent.KindTechnical, resp.AgentType)
	assert.Equal(t, 0.85, resp.Confidence)
	assert.True(t, resp.Escalate)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, DefaultTopK, resp.KnowledgeSources)
	assert.Len(t, resp.Sources, DefaultTopK)
	assert.NotEmpty(t, resp.ID)
	assert.Contains(t, resp.Response, "Based on our documentation")

	history := agg.History()
	require.Len(t, history, 1)
	assert.Equal(t, resp.ID, history[0].ID)
	assert.Equal(t, "technical", history[0].AgentType)
	assert.Equal(t, "cust-1", history[0].CustomerID)

	sess, ok := agg.SessionSnapshot("sess-1")
	require.True(t, ok)
	assert.Equal(t, 1, sess.TotalQueries)
}

func TestProcessQueryGeneratesSessionAndDefaults(t *testing.T) {
	engine, agg := newTestEngine(t, hashing(t), WithTopK(1))

	resp, err := engine.ProcessQuery(context.Background(), QueryRequest{
		Query:      "I want a refund for my subscription",
		CustomerID: "cust-2",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, agent.KindBilling, resp.AgentType)
	assert.True(t, resp.Escalate)
	assert.Equal(t, 1, resp.KnowledgeSources)

	_, ok := agg.SessionSnapshot(resp.SessionID)
	assert.True(t, ok)
}

func TestProcessQueryWithoutContextOnEmbeddingFailure(t *testing.T) {
	engine, _ := newTestEngine(t, brokenEmbedder{hashing(t)})

	resp, err := engine.ProcessQuery(context.Background(), QueryRequest{
		Query:      "What are your business hours?",
		CustomerID: "cust-3",
	})
	require.NoError(t, err)

	assert.Equal(t, agent.KindGeneral, resp.AgentType)
	assert.Zero(t, resp.KnowledgeSources)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, resp.Response, "How can I assist you today?")
}

func TestProcessQueryRecoversToErrorVariant(t *testing.T) {
	store, err := knowledge.NewStore(context.Background(), hashing(t), nil)
	require.NoError(t, err)
	agg := analytics.New(analytics.Options{})

	// a nil router panics inside the pipeline
	engine := NewEngine(retrieval.NewRetriever(store), nil, agg)

	resp, err := engine.ProcessQuery(context.Background(), QueryRequest{Query: "help", CustomerID: "c"})
	require.NoError(t, err)

	assert.Equal(t, agent.KindError, resp.AgentType)
	assert.Zero(t, resp.Confidence)
	assert.True(t, resp.Escalate)

	assert.Equal(t, 1, agg.Snapshot().AgentDistribution["error"])
}

func TestProcessQueryCancelled(t *testing.T) {
	engine, agg := newTestEngine(t, hashing(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.ProcessQuery(ctx, QueryRequest{Query: "help"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, agg.History())
}

func TestProcessQueryMeasuresResponseTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	engine, agg := newTestEngine(t, hashing(t), WithClock(clock))

	resp, err := engine.ProcessQuery(context.Background(), QueryRequest{Query: "Payment issue", CustomerID: "c"})
	require.NoError(t, err)

	assert.InDelta(t, 0.25, resp.ResponseTime, 1e-9)
	assert.Equal(t, base, resp.Timestamp)
	assert.InDelta(t, 0.25, agg.History()[0].ResponseTime, 1e-9)
}
