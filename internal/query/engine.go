package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/support-router/backend/internal/agent"
	"github.com/support-router/backend/internal/analytics"
	"github.com/support-router/backend/internal/intent"
	"github.com/support-router/backend/internal/knowledge"
	"github.com/support-router/backend/internal/metrics"
	"github.com/support-router/backend/internal/retrieval"
	"github.com/support-router/backend/pkg/logger"
)

const DefaultTopK = 3

type Engine struct {
	classifier *intent.Classifier
	retriever  *retrieval.Retriever
	router     *agent.Router
	analytics  *analytics.Aggregator
	topK       int
	now        func() time.Time
}

type Option func(*Engine)

// WithTopK sets how many knowledge documents are spliced into a reply.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithClassifier(c *intent.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type QueryRequest struct {
	Query      string
	CustomerID string
	SessionID  string
	Priority   agent.Priority
}

type Source struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

type QueryResponse struct {
	ID               string        `json:"id"`
	Response         string        `json:"response"`
	AgentType        agent.Kind    `json:"agent_type"`
	Confidence       float64       `json:"confidence"`
	Escalate         bool          `json:"escalate"`
	SuggestedActions []string      `json:"suggested_actions"`
	Intent           intent.Intent `json:"intent"`
	SessionID        string        `json:"session_id"`
	KnowledgeSources int           `json:"knowledge_sources"`
	Sources          []Source      `json:"sources"`
	ResponseTime     float64       `json:"response_time"`
	Timestamp        time.Time     `json:"timestamp"`
}

func NewEngine(retriever *retrieval.Retriever, router *agent.Router, aggregator *analytics.Aggregator, opts ...Option) *Engine {
	e := &Engine{
		classifier: intent.Default(),
		retriever:  retriever,
		router:     router,
		analytics:  aggregator,
		topK:       DefaultTopK,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessQuery classifies, retrieves context, routes and logs one query. Internal faults yield the
// error variant rather than an error; only a done context is returned as an error.
func (e *Engine) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := e.now()
	queryID := uuid.New().String()
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	if req.Priority == "" {
		req.Priority = agent.PriorityMedium
	}

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("session_id", req.SessionID),
		zap.String("customer_id", req.CustomerID),
		zap.String("priority", string(req.Priority)),
	)

	resp := e.route(ctx, queryID, req)

	if err := ctx.Err(); err != nil {
		logger.Warn("Query abandoned", zap.String("query_id", queryID), zap.Error(err))
		return nil, err
	}

	elapsed := e.now().Sub(startTime)
	resp.ID = queryID
	resp.SessionID = req.SessionID
	resp.ResponseTime = elapsed.Seconds()
	resp.Timestamp = startTime.UTC()

	agentType := resp.AgentType.String()
	metrics.QueryTotal.WithLabelValues(agentType, resp.Intent.String()).Inc()
	metrics.QueryDuration.WithLabelValues(agentType).Observe(resp.ResponseTime)
	metrics.ConfidenceScore.WithLabelValues(agentType).Observe(resp.Confidence)
	metrics.RetrievedDocuments.Observe(float64(resp.KnowledgeSources))
	if resp.Escalate {
		metrics.Escalations.WithLabelValues(agentType).Inc()
	}

	if e.analytics != nil {
		e.analytics.LogQuery(analytics.QueryRecord{
			ID:           queryID,
			Timestamp:    resp.Timestamp,
			Query:        req.Query,
			Response:     resp.Response,
			AgentType:    agentType,
			Confidence:   resp.Confidence,
			ResponseTime: resp.ResponseTime,
			CustomerID:   req.CustomerID,
			SessionID:    req.SessionID,
		})
	}

	logger.Info("Query processed",
		zap.String("query_id", queryID),
		zap.String("intent", resp.Intent.String()),
		zap.String("agent_type", agentType),
		zap.Float64("confidence", resp.Confidence),
		zap.Bool("escalate", resp.Escalate),
		zap.Int("knowledge_sources", resp.KnowledgeSources),
		zap.Duration("latency", elapsed),
	)

	return resp, nil
}

// route runs the pipeline stages, converting a panic in any of them into the error variant.
func (e *Engine) route(ctx context.Context, queryID string, req QueryRequest) (resp *QueryResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Query processing failed",
				zap.String("query_id", queryID),
				zap.String("panic", fmt.Sprint(r)),
			)
			resp = fromAgent(agent.ErrorResponse())
			resp.Intent = intent.General
		}
	}()

	detected := e.classifier.Classify(req.Query)
	logger.Debug("Intent classified",
		zap.String("query_id", queryID),
		zap.String("intent", detected.String()),
		zap.Any("scores", e.classifier.Scores(req.Query)),
	)

	var matches []retrieval.Match
	if e.retriever != nil {
		matches = e.retriever.RetrieveForQuery(ctx, req.Query, e.topK)
	}

	docs := make([]knowledge.Document, len(matches))
	sources := make([]Source, len(matches))
	for i, m := range matches {
		docs[i] = m.Document
		sources[i] = Source{
			DocumentID: m.Document.ID,
			Title:      m.Document.Title,
			Category:   m.Document.Category,
			Similarity: m.Similarity,
		}
	}

	routed := e.router.Route(agent.Request{
		Intent:     detected,
		Query:      req.Query,
		Context:    docs,
		CustomerID: req.CustomerID,
		Priority:   req.Priority,
	})

	resp = fromAgent(routed)
	resp.Intent = detected
	resp.KnowledgeSources = len(docs)
	resp.Sources = sources
	return resp
}

func fromAgent(r agent.Response) *QueryResponse {
	return &QueryResponse{
		Response:         r.Response,
		AgentType:        r.AgentType,
		Confidence:       r.Confidence,
		Escalate:         r.Escalate,
		SuggestedActions: r.SuggestedActions,
		Sources:          []Source{},
	}
}

// Analytics exposes the aggregator the engine logs into.
func (e *Engine) Analytics() *analytics.Aggregator {
	return e.analytics
}
