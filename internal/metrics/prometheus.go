package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_router_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"agent_type"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_query_total",
			Help: "Total number of queries routed",
		},
		[]string{"agent_type", "intent"},
	)

	Escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_escalations_total",
			Help: "Queries flagged for human escalation",
		},
		[]string{"agent_type"},
	)

	ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_router_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"agent_type"},
	)

	RetrievedDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_router_retrieved_documents",
			Help:    "Number of knowledge documents spliced into a response",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	RetrievalFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_router_retrieval_failures_total",
			Help: "Queries answered without context because embedding failed",
		},
	)

	SatisfactionScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_router_satisfaction_score",
			Help: "Mean customer feedback rating",
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_feedback_total",
			Help: "Feedback records received",
		},
		[]string{"status"},
	)

	AnalyticsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_analytics_dropped_total",
			Help: "Analytics records dropped because of an internal fault or shutdown",
		},
		[]string{"kind"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_router_websocket_connections",
			Help: "Open websocket chat connections",
		},
	)

	KnowledgeDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_router_knowledge_documents",
			Help: "Documents loaded into the knowledge store",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			QueryDuration,
			QueryTotal,
			Escalations,
			ConfidenceScore,
			RetrievedDocuments,
			RetrievalFailures,
			SatisfactionScore,
			FeedbackTotal,
			AnalyticsDropped,
			CacheHits,
			CacheMisses,
			ActiveConnections,
			KnowledgeDocuments,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
