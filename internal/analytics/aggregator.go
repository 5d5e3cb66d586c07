// Package analytics keeps bounded in-memory history of routed queries and customer feedback and
// derives dashboard views from it.
package analytics

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/support-router/backend/internal/metrics"
	"github.com/support-router/backend/pkg/logger"
)

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrClosed        = errors.New("analytics aggregator is closed")
)

const (
	MinRating = 1
	MaxRating = 5
)

// QueryRecord is one answered query. It is never modified after LogQuery accepts it.
type QueryRecord struct {
	ID             string    `json:"id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	AgentType      string    `json:"agent_type"`
	Confidence     float64   `json:"confidence"`
	ResponseTime   float64   `json:"response_time"`
	CustomerID     string    `json:"customer_id"`
	SessionID      string    `json:"session_id"`
	QueryLength    int       `json:"query_length"`
	ResponseLength int       `json:"response_length"`
}

type FeedbackRecord struct {
	SessionID string    `json:"session_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type agentSample struct {
	confidence   float64
	responseTime float64
	timestamp    time.Time
}

type session struct {
	id           string
	customerID   string
	startTime    time.Time
	lastActivity time.Time
	queries      *ring[QueryRecord]

	// running totals survive eviction from the queries ring
	queryCount    int
	confidenceSum float64
	responseTime  float64
	agentUsage    map[string]int
}

type Options struct {
	HistoryCapacity     int
	RollingWindow       int
	AgentSampleCapacity int
	FeedbackCapacity    int
	SessionHistory      int
	TopQueries          int
	Now                 func() time.Time
	Logger              *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		HistoryCapacity:     10000,
		RollingWindow:       1000,
		AgentSampleCapacity: 10000,
		FeedbackCapacity:    1000,
		SessionHistory:      1000,
		TopQueries:          10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = d.HistoryCapacity
	}
	if o.RollingWindow <= 0 {
		o.RollingWindow = d.RollingWindow
	}
	if o.RollingWindow > o.HistoryCapacity {
		o.RollingWindow = o.HistoryCapacity
	}
	if o.AgentSampleCapacity <= 0 {
		o.AgentSampleCapacity = d.AgentSampleCapacity
	}
	if o.FeedbackCapacity <= 0 {
		o.FeedbackCapacity = d.FeedbackCapacity
	}
	if o.SessionHistory <= 0 {
		o.SessionHistory = d.SessionHistory
	}
	if o.TopQueries <= 0 {
		o.TopQueries = d.TopQueries
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logger.Named("analytics")
	}
	return o
}

// Aggregator owns all analytics state. One RWMutex serializes mutations; snapshots run under the
// read lock and return copies.
type Aggregator struct {
	opts Options
	log  *zap.Logger

	mu        sync.RWMutex
	closed    bool
	startedAt time.Time

	history *ring[QueryRecord]

	rolling    *ring[float64]
	rollingSum float64

	totalQueries      int
	totalSessions     int
	agentDistribution map[string]int
	agentSamples      map[string]*ring[agentSample]
	sessions          map[string]*session

	feedback    *ring[FeedbackRecord]
	ratingSum   int
	ratingCount int
}

func New(opts Options) *Aggregator {
	opts = opts.withDefaults()

	return &Aggregator{
		opts:              opts,
		log:               opts.Logger,
		startedAt:         opts.Now(),
		history:           newRing[QueryRecord](opts.HistoryCapacity),
		rolling:           newRing[float64](opts.RollingWindow),
		agentDistribution: make(map[string]int),
		agentSamples:      make(map[string]*ring[agentSample]),
		sessions:          make(map[string]*session),
		feedback:          newRing[FeedbackRecord](opts.FeedbackCapacity),
	}
}

// LogQuery records an answered query. It never fails: records arriving after Close or during an
// internal fault are dropped, logged and counted.
func (a *Aggregator) LogQuery(rec QueryRecord) {
	defer func() {
		if r := recover(); r != nil {
			metrics.AnalyticsDropped.WithLabelValues("query").Inc()
			a.log.Error("Dropped query record after internal fault",
				zap.Any("panic", r),
				zap.String("session_id", rec.SessionID),
			)
		}
	}()

	rec = a.normalize(rec)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		metrics.AnalyticsDropped.WithLabelValues("query").Inc()
		a.log.Warn("Dropped query record, aggregator closed", zap.String("session_id", rec.SessionID))
		return
	}

	a.history.push(rec)
	a.totalQueries++
	a.agentDistribution[rec.AgentType]++

	samples, ok := a.agentSamples[rec.AgentType]
	if !ok {
		samples = newRing[agentSample](a.opts.AgentSampleCapacity)
		a.agentSamples[rec.AgentType] = samples
	}
	samples.push(agentSample{
		confidence:   rec.Confidence,
		responseTime: rec.ResponseTime,
		timestamp:    rec.Timestamp,
	})

	a.trackSession(rec)
	a.updateRolling(rec.ResponseTime)

	a.log.Debug("Query logged",
		zap.String("session_id", rec.SessionID),
		zap.String("agent_type", rec.AgentType),
		zap.Float64("response_time", rec.ResponseTime),
	)
}

func (a *Aggregator) normalize(rec QueryRecord) QueryRecord {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.opts.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	switch {
	case math.IsNaN(rec.Confidence) || rec.Confidence < 0:
		rec.Confidence = 0
	case rec.Confidence > 1:
		rec.Confidence = 1
	}
	if math.IsNaN(rec.ResponseTime) || math.IsInf(rec.ResponseTime, 0) || rec.ResponseTime < 0 {
		rec.ResponseTime = 0
	}

	rec.QueryLength = utf8.RuneCountInString(rec.Query)
	rec.ResponseLength = utf8.RuneCountInString(rec.Response)
	return rec
}

func (a *Aggregator) trackSession(rec QueryRecord) {
	if rec.SessionID == "" {
		return
	}

	s, ok := a.sessions[rec.SessionID]
	if !ok {
		s = &session{
			id:           rec.SessionID,
			customerID:   rec.CustomerID,
			startTime:    rec.Timestamp,
			lastActivity: rec.Timestamp,
			queries:      newRing[QueryRecord](a.opts.SessionHistory),
			agentUsage:   make(map[string]int),
		}
		a.sessions[rec.SessionID] = s
		a.totalSessions++
	}

	s.queries.push(rec)
	s.queryCount++
	s.confidenceSum += rec.Confidence
	s.responseTime += rec.ResponseTime
	s.agentUsage[rec.AgentType]++
	if rec.Timestamp.Before(s.startTime) {
		s.startTime = rec.Timestamp
	}
	if rec.Timestamp.After(s.lastActivity) {
		s.lastActivity = rec.Timestamp
	}
}

func (a *Aggregator) updateRolling(responseTime float64) {
	evicted, full := a.rolling.push(responseTime)
	a.rollingSum += responseTime
	if !full {
		return
	}
	a.rollingSum -= evicted

	// resum once per full rotation to bound floating point drift
	if a.rolling.start == 0 {
		a.rollingSum = 0
		a.rolling.each(func(v float64) { a.rollingSum += v })
	}
}

// LogFeedback records a customer rating. Ratings outside [1, 5] are rejected with
// ErrInvalidRating and leave the satisfaction score unchanged.
func (a *Aggregator) LogFeedback(fb FeedbackRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.AnalyticsDropped.WithLabelValues("feedback").Inc()
			a.log.Error("Dropped feedback record after internal fault", zap.Any("panic", r))
			err = fmt.Errorf("failed to record feedback: %v", r)
		}
	}()

	if fb.Rating < MinRating || fb.Rating > MaxRating {
		metrics.FeedbackTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: got %d", ErrInvalidRating, fb.Rating)
	}
	if fb.Timestamp.IsZero() {
		fb.Timestamp = a.opts.Now()
	}
	fb.Timestamp = fb.Timestamp.UTC()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		metrics.AnalyticsDropped.WithLabelValues("feedback").Inc()
		return ErrClosed
	}

	a.feedback.push(fb)
	a.ratingSum += fb.Rating
	a.ratingCount++

	score := float64(a.ratingSum) / float64(a.ratingCount)
	metrics.FeedbackTotal.WithLabelValues("accepted").Inc()
	metrics.SatisfactionScore.Set(score)

	a.log.Info("Feedback logged",
		zap.String("session_id", fb.SessionID),
		zap.Int("rating", fb.Rating),
		zap.Float64("satisfaction_score", score),
	)
	return nil
}

// Accepting reports whether the aggregator still ingests records.
func (a *Aggregator) Accepting() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.closed
}

// Close stops ingestion. Snapshots keep working on the state accumulated so far.
func (a *Aggregator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	a.log.Info("Analytics aggregator closed",
		zap.Int("total_queries", a.totalQueries),
		zap.Int("total_sessions", a.totalSessions),
		zap.Int("feedback", a.ratingCount),
	)
	return nil
}
