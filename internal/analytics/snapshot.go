package analytics

import (
	"sort"
	"strings"
	"time"
)

const (
	activeSessionWindow   = 30 * time.Minute
	realTimeSessionWindow = 5 * time.Minute
	recentQueriesToShow   = 10
	hoursInVolume         = 24
)

type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

type AgentPerformance struct {
	AvgConfidence   float64 `json:"avg_confidence"`
	AvgResponseTime float64 `json:"avg_response_time"`
	QueryCount      int     `json:"query_count"`
}

type TopQuery struct {
	Query   string      `json:"query"`
	Count   int         `json:"count"`
	Example QueryRecord `json:"example"`
}

type RecentActivity struct {
	Last24hQueries int `json:"last_24h_queries"`
	ActiveSessions int `json:"active_sessions"`
}

type SystemHealth struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	HistorySize     int     `json:"history_size"`
	HistoryCapacity int     `json:"history_capacity"`
	TrackedSessions int     `json:"tracked_sessions"`
	Accepting       bool    `json:"accepting"`
}

type Snapshot struct {
	TotalQueries      int                         `json:"total_queries"`
	TotalSessions     int                         `json:"total_sessions"`
	AvgResponseTime   float64                     `json:"avg_response_time"`
	SatisfactionScore float64                     `json:"satisfaction_score"`
	FeedbackCount     int                         `json:"feedback_count"`
	AgentDistribution map[string]int              `json:"agent_distribution"`
	HourlyVolume      []HourlyCount               `json:"hourly_volume"`
	AgentPerformance  map[string]AgentPerformance `json:"agent_performance"`
	TopQueries        []TopQuery                  `json:"top_queries"`
	RecentActivity    RecentActivity              `json:"recent_activity"`
	SystemHealth      SystemHealth                `json:"system_health"`
	GeneratedAt       time.Time                   `json:"generated_at"`
}

type SessionSnapshot struct {
	SessionID         string         `json:"session_id"`
	CustomerID        string         `json:"customer_id"`
	StartTime         time.Time      `json:"start_time"`
	LastActivity      time.Time      `json:"last_activity"`
	DurationSeconds   float64        `json:"duration_seconds"`
	TotalQueries      int            `json:"total_queries"`
	AvgConfidence     float64        `json:"avg_confidence"`
	TotalResponseTime float64        `json:"total_response_time"`
	AgentUsage        map[string]int `json:"agent_usage"`
	Queries           []QueryRecord  `json:"queries"`
}

type RealTimeMetrics struct {
	ActiveSessions        int     `json:"active_sessions"`
	QueriesLastHour       int     `json:"queries_last_hour"`
	AvgConfidenceLastHour float64 `json:"avg_confidence_last_hour"`
	SystemStatus          string  `json:"system_status"`
}

// window is the trailing 24 hour range ending at the close of the current hour.
type window struct {
	start time.Time
	end   time.Time
}

func trailingDay(now time.Time) window {
	hour := now.UTC().Truncate(time.Hour)
	return window{
		start: hour.Add(-(hoursInVolume - 1) * time.Hour),
		end:   hour.Add(time.Hour),
	}
}

func (w window) contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

// Snapshot computes the dashboard view under the read lock.
func (a *Aggregator) Snapshot() Snapshot {
	now := a.opts.Now().UTC()
	day := trailingDay(now)

	a.mu.RLock()
	defer a.mu.RUnlock()

	recent := make([]QueryRecord, 0, a.history.len())
	a.history.each(func(rec QueryRecord) {
		if day.contains(rec.Timestamp) {
			recent = append(recent, rec)
		}
	})

	distribution := make(map[string]int, len(a.agentDistribution))
	for k, v := range a.agentDistribution {
		distribution[k] = v
	}

	activeCutoff := now.Add(-activeSessionWindow)
	active := 0
	for _, s := range a.sessions {
		if s.lastActivity.After(activeCutoff) {
			active++
		}
	}

	return Snapshot{
		TotalQueries:      a.totalQueries,
		TotalSessions:     a.totalSessions,
		AvgResponseTime:   a.avgResponseTime(),
		SatisfactionScore: a.satisfaction(),
		FeedbackCount:     a.ratingCount,
		AgentDistribution: distribution,
		HourlyVolume:      hourlyVolume(day, recent),
		AgentPerformance:  a.agentPerformance(day),
		TopQueries:        topQueries(recent, a.opts.TopQueries),
		RecentActivity: RecentActivity{
			Last24hQueries: len(recent),
			ActiveSessions: active,
		},
		SystemHealth: SystemHealth{
			UptimeSeconds:   now.Sub(a.startedAt).Seconds(),
			HistorySize:     a.history.len(),
			HistoryCapacity: a.history.capacity(),
			TrackedSessions: len(a.sessions),
			Accepting:       !a.closed,
		},
		GeneratedAt: now,
	}
}

func (a *Aggregator) avgResponseTime() float64 {
	if a.rolling.len() == 0 {
		return 0
	}
	return a.rollingSum / float64(a.rolling.len())
}

func (a *Aggregator) satisfaction() float64 {
	if a.ratingCount == 0 {
		return 0
	}
	return float64(a.ratingSum) / float64(a.ratingCount)
}

func (a *Aggregator) agentPerformance(day window) map[string]AgentPerformance {
	out := make(map[string]AgentPerformance, len(a.agentSamples))
	for agentType, samples := range a.agentSamples {
		var perf AgentPerformance
		samples.each(func(s agentSample) {
			if !day.contains(s.timestamp) {
				return
			}
			perf.QueryCount++
			perf.AvgConfidence += s.confidence
			perf.AvgResponseTime += s.responseTime
		})
		if perf.QueryCount == 0 {
			continue
		}
		perf.AvgConfidence /= float64(perf.QueryCount)
		perf.AvgResponseTime /= float64(perf.QueryCount)
		out[agentType] = perf
	}
	return out
}

func hourlyVolume(day window, recent []QueryRecord) []HourlyCount {
	buckets := make([]HourlyCount, hoursInVolume)
	for i := range buckets {
		buckets[i].Hour = day.start.Add(time.Duration(i) * time.Hour)
	}
	for _, rec := range recent {
		buckets[int(rec.Timestamp.Sub(day.start)/time.Hour)].Count++
	}
	return buckets
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// topQueries groups records by normalized text, keeps the first record seen as the example and
// orders groups by count, first seen first among equals.
func topQueries(records []QueryRecord, limit int) []TopQuery {
	index := make(map[string]int)
	groups := make([]TopQuery, 0)
	for _, rec := range records {
		key := normalizeQuery(rec.Query)
		if i, ok := index[key]; ok {
			groups[i].Count++
			continue
		}
		index[key] = len(groups)
		groups = append(groups, TopQuery{Query: key, Count: 1, Example: rec})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	if len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// SessionSnapshot reports on one session. The boolean is false when the session is unknown.
func (a *Aggregator) SessionSnapshot(sessionID string) (SessionSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[sessionID]
	if !ok || s.queryCount == 0 {
		return SessionSnapshot{}, false
	}

	usage := make(map[string]int, len(s.agentUsage))
	for k, v := range s.agentUsage {
		usage[k] = v
	}

	return SessionSnapshot{
		SessionID:         s.id,
		CustomerID:        s.customerID,
		StartTime:         s.startTime,
		LastActivity:      s.lastActivity,
		DurationSeconds:   s.lastActivity.Sub(s.startTime).Seconds(),
		TotalQueries:      s.queryCount,
		AvgConfidence:     s.confidenceSum / float64(s.queryCount),
		TotalResponseTime: s.responseTime,
		AgentUsage:        usage,
		Queries:           s.queries.last(recentQueriesToShow),
	}, true
}

// RealTime reports short-horizon activity: sessions active in the last five minutes and queries
// answered in the last hour.
func (a *Aggregator) RealTime() RealTimeMetrics {
	now := a.opts.Now().UTC()
	sessionCutoff := now.Add(-realTimeSessionWindow)
	queryCutoff := now.Add(-time.Hour)

	a.mu.RLock()
	defer a.mu.RUnlock()

	m := RealTimeMetrics{SystemStatus: "healthy"}
	if a.closed {
		m.SystemStatus = "closed"
	}

	for _, s := range a.sessions {
		if s.lastActivity.After(sessionCutoff) {
			m.ActiveSessions++
		}
	}

	var confidenceSum float64
	a.history.each(func(rec QueryRecord) {
		if rec.Timestamp.After(queryCutoff) {
			m.QueriesLastHour++
			confidenceSum += rec.Confidence
		}
	})
	if m.QueriesLastHour > 0 {
		m.AvgConfidenceLastHour = confidenceSum / float64(m.QueriesLastHour)
	}

	return m
}

// History copies the global history, oldest first.
func (a *Aggregator) History() []QueryRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.items()
}

// SessionHistory returns up to limit of the session's most recent queries, oldest first. A limit
// of zero or less returns every retained query.
func (a *Aggregator) SessionHistory(sessionID string, limit int) []QueryRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[sessionID]
	if !ok {
		return []QueryRecord{}
	}
	if limit <= 0 {
		return s.queries.items()
	}
	return s.queries.last(limit)
}
