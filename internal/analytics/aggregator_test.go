package analytics

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 15, 40, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestAggregator(t *testing.T, opts Options) (*Aggregator, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts.Now = clock.Now
	return New(opts), clock
}

func record(i int) QueryRecord {
	return QueryRecord{
		ID:           fmt.Sprintf("rec-%d", i),
		Query:        fmt.Sprintf("query %d", i),
		Response:     "answer",
		AgentType:    "general",
		Confidence:   0.75,
		ResponseTime: float64(i),
		CustomerID:   "cust-1",
		SessionID:    "sess-1",
	}
}

func TestRing(t *testing.T) {
	r := newRing[int](3)

	for i := 1; i <= 3; i++ {
		_, evicted := r.push(i)
		assert.False(t, evicted)
	}
	old, evicted := r.push(4)
	assert.True(t, evicted)
	assert.Equal(t, 1, old)

	assert.Equal(t, []int{2, 3, 4}, r.items())
	assert.Equal(t, []int{3, 4}, r.last(2))
	assert.Equal(t, []int{2, 3, 4}, r.last(10))
	assert.Empty(t, r.last(-1))
	assert.Equal(t, 3, r.capacity())
}

func TestHistoryEvictsOldest(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	for i := 0; i <= 10000; i++ {
		a.LogQuery(record(i))
	}

	history := a.History()
	require.Len(t, history, 10000)
	assert.Equal(t, "rec-1", history[0].ID)
	assert.Equal(t, "rec-10000", history[len(history)-1].ID)
	for i, rec := range history {
		assert.Equal(t, fmt.Sprintf("rec-%d", i+1), rec.ID)
	}

	snap := a.Snapshot()
	assert.Equal(t, 10001, snap.TotalQueries)
	assert.Equal(t, 10001, snap.AgentDistribution["general"])
	assert.Equal(t, 1, snap.TotalSessions)

	// session totals are independent of the global ring
	sess, ok := a.SessionSnapshot("sess-1")
	require.True(t, ok)
	assert.Equal(t, 10001, sess.TotalQueries)
}

func TestRollingAverageBelowWindow(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	var sum float64
	for i := 1; i <= 700; i++ {
		a.LogQuery(record(i))
		sum += float64(i)
	}

	assert.InDelta(t, sum/700, a.Snapshot().AvgResponseTime, 1e-9)
}

func TestRollingAverageAboveWindow(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	for i := 1; i <= 2500; i++ {
		a.LogQuery(record(i))
	}

	// mean of 1501..2500
	assert.InDelta(t, 2000.5, a.Snapshot().AvgResponseTime, 1e-9)
}

func TestRollingAverageSmallWindow(t *testing.T) {
	a, _ := newTestAggregator(t, Options{RollingWindow: 3})

	for _, rt := range []float64{10, 1, 2, 3} {
		rec := record(0)
		rec.ResponseTime = rt
		a.LogQuery(rec)
	}

	assert.InDelta(t, 2.0, a.Snapshot().AvgResponseTime, 1e-9)
}

func TestRollingWindowCappedByHistory(t *testing.T) {
	a, _ := newTestAggregator(t, Options{HistoryCapacity: 5, RollingWindow: 50})

	for i := 1; i <= 10; i++ {
		a.LogQuery(record(i))
	}

	assert.Len(t, a.History(), 5)
	assert.InDelta(t, 8.0, a.Snapshot().AvgResponseTime, 1e-9)
}

func TestHourlyVolume(t *testing.T) {
	a, clock := newTestAggregator(t, Options{})
	now := clock.Now()

	offsets := []time.Duration{
		0,
		-10 * time.Minute,
		-1 * time.Hour,
		-23 * time.Hour,
		-24 * time.Hour, // outside the window
		-48 * time.Hour,
	}
	for i, off := range offsets {
		rec := record(i)
		rec.Timestamp = now.Add(off)
		a.LogQuery(rec)
	}

	snap := a.Snapshot()
	require.Len(t, snap.HourlyVolume, 24)

	total := 0
	for i, b := range snap.HourlyVolume {
		if i > 0 {
			assert.Equal(t, time.Hour, b.Hour.Sub(snap.HourlyVolume[i-1].Hour))
		}
		total += b.Count
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, total, snap.RecentActivity.Last24hQueries)

	assert.Equal(t, time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC), snap.HourlyVolume[23].Hour)
	assert.Equal(t, 2, snap.HourlyVolume[23].Count)
	assert.Equal(t, 1, snap.HourlyVolume[22].Count)
	assert.Equal(t, time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC), snap.HourlyVolume[0].Hour)
	assert.Equal(t, 1, snap.HourlyVolume[0].Count)
}

func TestHourlyVolumeEmpty(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	snap := a.Snapshot()
	require.Len(t, snap.HourlyVolume, 24)
	for _, b := range snap.HourlyVolume {
		assert.Zero(t, b.Count)
	}
	assert.Empty(t, snap.TopQueries)
	assert.Zero(t, snap.AvgResponseTime)
	assert.Zero(t, snap.SatisfactionScore)
}

func TestTopQueriesGrouping(t *testing.T) {
	a, _ := newTestAggregator(t, Options{TopQueries: 2})

	for i, q := range []string{"Reset password", "Help", " help ", "HELP", "reset password", "billing"} {
		rec := record(i)
		rec.Query = q
		a.LogQuery(rec)
	}

	top := a.Snapshot().TopQueries
	require.Len(t, top, 2)

	assert.Equal(t, "help", top[0].Query)
	assert.Equal(t, 3, top[0].Count)
	assert.Equal(t, "Help", top[0].Example.Query)

	assert.Equal(t, "reset password", top[1].Query)
	assert.Equal(t, 2, top[1].Count)
	assert.Equal(t, "Reset password", top[1].Example.Query)
}

func TestTopQueriesTiesKeepFirstSeen(t *testing.T) {
	got := topQueries([]QueryRecord{
		{Query: "b"}, {Query: "a"}, {Query: "c"}, {Query: "a"}, {Query: "b"},
	}, 10)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].Query, got[1].Query, got[2].Query})
}

func TestSessionSnapshot(t *testing.T) {
	a, clock := newTestAggregator(t, Options{})

	agents := []string{"technical", "technical", "billing"}
	for i, agentType := range agents {
		rec := record(i)
		rec.SessionID = "s-42"
		rec.CustomerID = "cust-42"
		rec.AgentType = agentType
		rec.Confidence = 0.5 + 0.1*float64(i)
		rec.ResponseTime = 1.5
		a.LogQuery(rec)
		clock.Advance(30 * time.Second)
	}

	snap, ok := a.SessionSnapshot("s-42")
	require.True(t, ok)
	assert.Equal(t, "cust-42", snap.CustomerID)
	assert.Equal(t, 3, snap.TotalQueries)
	assert.InDelta(t, 0.6, snap.AvgConfidence, 1e-9)
	assert.InDelta(t, 4.5, snap.TotalResponseTime, 1e-9)
	assert.Equal(t, 60.0, snap.DurationSeconds)
	assert.Equal(t, map[string]int{"technical": 2, "billing": 1}, snap.AgentUsage)
	assert.Len(t, snap.Queries, 3)
}

func TestSessionSnapshotKeepsLastTen(t *testing.T) {
	a, _ := newTestAggregator(t, Options{SessionHistory: 12})

	for i := 0; i < 25; i++ {
		a.LogQuery(record(i))
	}

	snap, ok := a.SessionSnapshot("sess-1")
	require.True(t, ok)
	assert.Equal(t, 25, snap.TotalQueries)
	require.Len(t, snap.Queries, 10)
	assert.Equal(t, "rec-15", snap.Queries[0].ID)
	assert.Equal(t, "rec-24", snap.Queries[9].ID)

	assert.Len(t, a.SessionHistory("sess-1", 0), 12)
	assert.Len(t, a.SessionHistory("sess-1", 3), 3)
	assert.Empty(t, a.SessionHistory("nope", 3))
}

func TestSessionSnapshotUnknown(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	snap, ok := a.SessionSnapshot("does-not-exist")
	assert.False(t, ok)
	assert.Empty(t, snap.SessionID)
}

func TestSessionsCreatedOnce(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	for i := 0; i < 6; i++ {
		rec := record(i)
		rec.SessionID = fmt.Sprintf("s-%d", i%2)
		a.LogQuery(rec)
	}

	assert.Equal(t, 2, a.Snapshot().TotalSessions)
}

func TestLogQueryClampsValues(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	high := record(1)
	high.Confidence = 1.7
	high.ResponseTime = -3
	high.Query = "héllo"
	a.LogQuery(high)

	low := record(2)
	low.Confidence = -0.2
	a.LogQuery(low)

	history := a.History()
	require.Len(t, history, 2)
	assert.Equal(t, 1.0, history[0].Confidence)
	assert.Zero(t, history[0].ResponseTime)
	assert.Equal(t, 5, history[0].QueryLength)
	assert.Equal(t, 6, history[0].ResponseLength)
	assert.Zero(t, history[1].Confidence)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestAgentPerformance(t *testing.T) {
	a, clock := newTestAggregator(t, Options{})

	old := record(0)
	old.AgentType = "billing"
	old.Timestamp = clock.Now().Add(-30 * time.Hour)
	a.LogQuery(old)

	for i, c := range []float64{0.8, 0.9} {
		rec := record(i)
		rec.AgentType = "technical"
		rec.Confidence = c
		rec.ResponseTime = float64(i + 1)
		a.LogQuery(rec)
	}

	perf := a.Snapshot().AgentPerformance
	require.Contains(t, perf, "technical")
	assert.NotContains(t, perf, "billing")
	assert.Equal(t, 2, perf["technical"].QueryCount)
	assert.InDelta(t, 0.85, perf["technical"].AvgConfidence, 1e-9)
	assert.InDelta(t, 1.5, perf["technical"].AvgResponseTime, 1e-9)
}

func TestFeedback(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	for _, rating := range []int{0, 6, -1} {
		err := a.LogFeedback(FeedbackRecord{SessionID: "s", Rating: rating})
		assert.ErrorIs(t, err, ErrInvalidRating, rating)
	}
	assert.Zero(t, a.Snapshot().SatisfactionScore)

	require.NoError(t, a.LogFeedback(FeedbackRecord{SessionID: "s", Rating: 5, Comment: "great"}))
	require.NoError(t, a.LogFeedback(FeedbackRecord{SessionID: "s", Rating: 2}))
	require.NoError(t, a.LogFeedback(FeedbackRecord{SessionID: "s", Rating: 1}))

	snap := a.Snapshot()
	assert.InDelta(t, 8.0/3.0, snap.SatisfactionScore, 1e-9)
	assert.Equal(t, 3, snap.FeedbackCount)
}

func TestFeedbackMeanSurvivesEviction(t *testing.T) {
	a, _ := newTestAggregator(t, Options{FeedbackCapacity: 2})

	for _, rating := range []int{1, 1, 4, 4} {
		require.NoError(t, a.LogFeedback(FeedbackRecord{Rating: rating}))
	}

	assert.InDelta(t, 2.5, a.Snapshot().SatisfactionScore, 1e-9)
}

func TestRecentActivityAndRealTime(t *testing.T) {
	a, clock := newTestAggregator(t, Options{})

	stale := record(0)
	stale.SessionID = "stale"
	stale.Confidence = 0.2
	stale.Timestamp = clock.Now().Add(-2 * time.Hour)
	a.LogQuery(stale)

	warm := record(1)
	warm.SessionID = "warm"
	warm.Confidence = 0.6
	warm.Timestamp = clock.Now().Add(-20 * time.Minute)
	a.LogQuery(warm)

	hot := record(2)
	hot.SessionID = "hot"
	hot.Confidence = 1.0
	a.LogQuery(hot)

	snap := a.Snapshot()
	assert.Equal(t, 2, snap.RecentActivity.ActiveSessions)
	assert.Equal(t, 3, snap.RecentActivity.Last24hQueries)

	rt := a.RealTime()
	assert.Equal(t, 1, rt.ActiveSessions)
	assert.Equal(t, 2, rt.QueriesLastHour)
	assert.InDelta(t, 0.8, rt.AvgConfidenceLastHour, 1e-9)
	assert.Equal(t, "healthy", rt.SystemStatus)
}

func TestRealTimeEmpty(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	rt := a.RealTime()
	assert.Zero(t, rt.QueriesLastHour)
	assert.Zero(t, rt.AvgConfidenceLastHour)
}

func TestClose(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})
	a.LogQuery(record(1))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	a.LogQuery(record(2))
	err := a.LogFeedback(FeedbackRecord{Rating: 4})
	assert.True(t, errors.Is(err, ErrClosed))

	snap := a.Snapshot()
	assert.Equal(t, 1, snap.TotalQueries)
	assert.False(t, snap.SystemHealth.Accepting)
	assert.Equal(t, "closed", a.RealTime().SystemStatus)
}

func TestConcurrentLogQuery(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	const writers, perWriter = 24, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				a.LogQuery(QueryRecord{
					ID:         fmt.Sprintf("w%d-%d", w, i),
					Query:      "concurrent",
					AgentType:  "technical",
					Confidence: 0.85,
					SessionID:  fmt.Sprintf("session-%d", w),
				})
			}
		}(w)
	}

	// readers run alongside the writers
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = a.Snapshot()
			_ = a.RealTime()
			_, _ = a.SessionSnapshot("session-0")
		}
	}()

	wg.Wait()
	<-done

	history := a.History()
	require.Len(t, history, 10000)

	seen := make(map[string]struct{}, len(history))
	for _, rec := range history {
		_, dup := seen[rec.ID]
		require.False(t, dup, rec.ID)
		seen[rec.ID] = struct{}{}
	}

	snap := a.Snapshot()
	assert.Equal(t, writers*perWriter, snap.TotalQueries)
	assert.Equal(t, writers, snap.TotalSessions)

	for w := 0; w < writers; w++ {
		sess, ok := a.SessionSnapshot(fmt.Sprintf("session-%d", w))
		require.True(t, ok)
		assert.Equal(t, perWriter, sess.TotalQueries)
	}
}

func TestConcurrentBelowCapacity(t *testing.T) {
	a, _ := newTestAggregator(t, Options{})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.LogQuery(QueryRecord{ID: fmt.Sprintf("%d-%d", w, i), SessionID: "shared", AgentType: "billing"})
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, a.History(), 800)
	sess, ok := a.SessionSnapshot("shared")
	require.True(t, ok)
	assert.Equal(t, 800, sess.TotalQueries)
	assert.Equal(t, 1, a.Snapshot().TotalSessions)
}
