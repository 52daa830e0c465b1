package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsFlushOnStop(t *testing.T) {
	db := openTestDB(t)
	a := NewAnalytics(db, slog.New(slog.DiscardHandler))

	a.Track(EvtSessionStart, 0, "s1", map[string]any{"name": "Arena"})
	a.Track(EvtRunStart, 0, "s1", nil)
	a.Track(EvtRunEnd, 0, "s1", map[string]any{"score": 4, "wave": 2, "duration": 30.0})
	a.Track(EvtRunEnd, 0, "s1", map[string]any{"score": 9, "wave": 4, "duration": 50.0})
	a.Stop()
	a.Stop()

	counts, err := a.EventCounts(1)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[EvtSessionStart])
	assert.Equal(t, 1, counts[EvtRunStart])
	assert.Equal(t, 2, counts[EvtRunEnd])

	summary, err := a.RunSummary(1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Runs)
	assert.InDelta(t, 40.0, summary.AvgDuration, 1e-9)
	assert.InDelta(t, 3.0, summary.AvgWave, 1e-9)
	assert.Zero(t, a.Dropped())
}

func TestAnalyticsCountsDroppedEvents(t *testing.T) {
	// no writer drains this queue
	a := &Analytics{events: make(chan AnalyticsEvent, 2), stop: make(chan struct{})}
	for i := 0; i < 5; i++ {
		a.Track(EvtEnemyDestroyed, 0, "s1", nil)
	}
	assert.Equal(t, 3, a.Dropped())
	assert.Len(t, a.events, 2)
}

func TestAnalyticsNilSafe(t *testing.T) {
	var a *Analytics
	a.Track(EvtRunStart, 0, "s1", nil)
	a.Stop()
}

func TestAchievementsForRun(t *testing.T) {
	db := openTestDB(t)
	id, err := db.CreatePilot("sirius", "")
	require.NoError(t, err)

	got := CheckAchievements(db, RunRow{PilotID: id, Kills: 12, BestChain: 10, Wave: 2, Score: 12})
	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"first_blood", "chain_10"}, ids)

	again := CheckAchievements(db, RunRow{PilotID: id, Kills: 60, Wave: 3, Score: 60, Duration: 301})
	ids = ids[:0]
	for _, a := range again {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"wave_3", "score_50", "survivor"}, ids, "only new unlocks are returned")

	assert.Nil(t, CheckAchievements(db, RunRow{Kills: 99}), "guests earn nothing")
	assert.Nil(t, CheckAchievements(nil, RunRow{PilotID: id, Kills: 1}))
}
