package main

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtSessionStart   = "session_start"
	EvtSessionEnd     = "session_end"
	EvtRunStart       = "run_start"
	EvtRunEnd         = "run_end"
	EvtWaveStarted    = "wave_started"
	EvtEnemyDestroyed = "enemy_destroyed"
	EvtPickup         = "pickup_collected"
	EvtStuck          = "stuck_recovered"
	EvtAchievement    = "achievement"
)

const (
	analyticsQueueSize  = 1024
	analyticsBatchSize  = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	PilotID   int64
	SessionID string
	Data      string // JSON metadata (optional)
	Timestamp time.Time
}

// Analytics persists events in batches from a background goroutine so the
// simulation loop never waits on the database.
type Analytics struct {
	db     *DB
	log    *slog.Logger
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	dropped int
}

// NewAnalytics creates and starts the background writer
func NewAnalytics(db *DB, log *slog.Logger) *Analytics {
	a := &Analytics{
		db:     db,
		log:    log,
		events: make(chan AnalyticsEvent, analyticsQueueSize),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event; it drops the event if the queue is full.
func (a *Analytics) Track(evtType string, pilotID int64, sessionID string, data map[string]any) {
	if a == nil {
		return
	}
	var encoded string
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			encoded = string(b)
		}
	}
	select {
	case a.events <- AnalyticsEvent{
		Type:      evtType,
		PilotID:   pilotID,
		SessionID: sessionID,
		Data:      encoded,
		Timestamp: time.Now().UTC(),
	}:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

// Dropped returns how many events were discarded on a full queue
func (a *Analytics) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Stop drains the queue and waits for the final flush
func (a *Analytics) Stop() {
	if a == nil {
		return
	}
	a.once.Do(func() { close(a.stop) })
	a.wg.Wait()
}

func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					a.flush(batch)
					return
				}
			}
		}
	}
}

func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		a.log.Error("analytics begin tx", "err", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, pilot_id, session_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		a.log.Error("analytics prepare", "err", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullInt64{Int64: evt.PilotID, Valid: evt.PilotID > 0}
		sid := sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, pid, sid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			a.log.Error("analytics insert", "err", err, "type", evt.Type)
		}
	}
	if err := tx.Commit(); err != nil {
		a.log.Error("analytics commit", "err", err)
	}
}

// EventCounts returns counts of each event type for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	result := make(map[string]int)
	if a.db == nil {
		return result, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= strftime('%Y-%m-%dT%H:%M:%SZ', 'now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			return nil, err
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// RunSummary aggregates finished runs over a window
type RunSummary struct {
	Runs        int     `json:"runs"`
	AvgDuration float64 `json:"avg_duration"`
	AvgWave     float64 `json:"avg_wave"`
}

// RunSummary averages the run_end events of the last N days
func (a *Analytics) RunSummary(days int) (RunSummary, error) {
	var s RunSummary
	if a.db == nil {
		return s, nil
	}
	var avgDur, avgWave sql.NullFloat64
	err := a.db.conn.QueryRow(`
		SELECT COUNT(*),
			AVG(CAST(json_extract(data, '$.duration') AS REAL)),
			AVG(CAST(json_extract(data, '$.wave') AS REAL))
		FROM analytics_events
		WHERE event_type = ? AND json_valid(data)
			AND created_at >= strftime('%Y-%m-%dT%H:%M:%SZ', 'now', '-' || ? || ' days')
	`, EvtRunEnd, days).Scan(&s.Runs, &avgDur, &avgWave)
	if err != nil {
		return s, err
	}
	s.AvgDuration = avgDur.Float64
	s.AvgWave = avgWave.Float64
	return s, nil
}
