package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PilotRow is a registered account
type PilotRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow is the lifetime record of one pilot
type StatsRow struct {
	PilotID   int64
	Runs      int
	Kills     int
	BestScore int
	BestChain int
	BestWave  int
	Playtime  float64 // seconds
	XP        int
	Level     int
}

// RunRow is the summary of one finished run. PilotID is 0 for guests.
type RunRow struct {
	ID        int64
	PilotID   int64
	SessionID string
	Score     int
	Kills     int
	BestChain int
	Wave      int
	Parts     int
	Duration  float64
	CreatedAt time.Time
}

// ScoreEntry is one row of the leaderboard
type ScoreEntry struct {
	Rank      int     `json:"rank"`
	Pilot     string  `json:"pilot"`
	Score     int     `json:"score"`
	Kills     int     `json:"kills"`
	BestChain int     `json:"chain"`
	Wave      int     `json:"wave"`
	Duration  float64 `json:"duration"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pilots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pilot_stats (
		pilot_id INTEGER PRIMARY KEY REFERENCES pilots(id),
		runs INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		best_score INTEGER NOT NULL DEFAULT 0,
		best_chain INTEGER NOT NULL DEFAULT 0,
		best_wave INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0,
		xp INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pilot_id INTEGER REFERENCES pilots(id),
		session_id TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		best_chain INTEGER NOT NULL DEFAULT 0,
		wave INTEGER NOT NULL DEFAULT 0,
		parts INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS achievements (
		pilot_id INTEGER NOT NULL REFERENCES pilots(id),
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (pilot_id, achievement_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		pilot_id INTEGER,
		session_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_score ON runs(score DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_pilot ON runs(pilot_id);
	CREATE INDEX IF NOT EXISTS idx_analytics_type ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreatePilot creates a new account and its stats row
func (db *DB) CreatePilot(username, passHash string) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec("INSERT INTO pilots (username, pass_hash) VALUES (?, ?)", username, passHash)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("INSERT INTO pilot_stats (pilot_id) VALUES (?)", id); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetPilotByName returns nil, nil when no such pilot exists
func (db *DB) GetPilotByName(username string) (*PilotRow, error) {
	return db.scanPilot(db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM pilots WHERE username = ?", username))
}

// GetPilotByID returns nil, nil when no such pilot exists
func (db *DB) GetPilotByID(id int64) (*PilotRow, error) {
	return db.scanPilot(db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM pilots WHERE id = ?", id))
}

func (db *DB) scanPilot(row *sql.Row) (*PilotRow, error) {
	p := &PilotRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM pilots WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns nil, nil for an unknown pilot
func (db *DB) GetStats(pilotID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(`
		SELECT pilot_id, runs, kills, best_score, best_chain, best_wave, playtime, xp, level
		FROM pilot_stats WHERE pilot_id = ?`, pilotID)
	s := &StatsRow{}
	err := row.Scan(&s.PilotID, &s.Runs, &s.Kills, &s.BestScore, &s.BestChain, &s.BestWave, &s.Playtime, &s.XP, &s.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// XPForLevel returns the total XP required to reach a given level.
// Level 1 requires 0 XP, level 2 requires 100, etc.
// Formula: sum of 100 * i^1.5 for i in 1..level-1
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	total := 0.0
	for i := 1; i < level; i++ {
		total += 100.0 * math.Pow(float64(i), 1.5)
	}
	return int(total)
}

// CalculateLevel returns the level for a given total XP amount, capped at 100
func CalculateLevel(totalXP int) int {
	level := 1
	for level < 100 && totalXP >= XPForLevel(level+1) {
		level++
	}
	return level
}

// RunXP is the experience a finished run is worth
func RunXP(r RunRow) int {
	return r.Score*10 + r.Wave*25 + r.BestChain*5
}

// RecordRun stores a finished run. For a registered pilot it also folds the
// run into the lifetime stats and returns the updated row.
func (db *DB) RecordRun(r RunRow) (int64, *StatsRow, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback()

	pid := sql.NullInt64{Int64: r.PilotID, Valid: r.PilotID > 0}
	res, err := tx.Exec(`
		INSERT INTO runs (pilot_id, session_id, score, kills, best_chain, wave, parts, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pid, r.SessionID, r.Score, r.Kills, r.BestChain, r.Wave, r.Parts, r.Duration,
	)
	if err != nil {
		return 0, nil, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}

	if r.PilotID > 0 {
		_, err = tx.Exec(`
			UPDATE pilot_stats SET
				runs = runs + 1,
				kills = kills + ?,
				best_score = MAX(best_score, ?),
				best_chain = MAX(best_chain, ?),
				best_wave = MAX(best_wave, ?),
				playtime = playtime + ?,
				xp = xp + ?
			WHERE pilot_id = ?`,
			r.Kills, r.Score, r.BestChain, r.Wave, r.Duration, RunXP(r), r.PilotID,
		)
		if err != nil {
			return 0, nil, err
		}
		var totalXP int
		if err := tx.QueryRow("SELECT xp FROM pilot_stats WHERE pilot_id = ?", r.PilotID).Scan(&totalXP); err != nil {
			return 0, nil, err
		}
		if _, err := tx.Exec("UPDATE pilot_stats SET level = ? WHERE pilot_id = ?", CalculateLevel(totalXP), r.PilotID); err != nil {
			return 0, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	if r.PilotID == 0 {
		return runID, nil, nil
	}
	stats, err := db.GetStats(r.PilotID)
	return runID, stats, err
}

// GetRuns returns a pilot's most recent runs
func (db *DB) GetRuns(pilotID int64, limit int) ([]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, COALESCE(pilot_id, 0), session_id, score, kills, best_chain, wave, parts, duration, created_at
		FROM runs WHERE pilot_id = ?
		ORDER BY id DESC LIMIT ?`, pilotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.PilotID, &r.SessionID, &r.Score, &r.Kills, &r.BestChain, &r.Wave, &r.Parts, &r.Duration, &r.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// TopScores returns the best runs, highest score first. Guest runs are
// listed under "guest".
func (db *DB) TopScores(limit int) ([]ScoreEntry, error) {
	rows, err := db.conn.Query(`
		SELECT COALESCE(p.username, 'guest'), r.score, r.kills, r.best_chain, r.wave, r.duration
		FROM runs r LEFT JOIN pilots p ON p.id = r.pilot_id
		ORDER BY r.score DESC, r.wave DESC, r.id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]ScoreEntry, 0, limit)
	rank := 1
	for rows.Next() {
		var e ScoreEntry
		if err := rows.Scan(&e.Pilot, &e.Score, &e.Kills, &e.BestChain, &e.Wave, &e.Duration); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetAchievements returns the IDs a pilot has unlocked
func (db *DB) GetAchievements(pilotID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT achievement_id FROM achievements WHERE pilot_id = ? ORDER BY unlocked_at, achievement_id", pilotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnlockAchievement records an unlock; it reports false if it was already held
func (db *DB) UnlockAchievement(pilotID int64, id string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT OR IGNORE INTO achievements (pilot_id, achievement_id) VALUES (?, ?)", pilotID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSetting returns "" when the key is absent
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}
