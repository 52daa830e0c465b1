package main

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// SessionIdleTimeout is how long a session may go without client activity
// before the reaper stops it.
var SessionIdleTimeout = 10 * time.Minute

var ErrTooManySessions = errors.New("too many active sessions")

// Session is one running engine that clients can pilot or watch
type Session struct {
	ID      string
	Name    string
	Game    *Game
	Created time.Time
}

// SessionManager handles creation, lookup and expiry of sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	svc      *Services
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(svc *Services) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		svc:      svc,
	}
}

// CreateSession starts a new session with its own engine
func (sm *SessionManager) CreateSession(name string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.svc.Game.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := GenerateUUID()
	g, err := NewGame(id, sm.svc)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:      id,
		Name:    name,
		Game:    g,
		Created: time.Now(),
	}
	sm.sessions[id] = sess
	sm.svc.Metrics.Sessions.Set(float64(len(sm.sessions)))
	sm.svc.Analytics.Track(EvtSessionStart, 0, id, map[string]any{"name": name})
	sm.svc.Log.Info("session created", "sid", id, "name", name)
	go g.Run()
	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// MarkActive resets the idle clock of a session
func (sm *SessionManager) MarkActive(id string) {
	if sess := sm.GetSession(id); sess != nil {
		sess.Game.Touch()
	}
}

// RemoveClient detaches c from a session and ends the session once nobody
// is left in it.
func (sm *SessionManager) RemoveClient(sessionID string, c Broadcaster) {
	sess := sm.GetSession(sessionID)
	if sess == nil {
		return
	}
	if sess.Game.RemoveClient(c) == 0 {
		sm.endSession(sessionID, "empty")
	}
}

func (sm *SessionManager) endSession(id, reason string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
		sm.svc.Metrics.Sessions.Set(float64(len(sm.sessions)))
	}
	sm.mu.Unlock()
	if !ok {
		return
	}
	sess.Game.Stop()
	sm.svc.Analytics.Track(EvtSessionEnd, 0, id, map[string]any{
		"reason":   reason,
		"lifetime": time.Since(sess.Created).Seconds(),
	})
	sm.svc.Log.Info("session ended", "sid", id, "reason", reason)
}

// ReapIdle ends every session idle for longer than SessionIdleTimeout and
// returns how many it ended.
func (sm *SessionManager) ReapIdle(now time.Time) int {
	sm.mu.RLock()
	var stale []string
	for id, sess := range sm.sessions {
		if now.Sub(sess.Game.IdleSince()) > SessionIdleTimeout {
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range stale {
		sm.endSession(id, "idle")
	}
	return len(stale)
}

// RunReaper calls ReapIdle periodically until stop is closed
func (sm *SessionManager) RunReaper(stop <-chan struct{}) {
	interval := SessionIdleTimeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			sm.ReapIdle(now)
		case <-stop:
			return
		}
	}
}

// StopAll ends every session
func (sm *SessionManager) StopAll() {
	sm.mu.RLock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sm.mu.RUnlock()
	for _, id := range ids {
		sm.endSession(id, "shutdown")
	}
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ListSessions returns info about all active sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	sm.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Created.Before(sessions[j].Created)
	})
	list := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		n := sess.Game.ClientCount()
		piloted := sess.Game.Piloted()
		if piloted {
			n--
		}
		list = append(list, SessionInfo{
			ID:         sess.ID,
			Name:       sess.Name,
			State:      sess.Game.State().String(),
			Piloted:    piloted,
			Spectators: n,
		})
	}
	return list
}
