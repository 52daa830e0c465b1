package main

import (
	"log/slog"
	"sync"

	"starfall-arena/game"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Services are the process-wide dependencies shared by every session and
// connection. DB and Analytics may be nil.
type Services struct {
	DB        *DB
	Auth      *Auth
	Analytics *Analytics
	Metrics   *Metrics
	Log       *slog.Logger
	Game      GameConfig
	// NewLevel builds the level for each engine; nil means the default
	// skirmish.
	NewLevel func() game.Level
}

// Hub tracks connected clients and routes them to sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   *SessionManager
	svc        *Services

	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a Hub. Missing auth and metrics are filled in.
func NewHub(svc *Services) *Hub {
	if svc.Log == nil {
		svc.Log = slog.New(slog.DiscardHandler)
	}
	if svc.Metrics == nil {
		m, err := NewMetrics(nil)
		if err != nil {
			panic("metrics on a fresh registry: " + err.Error())
		}
		svc.Metrics = m
	}
	if svc.Auth == nil {
		svc.Auth = NewAuth(svc.DB, "", svc.Log)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		sessions:   NewSessionManager(svc),
		svc:        svc,
		ipConns:    make(map[string]int),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.svc.Metrics.Clients.Set(float64(n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.svc.Metrics.Clients.Set(float64(n))
			if sid := client.SessionID(); sid != "" {
				h.sessions.RemoveClient(sid, client)
			}
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
