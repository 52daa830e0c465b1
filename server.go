package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

var uuidPathRe = regexp.MustCompile(`^/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, srv ServerConfig) *http.ServeMux {
	mux := http.NewServeMux()
	log := hub.svc.Log

	// Static client with no-cache so browsers always revalidate
	fs := http.FileServer(http.Dir(srv.ClientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		// SPA: serve index.html for root and session paths
		if r.URL.Path == "/" || uuidPathRe.MatchString(r.URL.Path) {
			http.ServeFile(w, r, filepath.Join(srv.ClientDir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}))

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", "err", err, "ip", ip)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("GET /qr/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sid := r.PathValue("sid")
		if !validUUID(sid) || hub.sessions.GetSession(sid) == nil {
			http.NotFound(w, r)
			return
		}
		png, err := qrcode.Encode(spectatorURL(r, srv.PublicURL, sid), qrcode.Medium, qrSize)
		if err != nil {
			log.Error("encode qr", "err", err, "sid", sid)
			http.Error(w, "qr encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(png)
	})

	mux.HandleFunc("GET /api/scores", func(w http.ResponseWriter, r *http.Request) {
		limit := defaultScoreLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxScoreLimit {
				http.Error(w, "limit must be 1-100", http.StatusBadRequest)
				return
			}
			limit = n
		}
		scores := []ScoreEntry{}
		if db := hub.svc.DB; db != nil {
			var err error
			if scores, err = db.TopScores(limit); err != nil {
				log.Error("top scores", "err", err)
				http.Error(w, "scores unavailable", http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, scores)
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		days := 7
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 365 {
				http.Error(w, "days must be 1-365", http.StatusBadRequest)
				return
			}
			days = n
		}
		resp := struct {
			Sessions    int            `json:"sessions"`
			Clients     int            `json:"clients"`
			Connections int            `json:"connections"`
			Events      map[string]int `json:"events"`
			Runs        RunSummary     `json:"runs"`
			Dropped     int            `json:"dropped_events"`
		}{
			Sessions:    hub.sessions.Count(),
			Clients:     hub.ClientCount(),
			Connections: hub.TotalConns(),
			Events:      map[string]int{},
		}
		if a := hub.svc.Analytics; a != nil {
			var err error
			if resp.Events, err = a.EventCounts(days); err != nil {
				log.Error("event counts", "err", err)
				http.Error(w, "stats unavailable", http.StatusInternalServerError)
				return
			}
			if resp.Runs, err = a.RunSummary(days); err != nil {
				log.Error("run summary", "err", err)
				http.Error(w, "stats unavailable", http.StatusInternalServerError)
				return
			}
			resp.Dropped = a.Dropped()
		}
		writeJSON(w, resp)
	})

	mux.Handle("GET /metrics", hub.svc.Metrics.Handler())

	return mux
}

// spectatorURL is the link a QR code points at
func spectatorURL(r *http.Request, publicURL, sid string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/" + sid + "?watch=1"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
