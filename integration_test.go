package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"

	"starfall-arena/game"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// msgFrame labels binary frames returned by readEnvelope
const msgFrame = "frame"

// readTimeout leaves room for slow runs under -race
const readTimeout = 10 * time.Second

// quietLevel puts the player in the middle and never sends enemies
type quietLevel struct{}

func (quietLevel) Setup(w *game.World) error {
	_, err := w.Spawn(game.KindPlayer, game.Vec(w.Width()/2, w.Height()/2))
	return err
}

func (quietLevel) NextWave(*game.World) {}

// testServices wires a temp database and fresh metrics around a quiet level
func testServices(t *testing.T) *Services {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "starfall.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	metrics, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	cfg := DefaultConfig().Game
	cfg.Seed = 42
	log := slog.New(slog.DiscardHandler)
	auth := NewAuth(db, "test-secret", log)
	auth.cost = bcrypt.MinCost
	return &Services{
		DB:       db,
		Auth:     auth,
		Metrics:  metrics,
		Log:      log,
		Game:     cfg,
		NewLevel: func() game.Level { return quietLevel{} },
	}
}

// startTestServer spins up an httptest.Server with a Hub and returns
// the server, its WebSocket URL, the hub, and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, *Hub, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	hub := NewHub(testServices(t))
	go hub.Run()
	stopReaper := make(chan struct{})
	go hub.sessions.RunReaper(stopReaper)

	mux := SetupRoutes(hub, ServerConfig{ClientDir: tmpDir})
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, hub, func() {
		close(stopReaper)
		srv.Close()
		hub.sessions.StopAll()
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one message. Binary frames come back as msgFrame
// envelopes carrying a decoded Frame.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var f Frame
		if err := msgpack.Unmarshal(raw, &f); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: msgFrame, Data: f}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// readUntil skips messages until one of type want arrives
func readUntil(t *testing.T, conn *websocket.Conn, want string) Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEnvelope(t, conn)
		if env.T == want {
			return env
		}
		if env.T == MsgError && want != MsgError {
			t.Fatalf("expected %s, got error %v", want, env.Data)
		}
	}
	t.Fatalf("no %s message within 200 reads", want)
	return Envelope{}
}

// readFrameIn skips messages until a frame in the given state arrives
func readFrameIn(t *testing.T, conn *websocket.Conn, state string) Frame {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readUntil(t, conn, msgFrame)
		if f := env.Data.(Frame); f.State == state {
			return f
		}
	}
	t.Fatalf("no frame in state %s", state)
	return Frame{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createAndPilot creates a session and attaches conn as its pilot.
// Returns the session ID and pilot token.
func createAndPilot(t *testing.T, conn *websocket.Conn) (string, string) {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"sname": "Test Arena"})
	created := readEnvelope(t, conn)
	if created.T != MsgCreated {
		t.Fatalf("expected created, got %s", created.T)
	}
	d := dataMap(t, created)
	sid, _ := d["sid"].(string)
	token, _ := d["token"].(string)

	sendMsg(t, conn, MsgPilot, map[string]string{"sid": sid, "token": token})
	joined := readUntil(t, conn, MsgJoined)
	if role := dataMap(t, joined)["role"]; role != "pilot" {
		t.Fatalf("expected pilot role, got %v", role)
	}
	return sid, token
}

// ---------- UUID generation tests ----------

func TestGenerateUUIDFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		id := GenerateUUID()
		if !uuidRegex.MatchString(id) {
			t.Errorf("GenerateUUID() = %q, does not match UUID v4 format", id)
		}
	}
}

func TestGenerateUUIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateUUID()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true
	}
}

// ---------- session flow ----------

func TestCreateReturnsUUIDAndToken(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()

	sendMsg(t, conn, MsgCreate, map[string]string{"sname": "Arena"})
	env := readEnvelope(t, conn)
	if env.T != MsgCreated {
		t.Fatalf("expected created, got %s", env.T)
	}
	d := dataMap(t, env)
	if sid, _ := d["sid"].(string); !uuidRegex.MatchString(sid) {
		t.Errorf("expected UUID sid, got %q", sid)
	}
	if token, _ := d["token"].(string); token == "" {
		t.Error("expected a pilot token")
	}
}

func TestPilotFliesThroughStates(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	createAndPilot(t, conn)

	st := readUntil(t, conn, MsgState)
	if s := dataMap(t, st)["state"]; s != "start" {
		t.Fatalf("expected start state, got %v", s)
	}
	f := readFrameIn(t, conn, "start")
	if len(f.Entities) != 1 || f.Entities[0].Kind != uint8(game.KindPlayer) {
		t.Fatalf("expected only the player on the start screen, got %+v", f.Entities)
	}

	sendMsg(t, conn, MsgSignal, map[string]string{"signal": "confirm"})
	st = readUntil(t, conn, MsgState)
	if s := dataMap(t, st)["state"]; s != "gameplay" {
		t.Fatalf("expected gameplay, got %v", s)
	}

	sendMsg(t, conn, MsgInput, InputMsg{Right: true})
	start := readFrameIn(t, conn, "gameplay")
	var later Frame
	for i := 0; i < 10; i++ {
		later = readFrameIn(t, conn, "gameplay")
	}
	if later.Tick <= start.Tick {
		t.Errorf("expected ticks to advance, got %d then %d", start.Tick, later.Tick)
	}
	if later.Entities[0].X <= start.Entities[0].X {
		t.Errorf("expected ship to move right, x %v -> %v", start.Entities[0].X, later.Entities[0].X)
	}

	sendMsg(t, conn, MsgSignal, map[string]string{"signal": "back"})
	st = readUntil(t, conn, MsgState)
	if s := dataMap(t, st)["state"]; s != "menu" {
		t.Errorf("expected menu, got %v", s)
	}
}

func TestPilotRejectsWrongToken(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	owner := dialWS(t, wsURL)
	defer owner.Close()
	sid, _ := createAndPilot(t, owner)

	other := dialWS(t, wsURL)
	defer other.Close()
	sendMsg(t, other, MsgCreate, nil)
	otherToken, _ := dataMap(t, readEnvelope(t, other))["token"].(string)

	sendMsg(t, other, MsgPilot, map[string]string{"sid": sid, "token": otherToken})
	env := readEnvelope(t, other)
	if env.T != MsgError {
		t.Fatalf("expected error for a token of another session, got %s", env.T)
	}
}

func TestSignalFromSpectatorRejected(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	pilot := dialWS(t, wsURL)
	defer pilot.Close()
	sid, _ := createAndPilot(t, pilot)

	watcher := dialWS(t, wsURL)
	defer watcher.Close()
	sendMsg(t, watcher, MsgWatch, map[string]string{"sid": sid})
	joined := readUntil(t, watcher, MsgJoined)
	if role := dataMap(t, joined)["role"]; role != "spectator" {
		t.Fatalf("expected spectator role, got %v", role)
	}
	readUntil(t, watcher, msgFrame)

	sendMsg(t, watcher, MsgSignal, map[string]string{"signal": "confirm"})
	env := readUntil(t, watcher, MsgError)
	if msg := dataMap(t, env)["msg"]; msg != ErrNotPilot.Error() {
		t.Errorf("expected %q, got %v", ErrNotPilot.Error(), msg)
	}
}

func TestCheckSession(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	sid, _ := createAndPilot(t, conn)

	sendMsg(t, conn, MsgCheck, map[string]string{"sid": sid})
	d := dataMap(t, readUntil(t, conn, MsgChecked))
	if d["exists"] != true || d["name"] != "Test Arena" {
		t.Errorf("expected existing Test Arena, got %v", d)
	}

	sendMsg(t, conn, MsgCheck, map[string]string{"sid": GenerateUUID()})
	d = dataMap(t, readUntil(t, conn, MsgChecked))
	if d["exists"] != false {
		t.Errorf("expected unknown session to not exist, got %v", d)
	}
}

func TestLeaveEndsEmptySession(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	sid, _ := createAndPilot(t, conn)

	sendMsg(t, conn, MsgLeave, nil)
	deadline := time.Now().Add(readTimeout)
	for hub.sessions.GetSession(sid) != nil {
		if time.Now().After(deadline) {
			t.Fatal("expected session to end after its only client left")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIdleSessionReaped(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	sendMsg(t, conn, MsgCreate, nil)
	sid, _ := dataMap(t, readEnvelope(t, conn))["sid"].(string)

	if n := hub.sessions.ReapIdle(time.Now()); n != 0 {
		t.Fatalf("expected fresh session to survive, reaped %d", n)
	}
	if n := hub.sessions.ReapIdle(time.Now().Add(SessionIdleTimeout + time.Second)); n != 1 {
		t.Fatalf("expected 1 idle session reaped, got %d", n)
	}

	sendMsg(t, conn, MsgCheck, map[string]string{"sid": sid})
	if d := dataMap(t, readUntil(t, conn, MsgChecked)); d["exists"] != false {
		t.Errorf("expected reaped session to be gone, got %v", d)
	}
}

func TestRegisterLoginProfile(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	sendMsg(t, conn, MsgRegister, map[string]string{"username": "vega", "password": "hunter22"})
	env := readEnvelope(t, conn)
	if env.T != MsgAuthOK {
		t.Fatalf("expected auth_ok, got %s %v", env.T, env.Data)
	}

	other := dialWS(t, wsURL)
	defer other.Close()
	sendMsg(t, other, MsgLogin, map[string]string{"username": "vega", "password": "wrong"})
	if env := readEnvelope(t, other); env.T != MsgError {
		t.Fatalf("expected error for bad password, got %s", env.T)
	}
	sendMsg(t, other, MsgLogin, map[string]string{"username": "vega", "password": "hunter22"})
	if env := readEnvelope(t, other); env.T != MsgAuthOK {
		t.Fatalf("expected auth_ok, got %s", env.T)
	}

	sendMsg(t, other, MsgProfile, nil)
	prof := readUntil(t, other, MsgProfileData)
	d := dataMap(t, prof)
	if d["username"] != "vega" || d["level"] != float64(1) {
		t.Errorf("expected fresh vega profile, got %v", d)
	}
	if recent, ok := d["recent"].([]interface{}); !ok || len(recent) != 0 {
		t.Errorf("expected an empty run history, got %v", d["recent"])
	}

	p, err := hub.svc.DB.GetPilotByName("vega")
	if err != nil || p == nil {
		t.Fatalf("GetPilotByName: %v %v", p, err)
	}
	if _, _, err := hub.svc.DB.RecordRun(RunRow{PilotID: p.ID, SessionID: "s1", Score: 7, Kills: 7, Wave: 2, Duration: 30}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	sendMsg(t, other, MsgProfile, nil)
	d = dataMap(t, readUntil(t, other, MsgProfileData))
	recent, _ := d["recent"].([]interface{})
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent run, got %v", d["recent"])
	}
	if run, _ := recent[0].(map[string]interface{}); run["score"] != float64(7) || run["wave"] != float64(2) {
		t.Errorf("expected score 7 on wave 2, got %v", recent[0])
	}
}

// ---------- HTTP endpoints ----------

func TestQREndpoint(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	sid, _ := createAndPilot(t, conn)

	resp, err := http.Get(srv.URL + "/qr/" + sid)
	if err != nil {
		t.Fatalf("GET qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Errorf("expected PNG data, got %d bytes", len(body))
	}

	resp2, err := http.Get(srv.URL + "/qr/" + GenerateUUID())
	if err != nil {
		t.Fatalf("GET qr: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", resp2.StatusCode)
	}
}

func TestScoresEndpoint(t *testing.T) {
	srv, _, hub, cleanup := startTestServer(t)
	defer cleanup()

	for _, score := range []int{3, 12, 7} {
		if _, _, err := hub.svc.DB.RecordRun(RunRow{Score: score, Wave: 1}); err != nil {
			t.Fatalf("record run: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/scores?limit=2")
	if err != nil {
		t.Fatalf("GET scores: %v", err)
	}
	defer resp.Body.Close()
	var scores []ScoreEntry
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].Score != 12 || scores[1].Score != 7 || scores[0].Rank != 1 {
		t.Errorf("expected 12 then 7, got %+v", scores)
	}
	if scores[0].Pilot != "guest" {
		t.Errorf("expected guest pilot, got %s", scores[0].Pilot)
	}

	bad, err := http.Get(srv.URL + "/api/scores?limit=abc")
	if err != nil {
		t.Fatalf("GET scores: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", bad.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	createAndPilot(t, conn)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"starfall_sessions 1", "starfall_tick_duration_seconds", "starfall_connected_clients"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %q in metrics output", name)
		}
	}
}

func TestSPAServesIndexForSessionPath(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/" + GenerateUUID())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "<html>test</html>" {
		t.Errorf("expected index.html, got %q", body)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dialWS(t, wsURL)
	defer conn.Close()
	createAndPilot(t, conn)

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	defer resp.Body.Close()
	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["sessions"] != float64(1) || stats["connections"] != float64(1) {
		t.Errorf("expected 1 session and 1 connection, got %v", stats)
	}
	if stats["dropped_events"] != float64(0) {
		t.Errorf("expected no dropped analytics events, got %v", stats["dropped_events"])
	}

	bad, err := http.Get(srv.URL + "/api/stats?days=0")
	if err != nil {
		t.Fatalf("GET stats: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", bad.StatusCode)
	}
}
