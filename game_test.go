package main

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vmihailenco/msgpack/v5"

	"starfall-arena/game"
)

// fakeConn records everything a Game sends to it
type fakeConn struct {
	mu     sync.Mutex
	json   []Envelope
	frames [][]byte
}

func (f *fakeConn) SendJSON(msg interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := msg.(Envelope); ok {
		f.json = append(f.json, env)
	}
}

func (f *fakeConn) SendBinary(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
}

func (f *fakeConn) messages(t string) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, env := range f.json {
		if env.T == t {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeConn) lastFrame(t *testing.T) Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		t.Fatal("no frames received")
	}
	var fr Frame
	if err := msgpack.Unmarshal(f.frames[len(f.frames)-1], &fr); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	return fr
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func newTestGame(t *testing.T) (*Game, *Services) {
	t.Helper()
	svc := testServices(t)
	g, err := NewGame("test-session", svc)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	t.Cleanup(g.Stop)
	return g, svc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func playerOf(t *testing.T, g *Game) *game.Actor {
	t.Helper()
	p, ok := g.engine.World().Player()
	if !ok {
		t.Fatal("expected a player in the world")
	}
	return p
}

func TestGameStartsIdleOnStartScreen(t *testing.T) {
	g, _ := newTestGame(t)
	pilot := &fakeConn{}
	if err := g.AttachPilot(pilot, 0); err != nil {
		t.Fatalf("AttachPilot: %v", err)
	}

	for i := 0; i < 4; i++ {
		g.step()
	}
	if g.State() != game.StateStartScreen {
		t.Errorf("expected start screen, got %s", g.State())
	}
	if clock := g.Status().Clock; clock != 0 {
		t.Errorf("expected clock to stay at 0, got %v", clock)
	}
	// 60 Hz ticks, 30 Hz frames
	if n := pilot.frameCount(); n != 2 {
		t.Errorf("expected 2 frames from 4 steps, got %d", n)
	}
	fr := pilot.lastFrame(t)
	if fr.State != "start" {
		t.Errorf("expected frame state start, got %s", fr.State)
	}
	if len(fr.Entities) != 1 || fr.Entities[0].Kind != uint8(game.KindPlayer) {
		t.Errorf("expected only the player, got %+v", fr.Entities)
	}
}

func TestGameOnlyPilotControls(t *testing.T) {
	g, _ := newTestGame(t)
	pilot, other := &fakeConn{}, &fakeConn{}

	if err := g.AttachPilot(pilot, 0); err != nil {
		t.Fatalf("AttachPilot: %v", err)
	}
	if err := g.AttachPilot(other, 0); !errors.Is(err, ErrPilotTaken) {
		t.Errorf("expected ErrPilotTaken, got %v", err)
	}
	if err := g.AddSpectator(other); err != nil {
		t.Fatalf("AddSpectator: %v", err)
	}
	if err := g.HandleInput(other, InputMsg{Up: true}); !errors.Is(err, ErrNotPilot) {
		t.Errorf("expected ErrNotPilot for input, got %v", err)
	}
	if _, err := g.HandleSignal(other, game.SignalConfirm); !errors.Is(err, ErrNotPilot) {
		t.Errorf("expected ErrNotPilot for signal, got %v", err)
	}
	if n := g.ClientCount(); n != 2 {
		t.Errorf("expected 2 clients, got %d", n)
	}
}

func TestGameSignalAnnouncesState(t *testing.T) {
	g, _ := newTestGame(t)
	pilot, watcher := &fakeConn{}, &fakeConn{}
	g.AttachPilot(pilot, 0)
	g.AddSpectator(watcher)

	changed, err := g.HandleSignal(pilot, game.SignalConfirm)
	if err != nil || !changed {
		t.Fatalf("expected confirm to change state, got %v %v", changed, err)
	}
	for _, c := range []*fakeConn{pilot, watcher} {
		states := c.messages(MsgState)
		if len(states) != 1 {
			t.Fatalf("expected 1 state message, got %d", len(states))
		}
		if s := states[0].Data.(StateMsg).State; s != "gameplay" {
			t.Errorf("expected gameplay, got %s", s)
		}
	}

	// confirm has no meaning during gameplay
	changed, err = g.HandleSignal(pilot, game.SignalConfirm)
	if err != nil || changed {
		t.Errorf("expected confirm to be ignored in gameplay, got %v %v", changed, err)
	}
}

func TestGameHeldInputMovesShip(t *testing.T) {
	g, _ := newTestGame(t)
	pilot := &fakeConn{}
	g.AttachPilot(pilot, 0)
	g.HandleSignal(pilot, game.SignalConfirm)

	startX := playerOf(t, g).Position.X
	g.HandleInput(pilot, InputMsg{Right: true})
	for i := 0; i < 20; i++ {
		g.step()
	}
	if x := playerOf(t, g).Position.X; x <= startX {
		t.Errorf("expected ship to move right from %v, got %v", startX, x)
	}
}

func TestGameShieldActsOnPress(t *testing.T) {
	g, _ := newTestGame(t)
	pilot := &fakeConn{}
	g.AttachPilot(pilot, 0)
	g.HandleSignal(pilot, game.SignalConfirm)

	g.HandleInput(pilot, InputMsg{Shield: true})
	for i := 0; i < 5; i++ {
		g.step()
	}
	if !g.Status().ShieldUp {
		t.Fatal("expected shield to be raised")
	}
	zones := 0
	for _, a := range g.engine.World().Actors() {
		if a.Kind() == game.KindShieldZone && a.Alive() {
			zones++
		}
	}
	if zones != 1 {
		t.Errorf("expected holding the key to raise exactly 1 shield, got %d", zones)
	}
}

func TestGameDeathRecordsRun(t *testing.T) {
	g, svc := newTestGame(t)
	pid, err := svc.DB.CreatePilot("ace", "")
	if err != nil {
		t.Fatalf("CreatePilot: %v", err)
	}
	pilot := &fakeConn{}
	g.AttachPilot(pilot, pid)
	g.HandleSignal(pilot, game.SignalConfirm)
	for i := 0; i < 10; i++ {
		g.step()
	}

	playerOf(t, g).Kill()
	g.step()

	if g.State() != game.StateDeathScreen {
		t.Fatalf("expected death screen, got %s", g.State())
	}
	if v := testutil.ToFloat64(svc.Metrics.PilotDeaths); v != 1 {
		t.Errorf("expected 1 pilot death, got %v", v)
	}
	waitFor(t, "run_over", func() bool { return len(pilot.messages(MsgRunOver)) == 1 })

	over := pilot.messages(MsgRunOver)[0].Data.(RunOverMsg)
	if over.Duration <= 0 {
		t.Errorf("expected a positive run duration, got %v", over.Duration)
	}
	if over.Level != 1 {
		t.Errorf("expected level 1, got %d", over.Level)
	}

	runs, err := svc.DB.GetRuns(pid, 10)
	if err != nil {
		t.Fatalf("GetRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].SessionID != "test-session" {
		t.Errorf("expected 1 recorded run for the session, got %+v", runs)
	}
	stats, _ := svc.DB.GetStats(pid)
	if stats == nil || stats.Runs != 1 {
		t.Errorf("expected stats with 1 run, got %+v", stats)
	}

	// back from the death screen starts a fresh run
	if _, err := g.HandleSignal(pilot, game.SignalBack); err != nil {
		t.Fatalf("HandleSignal: %v", err)
	}
	if g.State() != game.StateStartScreen {
		t.Errorf("expected start screen, got %s", g.State())
	}
	if p := playerOf(t, g); !p.Alive() {
		t.Error("expected a live ship after the reset")
	}
}

func TestGameStopReleasesEntityGauge(t *testing.T) {
	g, svc := newTestGame(t)
	pilot := &fakeConn{}
	g.AttachPilot(pilot, 0)
	g.HandleSignal(pilot, game.SignalConfirm)
	g.step()

	if v := testutil.ToFloat64(svc.Metrics.Entities); v != 1 {
		t.Errorf("expected 1 entity, got %v", v)
	}
	g.Stop()
	if v := testutil.ToFloat64(svc.Metrics.Entities); v != 0 {
		t.Errorf("expected 0 entities after stop, got %v", v)
	}
	if err := g.AttachPilot(&fakeConn{}, 0); !errors.Is(err, ErrSessionDone) {
		t.Errorf("expected ErrSessionDone, got %v", err)
	}
	// a second Stop is a no-op
	g.Stop()
}

func TestGameRunLoopBroadcasts(t *testing.T) {
	g, _ := newTestGame(t)
	watcher := &fakeConn{}
	g.AddSpectator(watcher)

	go g.Run()
	waitFor(t, "frames", func() bool { return watcher.frameCount() >= 3 })
	g.Stop()

	n := watcher.frameCount()
	time.Sleep(50 * time.Millisecond)
	if watcher.frameCount() != n {
		t.Error("expected no frames after Stop")
	}
}

func TestGameRemoveClient(t *testing.T) {
	g, _ := newTestGame(t)
	pilot, watcher := &fakeConn{}, &fakeConn{}
	g.AttachPilot(pilot, 0)
	g.AddSpectator(watcher)

	if n := g.RemoveClient(pilot); n != 1 {
		t.Errorf("expected 1 remaining, got %d", n)
	}
	if g.Piloted() {
		t.Error("expected no pilot after removal")
	}
	// the seat is free again
	if err := g.AttachPilot(watcher, 0); err != nil {
		t.Errorf("expected spectator to take the free seat, got %v", err)
	}
	if n := g.RemoveClient(watcher); n != 0 {
		t.Errorf("expected 0 remaining, got %d", n)
	}
}
