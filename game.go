package main

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"starfall-arena/game"
)

var (
	ErrPilotTaken  = errors.New("session already has a pilot")
	ErrNotPilot    = errors.New("only the pilot can do that")
	ErrSessionDone = errors.New("session has ended")
)

const maxSpectators = 16

// Broadcaster is the outbound half of a connection
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Game runs one simulation engine for a session: a single pilot flies the
// ship and any number of spectators receive the same frames.
type Game struct {
	mu       sync.Mutex
	sid      string
	engine   *game.Engine
	svc      *Services
	log      *slog.Logger
	dt       float64
	interval time.Duration
	every    uint64

	pilot      Broadcaster
	pilotID    int64 // account flying the current run, 0 for guests
	spectators map[Broadcaster]struct{}

	held InputMsg
	prev InputMsg

	events   []game.Event
	effects  []EffectState
	entities int
	frames   uint64

	lastActive time.Time
	running    bool
	stopped    bool
	stop       chan struct{}
	done       chan struct{}
}

// NewGame builds the engine for session sid. The engine starts on its start
// screen; nothing moves until the pilot confirms.
func NewGame(sid string, svc *Services) (*Game, error) {
	cfg := svc.Game
	g := &Game{
		sid:        sid,
		svc:        svc,
		log:        svc.Log.With("sid", sid),
		dt:         1.0 / float64(cfg.TickRate),
		interval:   time.Second / time.Duration(cfg.TickRate),
		every:      uint64(cfg.TickRate / cfg.BroadcastRate),
		spectators: make(map[Broadcaster]struct{}),
		lastActive: time.Now(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if g.every == 0 {
		g.every = 1
	}
	engine, err := game.NewEngine(game.Config{
		Width:  cfg.Width,
		Height: cfg.Height,
		Seed:   cfg.Seed,
		Logger: g.log,
		Events: game.EventFunc(g.collect),
	}, svc.NewLevel)
	if err != nil {
		return nil, err
	}
	g.engine = engine
	return g, nil
}

// Run drives the engine at the configured tick rate until Stop
func (g *Game) Run() {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()
	defer close(g.done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.step()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the loop and releases the session's metric share
func (g *Game) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	running := g.running
	g.stopped = true
	close(g.stop)
	g.svc.Metrics.Entities.Sub(float64(g.entities))
	g.entities = 0
	g.mu.Unlock()
	if running {
		<-g.done
	}
}

// collect is the engine's event sink. It runs inside step with mu held.
func (g *Game) collect(e game.Event) {
	g.events = append(g.events, e)
}

// step advances the simulation by one tick and fans the results out
func (g *Game) step() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}

	g.applyInput()

	start := time.Now()
	if err := g.engine.Tick(g.dt); err != nil {
		g.log.Error("tick failed", "err", err)
		return
	}
	g.svc.Metrics.TickDuration.Observe(time.Since(start).Seconds())

	n := g.engine.World().Len()
	g.svc.Metrics.Entities.Add(float64(n - g.entities))
	g.entities = n

	g.drainEvents()

	g.frames++
	if g.frames%g.every == 0 {
		g.broadcastFrame()
	}
}

// applyInput feeds the held keys to the pilot controller. Fire and thrust
// act while held; shield, afterburner and swap act on the press.
func (g *Game) applyInput() {
	in, prev := g.held, g.prev
	g.prev = in

	ctl := g.engine.Pilot()
	if in.HasAim {
		ctl.AimAt(game.Vec(in.AimX, in.AimY))
	}
	if in.Up {
		ctl.Accelerate(game.Up)
	}
	if in.Down {
		ctl.Accelerate(game.Down)
	}
	if in.Left {
		ctl.Accelerate(game.Left)
	}
	if in.Right {
		ctl.Accelerate(game.Right)
	}
	if in.Fire {
		ctl.ActivateOffensiveModule()
	}
	if in.Shield && !prev.Shield {
		ctl.ActivateDefensiveModule()
	}
	if in.Boost && !prev.Boost {
		ctl.ActivateTacticalModule()
	}
	if in.Swap && !prev.Swap {
		ctl.SwapOffensiveModule()
	}
}

func (g *Game) drainEvents() {
	events := g.events
	g.events = nil
	for _, e := range events {
		switch e.Type {
		case game.EventExplosion:
			g.effects = append(g.effects, EffectState{
				Kind: e.Entity.String(),
				X:    float32(e.Position.X),
				Y:    float32(e.Position.Y),
			})
		case game.EventWaveStarted:
			g.svc.Metrics.Waves.Inc()
			g.svc.Analytics.Track(EvtWaveStarted, g.pilotID, g.sid, map[string]any{"wave": e.Wave})
		case game.EventEnemyDestroyed:
			g.svc.Metrics.EnemiesKilled.Inc()
			g.svc.Analytics.Track(EvtEnemyDestroyed, g.pilotID, g.sid, map[string]any{"score": e.Score})
		case game.EventPickupCollected:
			g.svc.Analytics.Track(EvtPickup, g.pilotID, g.sid, map[string]any{"payload": e.Detail})
		case game.EventStuckRecovered:
			g.svc.Metrics.StuckRecovered.Inc()
			g.svc.Analytics.Track(EvtStuck, g.pilotID, g.sid, map[string]any{"kind": e.Entity.String()})
		case game.EventPlayerDied:
			g.svc.Metrics.PilotDeaths.Inc()
			g.finishRun()
		case game.EventStateChanged:
			g.sendAll(Envelope{T: MsgState, Data: StateMsg{State: e.State.String()}})
		}
	}
}

// finishRun records the run that just ended and tells the session. The
// database work happens off the simulation goroutine.
func (g *Game) finishRun() {
	st := g.engine.Status()
	run := RunRow{
		PilotID:   g.pilotID,
		SessionID: g.sid,
		Score:     st.Score,
		Kills:     st.Kills,
		BestChain: st.BestChain,
		Wave:      st.Wave,
		Parts:     st.Parts,
		Duration:  st.Clock,
	}
	g.log.Info("run over", "score", run.Score, "wave", run.Wave, "kills", run.Kills, "duration", run.Duration)
	g.svc.Analytics.Track(EvtRunEnd, run.PilotID, g.sid, map[string]any{
		"score":    run.Score,
		"wave":     run.Wave,
		"duration": run.Duration,
	})

	targets := g.targets()
	go g.recordRun(run, targets)
}

func (g *Game) recordRun(run RunRow, targets []Broadcaster) {
	msg := RunOverMsg{
		Score:     run.Score,
		Kills:     run.Kills,
		BestChain: run.BestChain,
		Wave:      run.Wave,
		Parts:     run.Parts,
		Duration:  run.Duration,
	}
	if db := g.svc.DB; db != nil {
		if _, stats, err := db.RecordRun(run); err != nil {
			g.log.Error("record run", "err", err)
		} else if stats != nil {
			msg.XP, msg.Level = stats.XP, stats.Level
		}
		msg.Achievements = CheckAchievements(db, run)
		for _, a := range msg.Achievements {
			g.svc.Analytics.Track(EvtAchievement, run.PilotID, run.SessionID, map[string]any{"id": a.ID})
		}
	}
	for _, c := range targets {
		c.SendJSON(Envelope{T: MsgRunOver, Data: msg})
	}
}

func (g *Game) broadcastFrame() {
	snap := g.engine.Snapshot()
	frame := Frame{
		Tick:     g.engine.World().TickCount(),
		State:    g.engine.State().String(),
		HUD:      toHUD(g.engine.Status()),
		Entities: make([]EntityState, len(snap)),
		Effects:  g.effects,
	}
	for i, e := range snap {
		frame.Entities[i] = toEntityState(e)
	}
	g.effects = nil

	data, err := msgpack.Marshal(&frame)
	if err != nil {
		g.log.Error("encode frame", "err", err)
		return
	}
	for _, c := range g.targets() {
		c.SendBinary(data)
	}
}

func (g *Game) targets() []Broadcaster {
	out := make([]Broadcaster, 0, len(g.spectators)+1)
	if g.pilot != nil {
		out = append(out, g.pilot)
	}
	for c := range g.spectators {
		out = append(out, c)
	}
	return out
}

func (g *Game) sendAll(msg Envelope) {
	for _, c := range g.targets() {
		c.SendJSON(msg)
	}
}

// AttachPilot hands the ship to c. pilotID is the account credited with the
// runs it flies, 0 for a guest.
func (g *Game) AttachPilot(c Broadcaster, pilotID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return ErrSessionDone
	}
	if g.pilot != nil && g.pilot != c {
		return ErrPilotTaken
	}
	delete(g.spectators, c)
	g.pilot = c
	g.pilotID = pilotID
	g.held, g.prev = InputMsg{}, InputMsg{}
	g.lastActive = time.Now()
	return nil
}

// AddSpectator adds c to the frame broadcast
func (g *Game) AddSpectator(c Broadcaster) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return ErrSessionDone
	}
	if len(g.spectators) >= maxSpectators {
		return errors.New("session full")
	}
	g.spectators[c] = struct{}{}
	g.lastActive = time.Now()
	return nil
}

// RemoveClient detaches c and returns how many connections remain
func (g *Game) RemoveClient(c Broadcaster) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pilot == c {
		g.pilot = nil
		g.held = InputMsg{}
	}
	delete(g.spectators, c)
	return g.clientCount()
}

func (g *Game) clientCount() int {
	n := len(g.spectators)
	if g.pilot != nil {
		n++
	}
	return n
}

// ClientCount returns the number of attached connections
func (g *Game) ClientCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clientCount()
}

// HandleInput replaces the held-key state when c is the pilot
func (g *Game) HandleInput(c Broadcaster, in InputMsg) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pilot != c {
		return ErrNotPilot
	}
	g.held = in
	g.lastActive = time.Now()
	return nil
}

// HandleSignal forwards a screen signal from the pilot to the engine
func (g *Game) HandleSignal(c Broadcaster, sig game.Signal) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pilot != c {
		return false, ErrNotPilot
	}
	g.lastActive = time.Now()
	from := g.engine.State()
	changed, err := g.engine.Signal(sig)
	if err != nil {
		return false, err
	}
	if changed && from == game.StateStartScreen {
		g.svc.Analytics.Track(EvtRunStart, g.pilotID, g.sid, map[string]any{"run": g.engine.Runs()})
	}
	if changed && from == game.StateDeathScreen {
		g.held, g.prev = InputMsg{}, InputMsg{}
	}
	// State changes are announced from the event queue on the next tick,
	// but a signal can arrive while the loop is idle in a paused state.
	g.drainEvents()
	return changed, nil
}

// State returns the engine's screen state
func (g *Game) State() game.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.State()
}

// Status returns the HUD view of the current run
func (g *Game) Status() game.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Status()
}

// Piloted reports whether a pilot is attached
func (g *Game) Piloted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pilot != nil
}

// IdleSince returns the last time a client did anything in this session
func (g *Game) IdleSince() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastActive
}

// Touch marks the session active
func (g *Game) Touch() {
	g.mu.Lock()
	g.lastActive = time.Now()
	g.mu.Unlock()
}
