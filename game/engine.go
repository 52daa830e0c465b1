package game

import (
	"fmt"
	"log/slog"
	"strings"
)

// State is the top-level screen the engine is on.
type State uint8

const (
	StateStartScreen State = iota
	StateGameplay
	StateMenu
	StateDeathScreen
)

func (s State) String() string {
	switch s {
	case StateStartScreen:
		return "start"
	case StateGameplay:
		return "gameplay"
	case StateMenu:
		return "menu"
	case StateDeathScreen:
		return "death"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Simulating reports whether ticks advance the world in this state
func (s State) Simulating() bool {
	return s == StateGameplay || s == StateDeathScreen
}

// Signal is an edge-triggered UI command.
type Signal uint8

const (
	SignalConfirm Signal = iota + 1
	SignalBack
)

func (s Signal) String() string {
	switch s {
	case SignalConfirm:
		return "confirm"
	case SignalBack:
		return "back"
	}
	return "unknown"
}

// ParseSignal converts a command token into a Signal
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirm", "enter", "start":
		return SignalConfirm, nil
	case "back", "space", "pause":
		return SignalBack, nil
	}
	return 0, configErr("signal", s, ErrInvalidSignal)
}

type transition struct {
	from State
	sig  Signal
}

var transitions = map[transition]State{
	{StateStartScreen, SignalConfirm}: StateGameplay,
	{StateGameplay, SignalBack}:       StateMenu,
	{StateMenu, SignalConfirm}:        StateGameplay,
	{StateDeathScreen, SignalBack}:    StateStartScreen,
}

// Level populates a fresh world and feeds it enemy waves.
type Level interface {
	Setup(w *World) error
	// NextWave is called once after every tick that ends with no enemies.
	NextWave(w *World)
}

// Engine owns the world for one run and the screen state machine around it.
type Engine struct {
	cfg      Config
	newLevel func() Level
	level    Level
	world    *World
	state    State
	runs     int
	log      *slog.Logger
	events   EventSink
}

// NewEngine builds the first world with newLevel and waits on the start screen
func NewEngine(cfg Config, newLevel func() Level) (*Engine, error) {
	cfg = cfg.withDefaults()
	if newLevel == nil {
		newLevel = func() Level { return NewSkirmish() }
	}
	e := &Engine{
		cfg:      cfg,
		newLevel: newLevel,
		state:    StateStartScreen,
		log:      cfg.Logger,
		events:   cfg.Events,
	}
	if err := e.rebuild(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) rebuild() error {
	cfg := e.cfg
	cfg.Seed += int64(e.runs)
	w := NewWorld(cfg)
	level := e.newLevel()
	if err := level.Setup(w); err != nil {
		return fmt.Errorf("level setup: %w", err)
	}
	e.world = w
	e.level = level
	return nil
}

func (e *Engine) State() State  { return e.state }
func (e *Engine) World() *World { return e.world }
func (e *Engine) Runs() int     { return e.runs }

// Pilot returns the controls of the player ship. Outside gameplay every
// command is dropped.
func (e *Engine) Pilot() Controller {
	if e.state != StateGameplay {
		return Controller{}
	}
	return e.world.Control(e.world.player)
}

// Signal applies an edge-triggered command and reports whether the state
// changed. Leaving the death screen discards the world and builds a new one.
func (e *Engine) Signal(sig Signal) (bool, error) {
	next, ok := transitions[transition{e.state, sig}]
	if !ok {
		return false, nil
	}
	if e.state == StateDeathScreen && next == StateStartScreen {
		e.runs++
		if err := e.rebuild(); err != nil {
			e.runs--
			return false, err
		}
	}
	e.setState(next)
	return true, nil
}

func (e *Engine) setState(s State) {
	if s == e.state {
		return
	}
	from := e.state
	e.state = s
	e.log.Info("state changed", "from", from, "to", s, "tick", e.world.tick)
	e.world.emit(Event{Type: EventStateChanged, State: s, Score: e.world.run.Score, Wave: e.world.run.Wave})
}

// Tick advances the world by dt seconds. Outside gameplay and the death
// screen it does nothing. An actor whose mass or radius was set to an
// unusable value fails the tick before anything moves.
func (e *Engine) Tick(dt float64) error {
	if !finite(dt) || dt <= 0 {
		return configErr("dt", dt, ErrInvalidStep)
	}
	if !e.state.Simulating() {
		return nil
	}

	w := e.world
	if err := w.checkBodies(); err != nil {
		return err
	}
	w.tick++
	w.ticking = true

	w.flush()
	for _, a := range w.reap() {
		if a.handle == w.player && e.state == StateGameplay {
			e.setState(StateDeathScreen)
		}
	}
	w.flush()

	for _, a := range w.order {
		a.update(w, dt)
	}
	w.clock += dt
	w.ticking = false

	if w.EnemyCount() == 0 {
		e.level.NextWave(w)
	}
	return nil
}
