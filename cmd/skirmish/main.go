// Command skirmish plays a local run in the terminal.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"starfall-arena/game"
)

const (
	tickRate = 60
	// Terminals report presses but not releases, so a thrust key counts as
	// held for this long after its last repeat.
	holdWindow = 180 * time.Millisecond
)

type skirmish struct {
	screen tcell.Screen
	engine *game.Engine
	events *game.Recorder
	sound  *sound

	held   map[game.Direction]time.Time
	firing time.Time
	quit   bool
}

func main() {
	seed := flag.Int64("seed", 0, "World seed (0 picks one from the clock)")
	mute := flag.Bool("mute", false, "Disable sound")
	logPath := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	if err := run(*seed, *mute, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "skirmish: %v\n", err)
		os.Exit(1)
	}
}

func run(seed int64, mute bool, logPath string) error {
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	events := &game.Recorder{}
	engine, err := game.NewEngine(game.Config{Seed: seed, Logger: log, Events: events}, nil)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	s := &skirmish{
		screen: screen,
		engine: engine,
		events: events,
		held:   make(map[game.Direction]time.Time),
	}
	if !mute {
		snd, err := newSound()
		if err != nil {
			log.Warn("audio unavailable", "err", err)
		} else {
			s.sound = snd
			defer snd.Close()
		}
	}
	return s.loop()
}

func (s *skirmish) loop() error {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	input := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				return
			}
			input <- ev
		}
	}()

	dt := 1.0 / tickRate
	for !s.quit {
		select {
		case ev := <-input:
			if err := s.handleEvent(ev); err != nil {
				return err
			}
		case now := <-ticker.C:
			s.steer(now)
			if err := s.engine.Tick(dt); err != nil {
				return err
			}
			s.playEvents()
			s.draw()
		}
	}
	return nil
}

func (s *skirmish) handleEvent(ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		s.screen.Sync()
	case *tcell.EventKey:
		now := time.Now()
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			s.quit = true
		case tcell.KeyEnter:
			return s.signal(game.SignalConfirm)
		case tcell.KeyUp:
			s.held[game.Up] = now
		case tcell.KeyDown:
			s.held[game.Down] = now
		case tcell.KeyLeft:
			s.held[game.Left] = now
		case tcell.KeyRight:
			s.held[game.Right] = now
		case tcell.KeyRune:
			return s.handleRune(ev.Rune(), now)
		}
	}
	return nil
}

func (s *skirmish) handleRune(r rune, now time.Time) error {
	ctl := s.engine.Pilot()
	switch r {
	case 'e', 'E':
		s.held[game.Up] = now
	case 'd', 'D':
		s.held[game.Down] = now
	case 's', 'S':
		s.held[game.Left] = now
	case 'f', 'F':
		s.held[game.Right] = now
	case 'j', 'J':
		s.firing = now
	case 'k', 'K':
		ctl.ActivateDefensiveModule()
	case 'l', 'L':
		ctl.ActivateTacticalModule()
	case 'w', 'W':
		ctl.SwapOffensiveModule()
	case ' ':
		return s.signal(game.SignalBack)
	case 'q', 'Q':
		s.quit = true
	}
	return nil
}

func (s *skirmish) signal(sig game.Signal) error {
	if _, err := s.engine.Signal(sig); err != nil {
		return err
	}
	if s.engine.State() != game.StateGameplay {
		clear(s.held)
		s.firing = time.Time{}
	}
	return nil
}

// steer applies the held keys and keeps the guns on the closest enemy
func (s *skirmish) steer(now time.Time) {
	ctl := s.engine.Pilot()
	for dir, at := range s.held {
		if now.Sub(at) > holdWindow {
			delete(s.held, dir)
			continue
		}
		ctl.Accelerate(dir)
	}
	if target, ok := nearestEnemy(s.engine); ok {
		ctl.AimAt(target)
	}
	if now.Sub(s.firing) <= holdWindow {
		ctl.ActivateOffensiveModule()
	}
}

func nearestEnemy(e *game.Engine) (game.Vector2, bool) {
	p, ok := e.World().Player()
	if !ok {
		return game.Vector2{}, false
	}
	var best game.Vector2
	bestDist := -1.0
	for _, a := range e.World().Actors() {
		if a.Kind() != game.KindEnemy || !a.Alive() {
			continue
		}
		if d := p.Position.Distance(a.Position); bestDist < 0 || d < bestDist {
			best, bestDist = a.Position, d
		}
	}
	return best, bestDist >= 0
}

func (s *skirmish) playEvents() {
	for _, e := range s.events.Events {
		if s.sound == nil {
			break
		}
		switch e.Type {
		case game.EventExplosion:
			if e.Entity == game.KindPlayer {
				s.sound.Play(toneDeath)
			} else {
				s.sound.Play(toneExplosion)
			}
		case game.EventPickupCollected:
			s.sound.Play(tonePickup)
		case game.EventWaveStarted:
			s.sound.Play(toneWave)
		}
	}
	s.events.Events = s.events.Events[:0]
}
