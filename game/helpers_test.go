package game

import "testing"

func newTestWorld(width, height float64) *World {
	return NewWorld(Config{Width: width, Height: height, Seed: 1})
}

func idle() SpawnOption {
	return WithAI(AIFunc(func(*World, *Actor, Controls, float64) {}))
}

func mustSpawn(t *testing.T, w *World, kind Kind, pos Vector2, opts ...SpawnOption) *Actor {
	t.Helper()
	h, err := w.Spawn(kind, pos, opts...)
	if err != nil {
		t.Fatalf("spawn %s: %v", kind, err)
	}
	a, ok := w.Lookup(h)
	if !ok {
		t.Fatalf("spawned %s (%d) not active", kind, h)
	}
	return a
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

type stubLevel struct {
	setup func(w *World) error
	waves int
}

func (l *stubLevel) Setup(w *World) error {
	if l.setup != nil {
		return l.setup(w)
	}
	return nil
}

func (l *stubLevel) NextWave(*World) { l.waves++ }
