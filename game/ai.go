package game

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// AI drives an enemy once per tick through the same Controls a pilot uses.
type AI interface {
	Think(w *World, self *Actor, ctl Controls, dt float64)
}

// AIFunc adapts a plain function to an AI
type AIFunc func(w *World, self *Actor, ctl Controls, dt float64)

func (f AIFunc) Think(w *World, self *Actor, ctl Controls, dt float64) { f(w, self, ctl, dt) }

// Chaser closes in on the player, keeps its guns on them and fires whenever
// the cannon is ready.
type Chaser struct {
	Standoff float64 // stop pushing in once this close
	Deadzone float64 // per-axis slack before thrusting
}

const (
	defaultStandoff = 150.0
	defaultDeadzone = 10.0
)

func (c *Chaser) Think(w *World, self *Actor, ctl Controls, _ float64) {
	target, ok := w.Player()
	if !ok || !target.Alive() {
		return
	}
	standoff, deadzone := c.Standoff, c.Deadzone
	if standoff <= 0 {
		standoff = defaultStandoff
	}
	if deadzone <= 0 {
		deadzone = defaultDeadzone
	}
	ctl.AimAt(target.Position)
	d := target.Position.Sub(self.Position)
	if d.Magnitude() > standoff {
		steer(ctl, d, deadzone)
	}
	ctl.ActivateOffensiveModule()
}

// Drifter wanders along a Perlin noise path and only shoots at a player who
// strays into range.
type Drifter struct {
	Range     float64
	Frequency float64
	noise     *perlin.Perlin
	offset    float64
}

// NewDrifter builds a Drifter whose path is fixed by seed
func NewDrifter(seed int64) *Drifter {
	return &Drifter{
		Range:     300,
		Frequency: 0.5,
		noise:     perlin.NewPerlin(2, 2, 3, seed),
		offset:    float64(seed%1000) + 0.5,
	}
}

// Bearing is the wander direction at time t, in radians within [-PI, PI]
func (d *Drifter) Bearing(t float64) float64 {
	return NormalizeAngle(d.noise.Noise1D(t*d.Frequency+d.offset) * 3 * math.Pi)
}

func (d *Drifter) Think(w *World, self *Actor, ctl Controls, _ float64) {
	steer(ctl, FromAngle(d.Bearing(w.Clock()), 1), 0.3)

	target, ok := w.Player()
	if !ok || !target.Alive() {
		return
	}
	if self.Position.Distance(target.Position) <= d.Range {
		ctl.AimAt(target.Position)
		ctl.ActivateOffensiveModule()
	}
}

// steer thrusts along each axis where d exceeds deadzone.
func steer(ctl Controls, d Vector2, deadzone float64) {
	switch {
	case d.X > deadzone:
		ctl.Accelerate(Right)
	case d.X < -deadzone:
		ctl.Accelerate(Left)
	}
	switch {
	case d.Y > deadzone:
		ctl.Accelerate(Down)
	case d.Y < -deadzone:
		ctl.Accelerate(Up)
	}
}
