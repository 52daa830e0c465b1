package game

import "strings"

// Direction is one of the four thrust axes.
type Direction uint8

const (
	Up Direction = iota + 1
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// Unit is the unit vector of the direction in screen coordinates (y down)
func (d Direction) Unit() Vector2 {
	switch d {
	case Up:
		return Vector2{Y: -1}
	case Down:
		return Vector2{Y: 1}
	case Left:
		return Vector2{X: -1}
	case Right:
		return Vector2{X: 1}
	}
	return Vector2{}
}

// ParseDirection converts a command token into a Direction
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "north", "n":
		return Up, nil
	case "down", "south", "s":
		return Down, nil
	case "left", "west", "w":
		return Left, nil
	case "right", "east", "e":
		return Right, nil
	}
	return 0, configErr("direction", s, ErrInvalidDirection)
}

// Controls is the command surface shared by human input and AI.
type Controls interface {
	Accelerate(dir Direction)
	AimAt(target Vector2)
	ActivateOffensiveModule()
	ActivateDefensiveModule()
	ActivateTacticalModule()
	SwapOffensiveModule()
}

// Controller issues commands to one actor. Commands addressed to an actor
// that is gone or dead are dropped.
type Controller struct {
	w *World
	h Handle
}

var _ Controls = Controller{}

func (c Controller) Handle() Handle { return c.h }

func (c Controller) actor() (*Actor, bool) {
	if c.w == nil {
		return nil, false
	}
	a, ok := c.w.Lookup(c.h)
	if !ok || !a.Alive() {
		return nil, false
	}
	return a, true
}

// Accelerate applies the actor's thrust along dir for the next step
func (c Controller) Accelerate(dir Direction) {
	a, ok := c.actor()
	if !ok {
		return
	}
	a.ApplyForce(dir.Unit().Scale(a.Thrust))
}

// AimAt turns the actor's heading towards target
func (c Controller) AimAt(target Vector2) {
	a, ok := c.actor()
	if !ok || !finite(target.X) || !finite(target.Y) {
		return
	}
	d := target.Sub(a.Position)
	if d.IsZero() {
		return
	}
	a.Heading = d.Angle()
}

func (c Controller) ActivateOffensiveModule() { c.activate(SlotOffensive) }
func (c Controller) ActivateDefensiveModule() { c.activate(SlotDefensive) }
func (c Controller) ActivateTacticalModule()  { c.activate(SlotTactical) }

func (c Controller) activate(slot Slot) {
	a, ok := c.actor()
	if !ok {
		return
	}
	var m Module
	switch slot {
	case SlotOffensive:
		m = a.offensive
	case SlotDefensive:
		m = a.defensive
	case SlotTactical:
		m = a.tactical
	}
	if m != nil {
		m.Activate(c.w, a)
	}
}

// SwapOffensiveModule cycles the offensive slot through the arsenal
func (c Controller) SwapOffensiveModule() {
	a, ok := c.actor()
	if !ok {
		return
	}
	a.SwapOffensive(c.w)
}
