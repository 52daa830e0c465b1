package game

import (
	"fmt"
	"math"
)

// Handle identifies an actor inside one World. Zero means no actor.
type Handle uint32

// Kind tags the variant of an actor.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindEnemy
	KindProjectile
	KindPickup
	KindShieldZone
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindEnemy:
		return "enemy"
	case KindProjectile:
		return "projectile"
	case KindPickup:
		return "pickup"
	case KindShieldZone:
		return "shield"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Contact is how one actor wants to react to touching another. Values are
// ordered from least to most restrictive; when the two sides disagree the
// more restrictive one wins.
type Contact uint8

const (
	ContactImpact  Contact = iota // elastic exchange plus damage both ways
	ContactBounce                 // elastic exchange only
	ContactAbsorb                 // damage both ways without an exchange
	ContactCollect                // a pickup is taken by the other side
	ContactIgnore
)

// Variant supplies the behaviour that differs per kind.
type Variant interface {
	Kind() Kind
	act(w *World, self *Actor, dt float64)
	contact(self, other *Actor) Contact
	onCollision(w *World, self, other *Actor)
	// onWall reports whether the variant consumed a wall hit.
	onWall(w *World, self *Actor) bool
	onDeath(w *World, self *Actor)
}

// baseVariant holds the default behaviour variants embed.
type baseVariant struct{}

func (baseVariant) act(*World, *Actor, float64) {}
func (baseVariant) contact(_, _ *Actor) Contact { return ContactImpact }
func (baseVariant) onWall(*World, *Actor) bool  { return false }
func (baseVariant) onDeath(*World, *Actor)      {}
func (baseVariant) onCollision(w *World, self, other *Actor) {
	self.takeHit(other)
}

// Actor is a physical body in the arena.
type Actor struct {
	handle  Handle
	seq     uint64
	cell    int
	variant Variant

	Position     Vector2
	Velocity     Vector2
	force        Vector2
	acceleration Vector2
	Heading      float64

	Mass            float64
	Radius          float64
	Friction        float64
	Restitution     float64
	Thrust          float64
	HitPoints       float64
	MaxHitPoints    float64
	Energy          float64
	MaxEnergy       float64
	EnergyRegen     float64
	CollisionDamage float64

	KillChain         int
	OutOfBoundsStreak int
	LastHitBy         Handle
	// Kinematic actors are placed by their variant and skip integration,
	// wall and actor resolution.
	Kinematic bool

	offensive Module
	defensive Module
	tactical  Module
	arsenal   []Module
}

// checkBody rejects a mass or radius the integrator cannot divide by.
func checkBody(mass, radius float64) error {
	if !finite(mass) || mass <= 0 {
		return configErr("mass", mass, ErrInvalidMass)
	}
	if !finite(radius) || radius < 0 {
		return configErr("radius", radius, ErrInvalidRadius)
	}
	return nil
}

func newActor(v Variant, s Stats, pos Vector2) (*Actor, error) {
	if err := checkBody(s.Mass, s.Radius); err != nil {
		return nil, err
	}
	return &Actor{
		variant:         v,
		cell:            -1,
		Position:        pos,
		Mass:            s.Mass,
		Radius:          s.Radius,
		Friction:        s.Friction,
		Restitution:     s.Restitution,
		Thrust:          s.Thrust,
		HitPoints:       s.MaxHitPoints,
		MaxHitPoints:    s.MaxHitPoints,
		Energy:          s.MaxEnergy,
		MaxEnergy:       s.MaxEnergy,
		EnergyRegen:     s.EnergyRegen,
		CollisionDamage: s.CollisionDamage,
	}, nil
}

func (a *Actor) Handle() Handle   { return a.handle }
func (a *Actor) Kind() Kind       { return a.variant.Kind() }
func (a *Actor) Variant() Variant { return a.variant }
func (a *Actor) Alive() bool      { return a.HitPoints > 0 }

// Force is the force accumulated since the last physics step
func (a *Actor) Force() Vector2 { return a.force }

// Acceleration is the acceleration carried into the next physics step
func (a *Actor) Acceleration() Vector2 { return a.acceleration }

// ApplyForce accumulates f into the pending force. Non-finite forces are dropped.
func (a *Actor) ApplyForce(f Vector2) {
	if !finite(f.X) || !finite(f.Y) {
		return
	}
	a.force.AddInPlace(f)
}

// Damage lowers hit points, clamped to [0, MaxHitPoints]
func (a *Actor) Damage(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	a.HitPoints = clamp(a.HitPoints-amount, 0, a.MaxHitPoints)
}

// Heal raises hit points, clamped to [0, MaxHitPoints]
func (a *Actor) Heal(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	a.HitPoints = clamp(a.HitPoints+amount, 0, a.MaxHitPoints)
}

// Kill drops hit points to zero. The actor is removed at the start of the next tick.
func (a *Actor) Kill() { a.HitPoints = 0 }

// DrainEnergy spends amount if the actor has it and reports whether it did
func (a *Actor) DrainEnergy(amount float64) bool {
	if math.IsNaN(amount) || amount > a.Energy {
		return false
	}
	a.Energy = clamp(a.Energy-amount, 0, a.MaxEnergy)
	return true
}

// BleedEnergy removes up to amount, stopping at zero
func (a *Actor) BleedEnergy(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	a.Energy = clamp(a.Energy-amount, 0, a.MaxEnergy)
}

// AddEnergy restores energy, clamped to MaxEnergy
func (a *Actor) AddEnergy(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	a.Energy = clamp(a.Energy+amount, 0, a.MaxEnergy)
}

func (a *Actor) takeHit(other *Actor) {
	a.Damage(other.CollisionDamage)
	a.KillChain = 0
	a.LastHitBy = other.handle
}

// update runs one tick for the actor: variant behaviour, then physics.
func (a *Actor) update(w *World, dt float64) {
	a.variant.act(w, a, dt)
	if !a.Kinematic {
		a.integrate(dt)
		w.grid.Move(a)
		w.resolveWalls(a, dt)
		w.resolveActors(a, dt)
	}
	a.regenerate()
}

// integrate applies friction, the accumulated force and one Euler step.
func (a *Actor) integrate(dt float64) {
	// Cap the drag so friction can stop a body but never reverse it.
	drag := a.Friction
	if limit := a.Mass / dt; drag > limit {
		drag = limit
	}
	a.force.AddInPlace(a.Velocity.Scale(-drag))
	a.acceleration.AddInPlace(a.force.Div(a.Mass))
	a.force = Vector2{}

	a.Velocity.AddInPlace(a.acceleration.Scale(dt))
	if a.Velocity.Magnitude() < VelocityEpsilon {
		a.Velocity = Vector2{}
	}
	a.acceleration = Vector2{}

	a.Position.AddInPlace(a.Velocity.Scale(dt))
}

func (a *Actor) regenerate() {
	if a.Energy < a.MaxEnergy {
		a.Energy = math.Min(a.Energy+a.EnergyRegen, a.MaxEnergy)
	}
}

// Offensive returns the equipped offensive module, or nil
func (a *Actor) Offensive() Module { return a.offensive }
func (a *Actor) Defensive() Module { return a.defensive }
func (a *Actor) Tactical() Module  { return a.tactical }

// Arsenal lists the offensive modules carried, equipped one included
func (a *Actor) Arsenal() []Module {
	out := make([]Module, len(a.arsenal))
	copy(out, a.arsenal)
	return out
}

// Equip places m in its slot. Offensive modules also join the arsenal.
// The module it displaces is deactivated.
func (a *Actor) Equip(w *World, m Module) {
	if m == nil {
		return
	}
	var slot *Module
	switch m.Slot() {
	case SlotOffensive:
		a.arsenal = append(a.arsenal, m)
		slot = &a.offensive
	case SlotDefensive:
		slot = &a.defensive
	case SlotTactical:
		slot = &a.tactical
	default:
		return
	}
	if *slot != nil {
		(*slot).Deactivate(w, a)
	}
	*slot = m
}

// SwapOffensive cycles to the next offensive module in the arsenal
func (a *Actor) SwapOffensive(w *World) {
	if len(a.arsenal) < 2 {
		return
	}
	next := 0
	for i, m := range a.arsenal {
		if m == a.offensive {
			next = (i + 1) % len(a.arsenal)
			break
		}
	}
	if a.offensive != nil {
		a.offensive.Deactivate(w, a)
	}
	a.offensive = a.arsenal[next]
}
