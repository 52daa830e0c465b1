package game

// Slot is the loadout position a module occupies.
type Slot uint8

const (
	SlotOffensive Slot = iota + 1
	SlotDefensive
	SlotTactical
)

func (s Slot) String() string {
	switch s {
	case SlotOffensive:
		return "offensive"
	case SlotDefensive:
		return "defensive"
	case SlotTactical:
		return "tactical"
	}
	return "unknown"
}

// Module is equipment an actor triggers through its Controls.
type Module interface {
	Name() string
	Slot() Slot
	// Activate triggers the module. Cooldown and energy gating happen inside.
	Activate(w *World, owner *Actor)
	// Deactivate is called when the module is swapped out.
	Deactivate(w *World, owner *Actor)
}

// Cannon launches projectiles along the owner's heading.
type Cannon struct {
	Spec    CannonSpec
	readyAt float64
}

func NewCannon(spec CannonSpec) *Cannon {
	return &Cannon{Spec: spec}
}

func (c *Cannon) Name() string { return c.Spec.Name }
func (c *Cannon) Slot() Slot   { return SlotOffensive }

// Ready reports whether the cooldown has elapsed at the world's clock
func (c *Cannon) Ready(w *World) bool { return w.clock >= c.readyAt }

func (c *Cannon) Activate(w *World, owner *Actor) {
	if !owner.Alive() || !c.Ready(w) {
		return
	}
	if !owner.DrainEnergy(c.Spec.EnergyCost) {
		return
	}
	c.readyAt = w.clock + c.Spec.Cooldown
	h, err := w.Spawn(KindProjectile, owner.Position,
		WithOwner(owner.handle),
		WithDamage(c.Spec.Damage),
		WithHeading(owner.Heading),
		WithVelocity(FromAngle(owner.Heading, c.Spec.LaunchVelocity)),
	)
	if err != nil {
		w.log.Error("cannon failed to fire", "owner", owner.handle, "module", c.Spec.Name, "error", err)
		return
	}
	w.emit(Event{Type: EventModuleFired, Handle: h, Entity: owner.Kind(), Position: owner.Position, Detail: c.Spec.Name})
}

func (c *Cannon) Deactivate(*World, *Actor) {}

// ShieldGenerator toggles a shield zone around its owner.
type ShieldGenerator struct {
	zone    Handle
	readyAt float64
}

func NewShieldGenerator() *ShieldGenerator { return &ShieldGenerator{} }

func (*ShieldGenerator) Name() string { return "Shield Generator" }
func (*ShieldGenerator) Slot() Slot   { return SlotDefensive }

// Up reports whether the generator's zone is currently active
func (g *ShieldGenerator) Up(w *World) bool {
	z, ok := w.Lookup(g.zone)
	return ok && z.Alive()
}

func (g *ShieldGenerator) Activate(w *World, owner *Actor) {
	if w.clock < g.readyAt || !owner.Alive() {
		return
	}
	g.readyAt = w.clock + ShieldRearmDelay
	if z, ok := w.Lookup(g.zone); ok && z.Alive() {
		z.Kill()
		return
	}
	if owner.Energy <= 0 {
		return
	}
	h, err := w.Spawn(KindShieldZone, owner.Position, WithOwner(owner.handle))
	if err != nil {
		w.log.Error("shield failed to raise", "owner", owner.handle, "error", err)
		return
	}
	g.zone = h
	w.emit(Event{Type: EventShieldRaised, Handle: h, Entity: KindShieldZone, Position: owner.Position})
}

func (g *ShieldGenerator) Deactivate(w *World, _ *Actor) {
	if z, ok := w.Lookup(g.zone); ok {
		z.Kill()
	}
	g.zone = 0
}

// Afterburner gives a one-tick shove along the owner's heading.
type Afterburner struct {
	readyAt float64
}

func NewAfterburner() *Afterburner { return &Afterburner{} }

func (*Afterburner) Name() string { return "Afterburner" }
func (*Afterburner) Slot() Slot   { return SlotTactical }

func (b *Afterburner) Activate(w *World, owner *Actor) {
	if w.clock < b.readyAt || !owner.Alive() {
		return
	}
	if !owner.DrainEnergy(AfterburnerCost) {
		return
	}
	b.readyAt = w.clock + AfterburnerCooldown
	owner.ApplyForce(FromAngle(owner.Heading, owner.Thrust*AfterburnerImpulse))
}

func (*Afterburner) Deactivate(*World, *Actor) {}
