package game

// RenderEntity is the read-only view of one actor handed to renderers.
type RenderEntity struct {
	Handle       Handle
	Kind         Kind
	Position     Vector2
	Velocity     Vector2
	Heading      float64
	Radius       float64
	HitPoints    float64
	MaxHitPoints float64
	Owner        Handle
	Payload      string // pickups only
}

// Status is the HUD view of the run.
type Status struct {
	State        State
	Tick         uint64
	Clock        float64
	Score        int
	Kills        int
	KillChain    int
	BestChain    int
	Parts        int
	Wave         int
	HitPoints    float64
	MaxHitPoints float64
	Energy       float64
	MaxEnergy    float64
	Weapon       string
	ShieldUp     bool
	Entities     int
}

// Snapshot lists the active actors in insertion order
func (w *World) Snapshot() []RenderEntity {
	return w.AppendSnapshot(make([]RenderEntity, 0, len(w.order)))
}

// AppendSnapshot appends the active actors to buf
func (w *World) AppendSnapshot(buf []RenderEntity) []RenderEntity {
	for _, a := range w.order {
		re := RenderEntity{
			Handle:       a.handle,
			Kind:         a.Kind(),
			Position:     a.Position,
			Velocity:     a.Velocity,
			Heading:      a.Heading,
			Radius:       a.Radius,
			HitPoints:    a.HitPoints,
			MaxHitPoints: a.MaxHitPoints,
		}
		switch v := a.variant.(type) {
		case *projectile:
			re.Owner = v.owner
		case *shield:
			re.Owner = v.owner
		}
		if p, ok := PickupPayload(a); ok {
			re.Payload = p.Name()
		}
		buf = append(buf, re)
	}
	return buf
}

// Snapshot is the render view of the current world
func (e *Engine) Snapshot() []RenderEntity { return e.world.Snapshot() }

// Status reports the HUD values. After the player is removed the last
// recorded vitals are returned.
func (e *Engine) Status() Status {
	w := e.world
	st := Status{
		State:        e.state,
		Tick:         w.tick,
		Clock:        w.clock,
		Score:        w.run.Score,
		Kills:        w.run.Kills,
		BestChain:    w.run.BestChain,
		Parts:        w.run.Parts,
		Wave:         w.run.Wave,
		HitPoints:    w.last.hitPoints,
		MaxHitPoints: w.last.maxHitPoints,
		Energy:       w.last.energy,
		MaxEnergy:    w.last.maxEnergy,
		KillChain:    w.last.killChain,
		Entities:     len(w.order),
	}
	if p, ok := w.Player(); ok {
		st.HitPoints, st.MaxHitPoints = p.HitPoints, p.MaxHitPoints
		st.Energy, st.MaxEnergy = p.Energy, p.MaxEnergy
		st.KillChain = p.KillChain
		if p.offensive != nil {
			st.Weapon = p.offensive.Name()
		}
		if g, ok := p.defensive.(*ShieldGenerator); ok {
			st.ShieldUp = g.Up(w)
		}
	}
	return st
}
