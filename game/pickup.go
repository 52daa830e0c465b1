package game

// Payload is what a pickup grants the player who collects it.
type Payload interface {
	Name() string
	stats() Stats
	apply(w *World, collector *Actor)
}

// Parts are salvage counted towards the run.
type Parts struct {
	Count int
}

func (p Parts) Name() string { return "parts" }
func (Parts) stats() Stats   { return PartsStats }
func (p Parts) apply(w *World, _ *Actor) {
	w.run.Parts += p.Count
}

// ModuleCrate carries a module that is equipped on collection.
type ModuleCrate struct {
	Module Module
}

func (c ModuleCrate) Name() string { return "module:" + c.Module.Name() }
func (ModuleCrate) stats() Stats   { return ContainerStats }
func (c ModuleCrate) apply(w *World, collector *Actor) {
	collector.Equip(w, c.Module)
}

// EnergyCell refills the collector's energy.
type EnergyCell struct {
	Amount float64
}

func (EnergyCell) Name() string { return "energy" }
func (EnergyCell) stats() Stats { return PartsStats }
func (c EnergyCell) apply(_ *World, collector *Actor) {
	collector.AddEnergy(c.Amount)
}

type pickup struct {
	baseVariant
	payload Payload
}

func (*pickup) Kind() Kind { return KindPickup }

// PickupPayload returns what a grants, if a is a pickup
func PickupPayload(a *Actor) (Payload, bool) {
	p, ok := a.variant.(*pickup)
	if !ok {
		return nil, false
	}
	return p.payload, true
}

func (*pickup) contact(_, other *Actor) Contact {
	if other.Kind() == KindPlayer {
		return ContactCollect
	}
	return ContactIgnore
}

func (*pickup) onCollision(*World, *Actor, *Actor) {}

func (p *pickup) collect(w *World, self, collector *Actor) {
	if !self.Alive() {
		return
	}
	p.payload.apply(w, collector)
	self.Kill()
	if collector.Kind() == KindPlayer {
		w.record(collector)
	}
	w.emit(Event{Type: EventPickupCollected, Handle: self.handle, Entity: KindPickup, Position: self.Position, Detail: p.payload.Name()})
}
