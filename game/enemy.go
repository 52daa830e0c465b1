package game

import "math"

// enemy is an AI-driven frigate.
type enemy struct {
	baseVariant
	ai AI
}

func (*enemy) Kind() Kind { return KindEnemy }

func (e *enemy) act(w *World, self *Actor, dt float64) {
	if e.ai == nil || !self.Alive() {
		return
	}
	e.ai.Think(w, self, w.Control(self.handle), dt)
}

func (*enemy) contact(self, other *Actor) Contact {
	switch other.Kind() {
	case KindEnemy:
		return ContactBounce
	case KindPickup:
		return ContactIgnore
	case KindProjectile:
		p := other.variant.(*projectile)
		if p.owner == self.handle || p.ownerKind == KindEnemy {
			return ContactIgnore
		}
	}
	return ContactImpact
}

func (*enemy) onDeath(w *World, self *Actor) {
	w.run.Score += ScorePerKill
	w.run.Kills++
	if p, ok := w.Player(); ok && p.Alive() {
		p.KillChain++
		if p.KillChain > w.run.BestChain {
			w.run.BestChain = p.KillChain
		}
		w.record(p)
	}
	w.emit(Event{Type: EventExplosion, Handle: self.handle, Entity: KindEnemy, Position: self.Position})
	w.emit(Event{Type: EventEnemyDestroyed, Handle: self.handle, Entity: KindEnemy, Position: self.Position, Score: w.run.Score})
	w.dropLoot(self.Position)
}

func (w *World) dropLoot(at Vector2) {
	if w.rng.Float64() < LootChance {
		drift := FromAngle(w.rng.Float64()*2*math.Pi, 20)
		if _, err := w.Spawn(KindPickup, at, WithPayload(Parts{Count: 1 + w.rng.Intn(3)}), WithVelocity(drift)); err != nil {
			w.log.Error("failed to drop parts", "error", err)
		}
	}
	if w.rng.Float64() < ModuleDropRate {
		if _, err := w.Spawn(KindPickup, at, WithPayload(ModuleCrate{Module: NewCannon(HeavyCannon)})); err != nil {
			w.log.Error("failed to drop module", "error", err)
		}
	}
}
