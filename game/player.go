package game

// player is the variant steered by the human pilot through Controls.
type player struct {
	baseVariant
}

func (*player) Kind() Kind { return KindPlayer }

func (*player) act(w *World, self *Actor, _ float64) {
	w.record(self)
}

func (*player) onCollision(w *World, self, other *Actor) {
	self.takeHit(other)
	w.record(self)
}

func (*player) onDeath(w *World, self *Actor) {
	w.record(self)
	w.log.Info("player destroyed",
		"handle", self.handle, "score", w.run.Score, "wave", w.run.Wave, "killer", self.LastHitBy)
	w.emit(Event{Type: EventExplosion, Handle: self.handle, Entity: KindPlayer, Position: self.Position})
	w.emit(Event{Type: EventPlayerDied, Handle: self.handle, Entity: KindPlayer, Position: self.Position, Score: w.run.Score, Wave: w.run.Wave})
}
