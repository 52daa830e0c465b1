package game

// shield is a kinematic zone centered on its owner that soaks up hostile fire.
type shield struct {
	baseVariant
	owner Handle
}

func (*shield) Kind() Kind { return KindShieldZone }

// Owner is the handle of the actor projecting the shield
func (s *shield) Owner() Handle { return s.owner }

func (s *shield) act(w *World, self *Actor, _ float64) {
	if !self.Alive() {
		return
	}
	owner, ok := w.Lookup(s.owner)
	if !ok || !owner.Alive() || owner.Energy <= 0 {
		self.Kill()
		return
	}
	self.Position = owner.Position
	self.Velocity = owner.Velocity
	w.grid.Move(self)
	owner.BleedEnergy(ShieldEnergyDrain)
	if owner.Energy <= 0 {
		self.Kill()
	}
}

func (s *shield) contact(_, other *Actor) Contact {
	p, ok := other.variant.(*projectile)
	if !ok || p.owner == s.owner {
		return ContactIgnore
	}
	return ContactAbsorb
}

func (*shield) onCollision(_ *World, self, other *Actor) {
	if other.Kind() == KindProjectile {
		self.Damage(other.CollisionDamage)
	}
}
