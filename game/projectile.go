package game

// projectile flies in a straight line and dies on the first thing it hits.
type projectile struct {
	baseVariant
	owner     Handle
	ownerKind Kind
}

func (*projectile) Kind() Kind { return KindProjectile }

// Owner is the handle of the actor that fired the projectile
func (p *projectile) Owner() Handle { return p.owner }

func (p *projectile) contact(_, other *Actor) Contact {
	if other.handle == p.owner {
		return ContactIgnore
	}
	switch other.Kind() {
	case KindProjectile, KindPickup:
		return ContactIgnore
	}
	return ContactImpact
}

func (*projectile) onWall(_ *World, self *Actor) bool {
	self.Kill()
	return true
}

// ProjectileOwner reports who fired a, if a is a projectile
func ProjectileOwner(a *Actor) (Handle, bool) {
	p, ok := a.variant.(*projectile)
	if !ok {
		return 0, false
	}
	return p.owner, true
}
