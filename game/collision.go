package game

import (
	"fmt"
	"sort"
)

// Wall is a bit set of arena edges.
type Wall uint8

const (
	WallEast Wall = 1 << iota
	WallSouth
	WallWest
	WallNorth
)

// wallOrder is the order crossed walls are resolved in.
var wallOrder = [...]Wall{WallEast, WallSouth, WallWest, WallNorth}

func (w Wall) Has(o Wall) bool { return w&o != 0 }

func (w Wall) String() string {
	if w == 0 {
		return "none"
	}
	s := ""
	for _, wall := range wallOrder {
		if !w.Has(wall) {
			continue
		}
		if s != "" {
			s += "|"
		}
		switch wall {
		case WallEast:
			s += "east"
		case WallSouth:
			s += "south"
		case WallWest:
			s += "west"
		case WallNorth:
			s += "north"
		}
	}
	return s
}

// CollisionDetector answers overlap queries against one World's arena.
// It never mutates actors.
type CollisionDetector struct {
	w   *World
	buf []*Actor
}

// DetectWallCollision reports which edges the hit box strictly crosses
func (d *CollisionDetector) DetectWallCollision(a *Actor) Wall {
	var walls Wall
	if a.Position.X+a.Radius > d.w.width {
		walls |= WallEast
	}
	if a.Position.Y+a.Radius > d.w.height {
		walls |= WallSouth
	}
	if a.Position.X-a.Radius < 0 {
		walls |= WallWest
	}
	if a.Position.Y-a.Radius < 0 {
		walls |= WallNorth
	}
	return walls
}

// DetectActorCollision returns the live actors overlapping a, in insertion order.
// The returned slice is reused by the next call.
func (d *CollisionDetector) DetectActorCollision(a *Actor) []*Actor {
	candidates := d.w.grid.QueryBuf(a.Position.X, a.Position.Y, a.Radius, d.buf[:0])
	hits := candidates[:0]
	for _, b := range candidates {
		if b == a || !b.Alive() {
			continue
		}
		if d.w.mustLookup(b.handle) != b {
			panic(fmt.Sprintf("lifecycle invariant violated: actor %d (%s) indexed twice", b.handle, b.Kind()))
		}
		if a.Position.Distance(b.Position) < a.Radius+b.Radius {
			hits = append(hits, b)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	d.buf = hits
	return hits
}

// Overlaps is the narrow-phase circle test
func Overlaps(a, b *Actor) bool {
	return a.Position.Distance(b.Position) < a.Radius+b.Radius
}

// contactBetween asks both sides and keeps the more restrictive answer.
func contactBetween(a, b *Actor) Contact {
	ca := a.variant.contact(a, b)
	cb := b.variant.contact(b, a)
	if cb > ca {
		return cb
	}
	return ca
}

// ElasticCollision exchanges momentum between a and b along each axis.
// Both bodies are rolled back by one step, given their post-collision
// velocities and advanced again. Bodies already moving apart are left alone
// and false is returned.
func ElasticCollision(a, b *Actor, dt float64) bool {
	if a.Position.Sub(b.Position).Dot(a.Velocity.Sub(b.Velocity)) >= 0 {
		return false
	}
	a.Position.SubInPlace(a.Velocity.Scale(dt))
	b.Position.SubInPlace(b.Velocity.Scale(dt))

	total := a.Mass + b.Mass
	va, vb := a.Velocity, b.Velocity
	a.Velocity = Vector2{
		X: ((a.Mass-b.Mass)*va.X + 2*b.Mass*vb.X) / total,
		Y: ((a.Mass-b.Mass)*va.Y + 2*b.Mass*vb.Y) / total,
	}
	b.Velocity = Vector2{
		X: ((b.Mass-a.Mass)*vb.X + 2*a.Mass*va.X) / total,
		Y: ((b.Mass-a.Mass)*vb.Y + 2*a.Mass*va.Y) / total,
	}

	a.Position.AddInPlace(a.Velocity.Scale(dt))
	b.Position.AddInPlace(b.Velocity.Scale(dt))
	return true
}

// resolveWalls applies the wall response for a after it moved.
func (w *World) resolveWalls(a *Actor, dt float64) {
	walls := w.detector.DetectWallCollision(a)
	if walls == 0 {
		a.OutOfBoundsStreak = 0
		return
	}
	a.OutOfBoundsStreak++
	if a.OutOfBoundsStreak > StuckThreshold {
		w.recoverStuck(a)
		return
	}
	if a.variant.onWall(w, a) {
		return
	}
	for _, wall := range wallOrder {
		if !walls.Has(wall) || !movingInto(a.Velocity, wall) {
			continue
		}
		a.Position.SubInPlace(a.Velocity.Scale(dt))
		if wall == WallEast || wall == WallWest {
			a.Velocity.X = -a.Velocity.X * a.Restitution
		} else {
			a.Velocity.Y = -a.Velocity.Y * a.Restitution
		}
		a.Position.AddInPlace(a.Velocity.Scale(dt))
	}
	w.grid.Move(a)
}

func movingInto(v Vector2, wall Wall) bool {
	switch wall {
	case WallEast:
		return v.X > 0
	case WallWest:
		return v.X < 0
	case WallSouth:
		return v.Y > 0
	case WallNorth:
		return v.Y < 0
	}
	return false
}

func (w *World) recoverStuck(a *Actor) {
	from := a.Position
	a.Position = w.randomPoint(a.Radius)
	a.Velocity = Vector2{}
	a.OutOfBoundsStreak = 0
	w.grid.Move(a)
	w.log.Info("actor recovered from out of bounds",
		"handle", a.handle, "kind", a.Kind(), "from_x", from.X, "from_y", from.Y)
	w.emit(Event{Type: EventStuckRecovered, Handle: a.handle, Entity: a.Kind(), Position: a.Position})
}

// resolveActors applies the first non-ignored contact a has after moving.
func (w *World) resolveActors(a *Actor, dt float64) {
	if !a.Alive() {
		return
	}
	for _, b := range w.detector.DetectActorCollision(a) {
		c := contactBetween(a, b)
		if c == ContactIgnore {
			continue
		}
		w.resolvePair(a, b, c, dt)
		return
	}
}

func (w *World) resolvePair(a, b *Actor, c Contact, dt float64) {
	switch c {
	case ContactImpact, ContactBounce:
		if !ElasticCollision(a, b, dt) {
			return
		}
		w.grid.Move(a)
		w.grid.Move(b)
		if c == ContactImpact {
			a.variant.onCollision(w, a, b)
			b.variant.onCollision(w, b, a)
		}
	case ContactAbsorb:
		a.variant.onCollision(w, a, b)
		b.variant.onCollision(w, b, a)
	case ContactCollect:
		if p, ok := a.variant.(*pickup); ok {
			p.collect(w, a, b)
		} else if p, ok := b.variant.(*pickup); ok {
			p.collect(w, b, a)
		}
	}
}
