package game

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Config holds the parameters a World is built from.
type Config struct {
	Width  float64
	Height float64
	// Seed drives spawn placement, loot rolls and AI noise. Zero picks one
	// from the wall clock.
	Seed   int64
	Logger *slog.Logger
	Events EventSink
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Events == nil {
		c.Events = NopSink
	}
	return c
}

// RunStats accumulates the player's progress over one run.
type RunStats struct {
	Score     int
	Kills     int
	BestChain int
	Parts     int
	Wave      int
}

// pilotRecord is the last known state of the player, kept after removal.
type pilotRecord struct {
	hitPoints, maxHitPoints float64
	energy, maxEnergy       float64
	killChain               int
}

// World is the simulation context: the arena of live actors plus the
// clock, random source and detector they share. It is not safe for
// concurrent use; the Engine that owns it is driven from one goroutine.
type World struct {
	width, height float64

	actors  map[Handle]*Actor
	order   []*Actor
	pending []*Actor
	next    Handle
	seq     uint64
	ticking bool

	grid     *SpatialGrid
	detector *CollisionDetector

	clock float64
	tick  uint64
	rng   *rand.Rand

	events EventSink
	log    *slog.Logger

	player Handle
	last   pilotRecord
	run    RunStats
}

// NewWorld creates an empty arena
func NewWorld(cfg Config) *World {
	cfg = cfg.withDefaults()
	w := &World{
		width:  cfg.Width,
		height: cfg.Height,
		actors: make(map[Handle]*Actor),
		grid:   NewSpatialGrid(cfg.Width, cfg.Height),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		events: cfg.Events,
		log:    cfg.Logger,
	}
	w.detector = &CollisionDetector{w: w}
	return w
}

func (w *World) Width() float64               { return w.width }
func (w *World) Height() float64              { return w.height }
func (w *World) Clock() float64               { return w.clock }
func (w *World) TickCount() uint64            { return w.tick }
func (w *World) Detector() *CollisionDetector { return w.detector }
func (w *World) Stats() RunStats              { return w.run }

// SpawnOption customizes a Spawn call.
type SpawnOption func(*spawnOptions)

type spawnOptions struct {
	stats    *Stats
	owner    Handle
	velocity Vector2
	heading  float64
	ai       AI
	payload  Payload
	damage   float64
	modules  []Module
	bare     bool
}

// WithStats replaces the kind's default attribute template
func WithStats(s Stats) SpawnOption { return func(o *spawnOptions) { o.stats = &s } }

// WithOwner sets the actor that fired a projectile or projects a shield
func WithOwner(h Handle) SpawnOption { return func(o *spawnOptions) { o.owner = h } }

func WithVelocity(v Vector2) SpawnOption  { return func(o *spawnOptions) { o.velocity = v } }
func WithHeading(rad float64) SpawnOption { return func(o *spawnOptions) { o.heading = rad } }
func WithAI(ai AI) SpawnOption            { return func(o *spawnOptions) { o.ai = ai } }
func WithPayload(p Payload) SpawnOption   { return func(o *spawnOptions) { o.payload = p } }

// WithDamage sets a projectile's collision damage
func WithDamage(d float64) SpawnOption { return func(o *spawnOptions) { o.damage = d } }

// WithModules replaces the default loadout of a player or enemy
func WithModules(ms ...Module) SpawnOption {
	return func(o *spawnOptions) {
		o.modules = ms
		o.bare = len(ms) == 0
	}
}

// Spawn creates an actor of the given kind at pos and returns its handle.
// During a tick the actor is queued and joins the arena before the next
// update pass; otherwise it joins immediately.
func (w *World) Spawn(kind Kind, pos Vector2, opts ...SpawnOption) (Handle, error) {
	if !finite(pos.X) || !finite(pos.Y) {
		return 0, configErr("position", pos, ErrInvalidPosition)
	}
	var o spawnOptions
	for _, opt := range opts {
		opt(&o)
	}

	var (
		v     Variant
		stats Stats
	)
	switch kind {
	case KindPlayer:
		v, stats = &player{}, PlayerStats
	case KindEnemy:
		ai := o.ai
		if ai == nil {
			ai = w.randomAI()
		}
		v, stats = &enemy{ai: ai}, FrigateStats
	case KindProjectile:
		owner, ok := w.Lookup(o.owner)
		if !ok {
			return 0, configErr("owner", o.owner, ErrNeedsOwner)
		}
		v, stats = &projectile{owner: owner.handle, ownerKind: owner.Kind()}, BulletStats
		stats.CollisionDamage = o.damage
	case KindPickup:
		payload := o.payload
		if payload == nil {
			payload = Parts{Count: 1}
		}
		v, stats = &pickup{payload: payload}, payload.stats()
	case KindShieldZone:
		owner, ok := w.Lookup(o.owner)
		if !ok {
			return 0, configErr("owner", o.owner, ErrNeedsOwner)
		}
		v, stats = &shield{owner: owner.handle}, ShieldStats
	default:
		return 0, configErr("kind", kind, ErrInvalidKind)
	}
	if o.stats != nil {
		stats = *o.stats
	}

	a, err := newActor(v, stats, pos)
	if err != nil {
		return 0, err
	}
	a.Velocity = o.velocity
	a.Heading = o.heading
	if kind == KindShieldZone {
		a.Kinematic = true
	}
	w.insert(a)

	switch kind {
	case KindPlayer:
		w.player = a.handle
		w.equip(a, o, NewCannon(LightCannon), NewShieldGenerator(), NewAfterburner())
		w.record(a)
	case KindEnemy:
		w.equip(a, o, NewCannon(FrigateGun))
	}
	w.log.Debug("actor spawned", "handle", a.handle, "kind", kind, "x", pos.X, "y", pos.Y)
	return a.handle, nil
}

func (w *World) equip(a *Actor, o spawnOptions, defaults ...Module) {
	if o.bare {
		return
	}
	ms := defaults
	if o.modules != nil {
		ms = o.modules
	}
	for _, m := range ms {
		a.Equip(w, m)
	}
}

func (w *World) insert(a *Actor) {
	w.next++
	w.seq++
	a.handle = w.next
	a.seq = w.seq
	if w.ticking {
		w.pending = append(w.pending, a)
		return
	}
	w.activate(a)
}

func (w *World) activate(a *Actor) {
	w.actors[a.handle] = a
	w.order = append(w.order, a)
	w.grid.Insert(a)
}

// flush moves queued spawns into the arena.
func (w *World) flush() {
	for i, a := range w.pending {
		w.activate(a)
		w.pending[i] = nil
	}
	w.pending = w.pending[:0]
}

// checkBodies fails on the first actor whose mass or radius was changed
// to a value that would poison the step.
func (w *World) checkBodies() error {
	for _, list := range [][]*Actor{w.order, w.pending} {
		for _, a := range list {
			if err := checkBody(a.Mass, a.Radius); err != nil {
				return fmt.Errorf("actor %d (%s): %w", a.handle, a.Kind(), err)
			}
		}
	}
	return nil
}

// reap runs death hooks for every actor at or below zero hit points and
// then removes them all in one batch. Spawns made by hooks stay queued.
func (w *World) reap() []*Actor {
	var dead []*Actor
	for _, a := range w.order {
		if !a.Alive() {
			dead = append(dead, a)
		}
	}
	if len(dead) == 0 {
		return nil
	}
	for _, a := range dead {
		a.variant.onDeath(w, a)
	}
	for _, a := range dead {
		delete(w.actors, a.handle)
		w.grid.Remove(a)
	}
	kept := w.order[:0]
	for _, a := range w.order {
		if _, ok := w.actors[a.handle]; ok {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(w.order); i++ {
		w.order[i] = nil
	}
	w.order = kept
	return dead
}

// Lookup returns the active actor with handle h
func (w *World) Lookup(h Handle) (*Actor, bool) {
	a, ok := w.actors[h]
	return a, ok
}

// mustLookup is for handles the simulation itself holds. A miss means the
// arena and its index disagree, which is a programming error.
func (w *World) mustLookup(h Handle) *Actor {
	a, ok := w.actors[h]
	if !ok {
		panic(fmt.Sprintf("lifecycle invariant violated: handle %d not active", h))
	}
	return a
}

// Actors returns the active actors in insertion order
func (w *World) Actors() []*Actor {
	out := make([]*Actor, len(w.order))
	copy(out, w.order)
	return out
}

// Len is the number of active actors
func (w *World) Len() int { return len(w.order) }

// Pending is the number of spawns waiting to join the arena
func (w *World) Pending() int { return len(w.pending) }

// Player returns the active player actor, if any
func (w *World) Player() (*Actor, bool) {
	if w.player == 0 {
		return nil, false
	}
	return w.Lookup(w.player)
}

// PlayerHandle is the handle of the most recently spawned player
func (w *World) PlayerHandle() Handle { return w.player }

// EnemyCount counts active and queued enemies, dead or not
func (w *World) EnemyCount() int {
	n := 0
	for _, a := range w.order {
		if a.Kind() == KindEnemy {
			n++
		}
	}
	for _, a := range w.pending {
		if a.Kind() == KindEnemy {
			n++
		}
	}
	return n
}

// Control returns a command handle for the actor h
func (w *World) Control(h Handle) Controller {
	return Controller{w: w, h: h}
}

// RandomSpawnPoint picks a point at least margin away from every wall.
// Arenas too small for the margin fall back to the center.
func (w *World) RandomSpawnPoint(margin float64) Vector2 {
	return Vector2{
		X: w.randomCoord(w.width, margin),
		Y: w.randomCoord(w.height, margin),
	}
}

func (w *World) randomPoint(radius float64) Vector2 {
	return w.RandomSpawnPoint(radius)
}

func (w *World) randomCoord(extent, margin float64) float64 {
	span := extent - 2*margin
	if span <= 0 {
		return extent / 2
	}
	return margin + w.rng.Float64()*span
}

func (w *World) randomAI() AI {
	if w.rng.Intn(2) == 0 {
		return &Chaser{}
	}
	return NewDrifter(w.rng.Int63())
}

func (w *World) emit(e Event) {
	e.Tick = w.tick
	w.events.Emit(e)
}

// record stores the player's vitals so they survive its removal.
func (w *World) record(p *Actor) {
	w.last = pilotRecord{
		hitPoints:    p.HitPoints,
		maxHitPoints: p.MaxHitPoints,
		energy:       p.Energy,
		maxEnergy:    p.MaxEnergy,
		killChain:    p.KillChain,
	}
}
