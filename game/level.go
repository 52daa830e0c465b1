package game

// Wave is one scripted group of enemies.
type Wave struct {
	Chasers  int
	Drifters int
	// Crates are dropped at random points when the wave starts.
	Crates []Payload
	// Delay is the quiet time before the wave, in seconds.
	Delay float64
}

// Skirmish is the default level: a short scripted opening followed by
// waves that grow by Growth enemies each round.
type Skirmish struct {
	Waves  []Wave
	Growth int

	next      int
	readyAt   float64
	scheduled bool
}

// NewSkirmish returns the stock wave script
func NewSkirmish() *Skirmish {
	return &Skirmish{
		Waves: []Wave{
			{Chasers: 1, Delay: 1},
			{Chasers: 2, Drifters: 1, Delay: 2},
			{Chasers: 2, Drifters: 2, Delay: 3, Crates: []Payload{EnergyCell{Amount: 50}}},
			{Chasers: 4, Drifters: 2, Delay: 3, Crates: []Payload{ModuleCrate{Module: NewCannon(HeavyCannon)}}},
		},
		Growth: 1,
	}
}

// Setup places the player in the middle of the arena with a spare crate nearby
func (s *Skirmish) Setup(w *World) error {
	center := Vec(w.Width()/2, w.Height()/2)
	if _, err := w.Spawn(KindPlayer, center); err != nil {
		return err
	}
	if _, err := w.Spawn(KindPickup, center.Add(Vec(0, 120)), WithPayload(EnergyCell{Amount: 30})); err != nil {
		return err
	}
	return nil
}

// WaveAt returns the wave numbered n, counting from zero
func (s *Skirmish) WaveAt(n int) Wave {
	if n < len(s.Waves) {
		return s.Waves[n]
	}
	if len(s.Waves) == 0 {
		return Wave{Chasers: 1 + n*s.Growth, Delay: 2}
	}
	last := s.Waves[len(s.Waves)-1]
	extra := (n - len(s.Waves) + 1) * s.Growth
	return Wave{
		Chasers:  last.Chasers + extra - extra/2,
		Drifters: last.Drifters + extra/2,
		Delay:    last.Delay,
	}
}

func (s *Skirmish) NextWave(w *World) {
	wave := s.WaveAt(s.next)
	if !s.scheduled {
		s.readyAt = w.Clock() + wave.Delay
		s.scheduled = true
	}
	if w.Clock() < s.readyAt {
		return
	}
	s.scheduled = false
	s.next++
	w.run.Wave = s.next

	SpawnAround(w, KindEnemy, wave.Chasers, WithAI(&Chaser{}))
	for i := 0; i < wave.Drifters; i++ {
		SpawnAround(w, KindEnemy, 1, WithAI(NewDrifter(w.rng.Int63())))
	}
	for _, c := range wave.Crates {
		SpawnAround(w, KindPickup, 1, WithPayload(c))
	}
	w.log.Info("wave started", "wave", s.next, "chasers", wave.Chasers, "drifters", wave.Drifters)
	w.emit(Event{Type: EventWaveStarted, Wave: s.next, Score: w.run.Score})
}

// clearance keeps spawns from landing on top of the player.
const clearance = 150.0

// SpawnAround places n actors of kind at random points away from the walls
// and the player, returning the handles created.
func SpawnAround(w *World, kind Kind, n int, opts ...SpawnOption) []Handle {
	var out []Handle
	for i := 0; i < n; i++ {
		pos := w.RandomSpawnPoint(SpawnMargin)
		if p, ok := w.Player(); ok {
			for try := 0; try < 8 && pos.Distance(p.Position) < clearance; try++ {
				pos = w.RandomSpawnPoint(SpawnMargin)
			}
		}
		h, err := w.Spawn(kind, pos, opts...)
		if err != nil {
			w.log.Error("spawn failed", "kind", kind, "error", err)
			continue
		}
		out = append(out, h)
	}
	return out
}
