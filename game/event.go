package game

// EventType names something observable that happened during a tick.
type EventType uint8

const (
	EventExplosion EventType = iota + 1
	EventPlayerDied
	EventEnemyDestroyed
	EventWaveStarted
	EventStuckRecovered
	EventPickupCollected
	EventModuleFired
	EventShieldRaised
	EventStateChanged
)

func (t EventType) String() string {
	switch t {
	case EventExplosion:
		return "explosion"
	case EventPlayerDied:
		return "player_died"
	case EventEnemyDestroyed:
		return "enemy_destroyed"
	case EventWaveStarted:
		return "wave_started"
	case EventStuckRecovered:
		return "stuck_recovered"
	case EventPickupCollected:
		return "pickup_collected"
	case EventModuleFired:
		return "module_fired"
	case EventShieldRaised:
		return "shield_raised"
	case EventStateChanged:
		return "state_changed"
	}
	return "unknown"
}

// Event is emitted to the world's sink. Fields unused by a type are zero.
type Event struct {
	Type     EventType
	Tick     uint64
	Handle   Handle
	Entity   Kind
	Position Vector2
	Score    int
	Wave     int
	State    State
	Detail   string
}

// EventSink receives events synchronously from the simulation goroutine.
type EventSink interface {
	Emit(Event)
}

// EventFunc adapts a plain function to an EventSink
type EventFunc func(Event)

func (f EventFunc) Emit(e Event) { f(e) }

type nopSink struct{}

func (nopSink) Emit(Event) {}

// NopSink discards every event
var NopSink EventSink = nopSink{}

// Recorder keeps every event it sees. Useful for replays and tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Count returns how many recorded events have type t
func (r *Recorder) Count(t EventType) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}
