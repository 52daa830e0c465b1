package game

// Units are pixels and seconds.

const (
	DefaultWidth  = 800.0
	DefaultHeight = 600.0

	// VelocityEpsilon snaps slower speeds to rest.
	VelocityEpsilon = 0.001
	// StuckThreshold is the number of consecutive out-of-bounds ticks tolerated
	// before an actor is teleported back in bounds.
	StuckThreshold = 2

	SpawnMargin = 100.0 // enemies spawn at least this far from the walls

	ShieldEnergyDrain   = 0.2 // per tick while a shield zone is up
	ShieldRearmDelay    = 0.4 // seconds between shield toggles
	AfterburnerImpulse  = 6.0 // multiples of thrust applied for one tick
	AfterburnerCost     = 25.0
	AfterburnerCooldown = 3.0

	LootChance     = 0.35 // chance an enemy drops parts
	ModuleDropRate = 0.08 // chance an enemy drops a module container
	ScorePerKill   = 1
)

// Stats is the attribute template an actor is spawned with.
type Stats struct {
	Mass            float64
	Radius          float64
	Friction        float64
	Restitution     float64
	Thrust          float64
	MaxHitPoints    float64
	MaxEnergy       float64
	EnergyRegen     float64 // per tick
	CollisionDamage float64
}

var (
	PlayerStats = Stats{
		Mass: 10, Radius: 20, Friction: 8, Restitution: 0.8, Thrust: 2400,
		MaxHitPoints: 100, MaxEnergy: 100, EnergyRegen: 0.1, CollisionDamage: 5,
	}
	FrigateStats = Stats{
		Mass: 30, Radius: 15, Friction: 30, Restitution: 0.6, Thrust: 4500,
		MaxHitPoints: 10, MaxEnergy: 50, EnergyRegen: 0.1, CollisionDamage: 2,
	}
	BulletStats = Stats{
		Mass: 2, Radius: 4, Friction: 0, Restitution: 1,
		MaxHitPoints: 1,
	}
	PartsStats = Stats{
		Mass: 1, Radius: 5, Friction: 2, Restitution: 1,
		MaxHitPoints: 1,
	}
	ContainerStats = Stats{
		Mass: 1, Radius: 20, Friction: 2, Restitution: 1,
		MaxHitPoints: 1,
	}
	ShieldStats = Stats{
		Mass: 1, Radius: 80, Restitution: 0,
		MaxHitPoints: 40, CollisionDamage: 40,
	}
)

// CannonSpec describes a projectile weapon.
type CannonSpec struct {
	Name           string
	Damage         float64
	LaunchVelocity float64
	Cooldown       float64 // seconds
	EnergyCost     float64
}

var (
	LightCannon = CannonSpec{Name: "Light Cannon", Damage: 1, LaunchVelocity: 600, Cooldown: 0.25, EnergyCost: 2}
	HeavyCannon = CannonSpec{Name: "Heavy Cannon", Damage: 4, LaunchVelocity: 420, Cooldown: 0.8, EnergyCost: 8}
	FrigateGun  = CannonSpec{Name: "Frigate Gun", Damage: 5, LaunchVelocity: 360, Cooldown: 2.0}
)
