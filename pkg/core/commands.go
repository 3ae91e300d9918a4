// pkg/core/commands.go
package core

import "github.com/go-gl/mathgl/mgl32"

// CellKey is the integer hash of a quantized position. Distinct cells may
// share a key; that only adds candidate checks.
type CellKey int32

// AttackCommand requests damage on a minion. It is applied exactly once by
// the combat resolver after the tick's synchronization point.
type AttackCommand struct {
	Attacker ProjectileHandle
	Target   MinionHandle
	Damage   float32
}

// LifecycleReason says why a projectile was deactivated.
type LifecycleReason uint8

const (
	RangeExpired LifecycleReason = iota + 1
	HitTarget
	HitGround
)

func (r LifecycleReason) String() string {
	switch r {
	case RangeExpired:
		return "range_expired"
	case HitTarget:
		return "hit_target"
	case HitGround:
		return "hit_ground"
	default:
		return "unknown"
	}
}

// LifecycleRequest asks the lifecycle manager to destroy a projectile.
// Position is the last in-world position before deactivation.
type LifecycleRequest struct {
	Handle   ProjectileHandle
	Reason   LifecycleReason
	Position mgl32.Vec3
}

// GroundProbeResult is the terrain hit below a projectile's post-move
// position, indexed identically to the projectile slice.
type GroundProbeResult struct {
	ImpactHeight float32
	Hit          bool
}
