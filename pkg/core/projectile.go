// pkg/core/projectile.go
package core

import "github.com/go-gl/mathgl/mgl32"

// SentinelPosition is the off-world coordinate an inactive projectile is parked at.
var SentinelPosition = mgl32.Vec3{-1000000, -1000000, -1000000}

// ProjectileHandle identifies a projectile entity in the entity store.
// It is correlated 1:1 by array index with the Projectile slice of one tick.
type ProjectileHandle uint64

// Projectile is the per-tick simulation state of an arrow.
// Y is the height axis.
type Projectile struct {
	Position       mgl32.Vec3
	Velocity       mgl32.Vec3
	TraveledDistSq float32 // sum of squared per-tick displacements
	Active         bool
	Damage         float32
	IsFriendly     bool
}

// Deactivate marks the projectile inactive and parks it at SentinelPosition.
// It returns the last in-world position.
func (p *Projectile) Deactivate() mgl32.Vec3 {
	last := p.Position
	p.Active = false
	p.Position = SentinelPosition
	return last
}
