// pkg/core/minion.go
package core

import "github.com/go-gl/mathgl/mgl32"

// MinionHandle identifies a minion entity in the entity store.
type MinionHandle uint64

// MinionSnapshot is the read-only transform copy taken at tick start.
type MinionSnapshot struct {
	Position mgl32.Vec3
	Forward  mgl32.Vec3
	// HitRadiusSq is the squared hit radius. Candidate tests compare squared
	// distances against it.
	HitRadiusSq float32
}

// FactionFlags carries per-minion friend/foe and role bits.
type FactionFlags uint8

const (
	// Friendly marks a minion fighting for the player's side.
	Friendly FactionFlags = 1 << iota
	// Ranged marks a minion that fires arrows.
	Ranged
)

// IsFriendly reports whether the Friendly bit is set.
func (f FactionFlags) IsFriendly() bool {
	return f&Friendly != 0
}

// IsRanged reports whether the Ranged bit is set.
func (f FactionFlags) IsRanged() bool {
	return f&Ranged != 0
}
