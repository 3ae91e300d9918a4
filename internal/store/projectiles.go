// Package store owns the live projectile and minion sets. Systems read
// copies taken at tick start; structural changes (spawn, destroy, damage)
// happen only between ticks.
package store

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volleyworks/volley/pkg/core"
)

// ErrStaleBatch is returned when a checked-out batch is checked back in after
// the projectile set changed structurally.
var ErrStaleBatch = errors.New("projectile batch is stale")

// SpawnRequest describes a projectile to create at the next safe point.
type SpawnRequest struct {
	Position   mgl32.Vec3
	Velocity   mgl32.Vec3
	Damage     float32
	IsFriendly bool
}

// Batch is a tick-scoped copy of every live projectile. Handles[i] owns
// Data[i].
type Batch struct {
	Handles []core.ProjectileHandle
	Data    []core.Projectile
	version uint64
}

// Len returns the number of projectiles in the batch.
func (b *Batch) Len() int {
	return len(b.Data)
}

// Projectiles is the dense set of live projectiles.
type Projectiles struct {
	mu      sync.Mutex
	next    core.ProjectileHandle
	version uint64
	handles []core.ProjectileHandle
	data    []core.Projectile
	index   map[core.ProjectileHandle]int
}

func NewProjectiles() *Projectiles {
	return &Projectiles{index: make(map[core.ProjectileHandle]int)}
}

// Len returns the number of live projectiles.
func (p *Projectiles) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data)
}

// Spawn creates active projectiles and returns their handles.
func (p *Projectiles) Spawn(reqs ...SpawnRequest) []core.ProjectileHandle {
	if len(reqs) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]core.ProjectileHandle, 0, len(reqs))
	for _, r := range reqs {
		p.next++
		h := p.next
		p.index[h] = len(p.data)
		p.handles = append(p.handles, h)
		p.data = append(p.data, core.Projectile{
			Position:   r.Position,
			Velocity:   r.Velocity,
			Damage:     r.Damage,
			IsFriendly: r.IsFriendly,
			Active:     true,
		})
		out = append(out, h)
	}
	p.version++
	return out
}

// Get returns a copy of one projectile.
func (p *Projectiles) Get(h core.ProjectileHandle) (core.Projectile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[h]
	if !ok {
		return core.Projectile{}, false
	}
	return p.data[i], true
}

// Checkout copies every live projectile into a fresh batch.
func (p *Projectiles) Checkout() *Batch {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Batch{
		Handles: append([]core.ProjectileHandle(nil), p.handles...),
		Data:    append([]core.Projectile(nil), p.data...),
		version: p.version,
	}
}

// Checkin writes a batch's projectile data back over the live set.
func (p *Projectiles) Checkin(b *Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.version != p.version || len(b.Data) != len(p.data) {
		return ErrStaleBatch
	}
	copy(p.data, b.Data)
	return nil
}

// Destroy removes a projectile. It reports false if the handle is not live.
func (p *Projectiles) Destroy(h core.ProjectileHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[h]
	if !ok {
		return false
	}

	last := len(p.data) - 1
	if i != last {
		p.data[i] = p.data[last]
		p.handles[i] = p.handles[last]
		p.index[p.handles[i]] = i
	}
	p.data = p.data[:last]
	p.handles = p.handles[:last]
	delete(p.index, h)
	p.version++
	return true
}
