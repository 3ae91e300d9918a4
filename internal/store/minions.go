package store

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volleyworks/volley/pkg/core"
)

// Minion is the mutable state of one minion.
type Minion struct {
	Snapshot core.MinionSnapshot
	Flags    core.FactionFlags
	Health   float32
}

// MinionSet is a tick-scoped copy of the live minions, parallel-indexed.
type MinionSet struct {
	Handles   []core.MinionHandle
	Snapshots []core.MinionSnapshot
	Flags     []core.FactionFlags
}

// Len returns the number of minions in the set.
func (s *MinionSet) Len() int {
	return len(s.Snapshots)
}

// Positions returns the minion positions in index order.
func (s *MinionSet) Positions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(s.Snapshots))
	for i, m := range s.Snapshots {
		out[i] = m.Position
	}
	return out
}

// Minions is the dense set of live minions.
type Minions struct {
	mu      sync.RWMutex
	next    core.MinionHandle
	handles []core.MinionHandle
	minions []Minion
	index   map[core.MinionHandle]int
}

func NewMinions() *Minions {
	return &Minions{index: make(map[core.MinionHandle]int)}
}

// Len returns the number of live minions.
func (s *Minions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.minions)
}

// Spawn adds a minion and returns its handle.
func (s *Minions) Spawn(m Minion) core.MinionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.index[h] = len(s.minions)
	s.handles = append(s.handles, h)
	s.minions = append(s.minions, m)
	return h
}

// Get returns a copy of one minion.
func (s *Minions) Get(h core.MinionHandle) (Minion, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[h]
	if !ok {
		return Minion{}, false
	}
	return s.minions[i], true
}

// Snapshot copies the live minions. The copy is safe to share read-only
// between goroutines.
func (s *Minions) Snapshot() *MinionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := &MinionSet{
		Handles:   append([]core.MinionHandle(nil), s.handles...),
		Snapshots: make([]core.MinionSnapshot, len(s.minions)),
		Flags:     make([]core.FactionFlags, len(s.minions)),
	}
	for i, m := range s.minions {
		set.Snapshots[i] = m.Snapshot
		set.Flags[i] = m.Flags
	}
	return set
}

// Mutate gives fn exclusive access to the live minions. fn may change
// minion state in place but must not retain the slices.
func (s *Minions) Mutate(fn func(handles []core.MinionHandle, minions []Minion)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.handles, s.minions)
}

// ApplyDamage subtracts damage from a minion's health and returns what is
// left. ok is false if the minion is not live.
func (s *Minions) ApplyDamage(h core.MinionHandle, damage float32) (remaining float32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[h]
	if !ok {
		return 0, false
	}
	s.minions[i].Health -= damage
	return s.minions[i].Health, true
}

// Dead returns the handles of minions with no health left.
func (s *Minions) Dead() []core.MinionHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.MinionHandle
	for i, m := range s.minions {
		if m.Health <= 0 {
			out = append(out, s.handles[i])
		}
	}
	return out
}

// Destroy removes a minion. It reports false if the handle is not live.
func (s *Minions) Destroy(h core.MinionHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[h]
	if !ok {
		return false
	}

	last := len(s.minions) - 1
	if i != last {
		s.minions[i] = s.minions[last]
		s.handles[i] = s.handles[last]
		s.index[s.handles[i]] = i
	}
	s.minions = s.minions[:last]
	s.handles = s.handles[:last]
	delete(s.index, h)
	return true
}
