// Package lifecycle performs the structural changes deferred by a tick:
// destroying stopped arrows, spawning fired ones and removing dead minions.
package lifecycle

import (
	"log/slog"

	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

// Report summarizes one Apply.
type Report struct {
	Destroyed int
	// Duplicates counts requests for arrows that were already destroyed.
	Duplicates    int
	Spawned       []core.ProjectileHandle
	MinionsKilled []core.MinionHandle
}

// Manager owns entity creation and destruction.
type Manager struct {
	projectiles *store.Projectiles
	minions     *store.Minions
	logger      *slog.Logger
}

func NewManager(projectiles *store.Projectiles, minions *store.Minions, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{projectiles: projectiles, minions: minions, logger: logger}
}

// Apply destroys every requested arrow once, removes minions without health
// and then spawns the queued arrows.
func (m *Manager) Apply(reqs []core.LifecycleRequest, spawns []store.SpawnRequest) Report {
	var r Report
	for _, req := range reqs {
		if m.projectiles.Destroy(req.Handle) {
			r.Destroyed++
		} else {
			r.Duplicates++
		}
	}

	for _, h := range m.minions.Dead() {
		if m.minions.Destroy(h) {
			r.MinionsKilled = append(r.MinionsKilled, h)
		}
	}

	r.Spawned = m.projectiles.Spawn(spawns...)

	if r.Duplicates > 0 {
		m.logger.Warn("duplicate lifecycle requests", "count", r.Duplicates)
	}
	return r
}
