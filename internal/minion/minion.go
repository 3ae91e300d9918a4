// Package minion moves minions and rebuilds the spatial index the arrow
// pipeline queries. It runs once per tick, before any arrow work.
package minion

import (
	"log/slog"

	"github.com/volleyworks/volley/internal/jobs"
	"github.com/volleyworks/volley/internal/spatial"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

// Settings configure minion drift and the spatial index.
type Settings struct {
	CellSize float32
	// Speed is the forward drift speed; zero keeps minions in place.
	Speed float32
	// HalfExtent bounds drift to |x|,|z| <= HalfExtent by reflecting the
	// forward vector. Zero disables the bound.
	HalfExtent float32
	BatchSize  int
	Workers    int
}

// System owns the minion spatial index.
type System struct {
	settings Settings
	minions  *store.Minions
	buckets  *spatial.Buckets
	logger   *slog.Logger
}

func New(settings Settings, minions *store.Minions, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		settings: settings,
		minions:  minions,
		buckets:  spatial.NewBuckets(settings.CellSize),
		logger:   logger,
	}
}

// Index returns the spatial index rebuilt by the last Update.
func (s *System) Index() spatial.Index {
	return s.buckets
}

// Update drifts the minions by dt, takes this tick's snapshot and rebuilds
// the index from it. Indices in the index refer to the returned snapshot.
func (s *System) Update(dt float32) *store.MinionSet {
	if s.settings.Speed != 0 && dt > 0 {
		s.minions.Mutate(func(_ []core.MinionHandle, ms []store.Minion) {
			jobs.ParallelRange(ms, s.settings.BatchSize, s.settings.Workers, func(_ int, chunk []store.Minion) {
				for i := range chunk {
					s.drift(&chunk[i].Snapshot, dt)
				}
			})
		})
	}

	set := s.minions.Snapshot()
	s.buckets.Rebuild(set.Positions())
	s.logger.Debug("minion index rebuilt", "minions", set.Len(), "occupied", s.buckets.Len())
	return set
}

func (s *System) drift(m *core.MinionSnapshot, dt float32) {
	m.Position = m.Position.Add(m.Forward.Mul(s.settings.Speed * dt))

	ext := s.settings.HalfExtent
	if ext <= 0 {
		return
	}
	if (m.Position[0] > ext && m.Forward[0] > 0) || (m.Position[0] < -ext && m.Forward[0] < 0) {
		m.Forward[0] = -m.Forward[0]
	}
	if (m.Position[2] > ext && m.Forward[2] > 0) || (m.Position[2] < -ext && m.Forward[2] < 0) {
		m.Forward[2] = -m.Forward[2]
	}
}
