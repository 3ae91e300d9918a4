// Package sim steps the world: minions, archers, arrows and the handoff of
// their commands to combat, lifecycle and recording.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/volleyworks/volley/internal/archer"
	"github.com/volleyworks/volley/internal/arrow"
	"github.com/volleyworks/volley/internal/combat"
	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/dispatcher"
	"github.com/volleyworks/volley/internal/jobs"
	"github.com/volleyworks/volley/internal/lifecycle"
	"github.com/volleyworks/volley/internal/logging"
	"github.com/volleyworks/volley/internal/minion"
	"github.com/volleyworks/volley/internal/storage"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/internal/terrain"
	"github.com/volleyworks/volley/internal/worker"
	"github.com/volleyworks/volley/pkg/core"
)

// Config holds the settings of every system in the world.
type Config struct {
	Sim    config.SimConfig
	Archer config.ArcherConfig
}

// Dependencies holds what the world hands its results to.
type Dependencies struct {
	Terrain terrain.Raycaster
	// Backend and Metrics are optional.
	Backend storage.Backend
	Metrics worker.TickWriter
	Session string
	Logger  *slog.Logger
}

// World owns the entity stores and runs one tick at a time. Step and Run
// must not be called concurrently; the read accessors may.
type World struct {
	cfg    Config
	logger *slog.Logger

	minions     *store.Minions
	projectiles *store.Projectiles

	minionSys *minion.System
	archers   *archer.System
	arrows    *arrow.System

	dispatcher *dispatcher.Dispatcher
	worker     *worker.Manager

	tick  atomic.Uint64
	fence *jobs.Handle
}

// NewWorld wires the systems together. Minions are added through Minions()
// before the first Step.
func NewWorld(cfg Config, deps Dependencies) (*World, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Terrain == nil {
		deps.Terrain = terrain.NewBatch(terrain.Flat(0), cfg.Sim.BigBatchSize, cfg.Sim.Workers)
	}

	w := &World{
		cfg:         cfg,
		logger:      logger,
		minions:     store.NewMinions(),
		projectiles: store.NewProjectiles(),
		fence:       jobs.Completed(),
	}

	w.minionSys = minion.New(minion.Settings{
		CellSize:   cfg.Sim.CellSize,
		Speed:      cfg.Sim.MinionSpeed,
		HalfExtent: cfg.Sim.HalfExtent,
		BatchSize:  cfg.Sim.SmallBatchSize,
		Workers:    cfg.Sim.Workers,
	}, w.minions, logger)

	var err error
	w.archers, err = archer.New(archer.Settings{
		AttackTime:   cfg.Archer.AttackTime,
		HitTime:      cfg.Archer.HitTime,
		Speed:        cfg.Archer.Speed,
		Pitch:        cfg.Archer.Pitch,
		Jitter:       cfg.Archer.Jitter,
		LaunchHeight: cfg.Archer.LaunchHeight,
		Damage:       cfg.Archer.Damage,
		BatchSize:    cfg.Sim.SmallBatchSize,
		Workers:      cfg.Sim.Workers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating archer system: %w", err)
	}

	w.arrows, err = arrow.New(arrow.Settings{
		MaxRangeSq:     cfg.Sim.MaxRangeSq,
		ProbeCap:       cfg.Sim.ProbeCap,
		SmallBatchSize: cfg.Sim.SmallBatchSize,
		BigBatchSize:   cfg.Sim.BigBatchSize,
		Workers:        cfg.Sim.Workers,
	}, w.projectiles, deps.Terrain, logger)
	if err != nil {
		return nil, fmt.Errorf("creating arrow system: %w", err)
	}

	w.dispatcher, err = dispatcher.New(logger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	w.worker = worker.NewManager(worker.Dependencies{
		Resolver:  combat.NewResolver(w.minions, logger),
		Lifecycle: lifecycle.NewManager(w.projectiles, w.minions, logger),
		Metrics:   deps.Metrics,
		Session:   deps.Session,
		Logger:    logger,
	}, deps.Backend)
	w.worker.RegisterHandlers(w.dispatcher)

	return w, nil
}

// Minions returns the live minion store.
func (w *World) Minions() *store.Minions {
	return w.minions
}

// Projectiles returns the live projectile store.
func (w *World) Projectiles() *store.Projectiles {
	return w.projectiles
}

// Tick returns the number of the last started tick.
func (w *World) Tick() uint64 {
	return w.tick.Load()
}

// MinionCount returns the number of live minions.
func (w *World) MinionCount() int {
	return w.minions.Len()
}

// ProjectileCount returns the number of live projectiles.
func (w *World) ProjectileCount() int {
	return w.projectiles.Len()
}

// RecordBacklog returns the number of ticks waiting to be recorded.
func (w *World) RecordBacklog() int {
	return w.dispatcher.QueueLen(worker.CommandTick)
}

// Worker returns the manager handling the world's commands.
func (w *World) Worker() *worker.Manager {
	return w.worker
}

// Step runs one tick and returns its summary. Recording of the tick happens
// asynchronously; Close waits for it.
func (w *World) Step(ctx context.Context) (*core.TickSummary, error) {
	start := time.Now()
	tick := w.tick.Add(1)
	ctx = logging.WithTick(ctx, tick)
	dt := w.cfg.Sim.DT

	set := w.minionSys.Update(dt)
	fired := w.archers.Update(tick, dt, set)

	tc := &arrow.TickContext{Tick: tick, DT: dt, AttackFence: w.fence}
	res, err := w.arrows.Tick(ctx, tc, set, w.minionSys.Index())
	w.fence = tc.AttackFence
	if err != nil {
		return nil, err
	}

	// Damage lands before the lifecycle pass so minions killed this tick are
	// removed at the same safe point.
	if _, err := w.dispatcher.Dispatch(dispatcher.Event{Command: worker.CommandAttack, Tick: tick, Payload: res.Attacks}); err != nil {
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}
	out, err := w.dispatcher.Dispatch(dispatcher.Event{
		Command: worker.CommandLifecycle,
		Tick:    tick,
		Payload: worker.LifecyclePayload{Requests: res.Lifecycle, Spawns: w.archers.DrainSpawns()},
	})
	if err != nil {
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}
	report, _ := out.(lifecycle.Report)

	summary := &core.TickSummary{
		Tick:          tick,
		Time:          start,
		Skipped:       res.Skipped,
		Projectiles:   res.Projectiles,
		Minions:       res.Minions,
		Attacks:       len(res.Attacks),
		Spawned:       len(report.Spawned),
		MinionsKilled: len(report.MinionsKilled),
	}
	summary.CountReasons(res.Lifecycle)
	summary.Duration = time.Since(start)

	if _, err := w.dispatcher.Dispatch(dispatcher.Event{
		Command: worker.CommandTick,
		Tick:    tick,
		Payload: worker.TickPayload{Summary: *summary, Attacks: res.Attacks, Lifecycle: res.Lifecycle},
	}); err != nil {
		return summary, fmt.Errorf("tick %d: %w", tick, err)
	}

	w.logger.DebugContext(ctx, "world step",
		"fired", fired,
		"spawned", summary.Spawned,
		"killed", summary.MinionsKilled,
		"duration", summary.Duration)
	return summary, nil
}

// Run steps the world until ticks have run or ctx is done. A non-positive
// ticks runs until ctx is done. It returns the totals of the completed ticks.
func (w *World) Run(ctx context.Context, ticks int) (Totals, error) {
	var totals Totals
	for i := 0; ticks <= 0 || i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return totals, err
		}
		s, err := w.Step(ctx)
		if s != nil {
			totals.Add(s)
		}
		if err != nil {
			return totals, err
		}
	}
	return totals, nil
}

// Close waits until every dispatched tick has been recorded.
func (w *World) Close() {
	w.dispatcher.Close()
}

// Totals accumulates tick summaries over a run.
type Totals struct {
	Ticks         int
	Skipped       int
	Attacks       int
	RangeExpired  int
	HitTarget     int
	HitGround     int
	Spawned       int
	MinionsKilled int
}

// Add folds one tick summary into the totals.
func (t *Totals) Add(s *core.TickSummary) {
	t.Ticks++
	if s.Skipped {
		t.Skipped++
	}
	t.Attacks += s.Attacks
	t.RangeExpired += s.RangeExpired
	t.HitTarget += s.HitTarget
	t.HitGround += s.HitGround
	t.Spawned += s.Spawned
	t.MinionsKilled += s.MinionsKilled
}
