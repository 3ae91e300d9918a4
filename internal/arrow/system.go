// Package arrow advances every live arrow once per tick. The tick runs three
// data-parallel stages (integration, ground probe, impact stop) behind one
// completion fence and blocks exactly once, after which the produced commands
// are drained and handed off.
package arrow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/volleyworks/volley/internal/jobs"
	"github.com/volleyworks/volley/internal/queue"
	"github.com/volleyworks/volley/internal/spatial"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/internal/terrain"
	"github.com/volleyworks/volley/pkg/core"
)

const (
	StageIntegrate   = "integrate"
	StageGroundProbe = "ground_probe"
	StageImpactStop  = "impact_stop"
)

// ProjectileStore is where a tick checks its projectiles out of and back into.
type ProjectileStore interface {
	Len() int
	Checkout() *store.Batch
	Checkin(b *store.Batch) error
}

// TickContext carries the per-tick scalars.
type TickContext struct {
	Tick uint64
	DT   float32
	// AttackFence guards producers of attack commands outside this system.
	// The tick's stages start behind it. Tick replaces it with a fence that
	// also covers this tick's stages; after a failed tick that fence carries
	// no error, so the context can be reused.
	AttackFence *jobs.Handle
}

// TickResult is the handoff of one tick.
type TickResult struct {
	Tick        uint64
	Skipped     bool
	Projectiles int
	Minions     int
	Attacks     []core.AttackCommand
	Lifecycle   []core.LifecycleRequest
	Duration    time.Duration
}

// System is the arrow pipeline.
type System struct {
	settings    Settings
	projectiles ProjectileStore
	terrain     terrain.Raycaster
	logger      *slog.Logger

	scratch   *scratch
	attacks   *queue.Queue[core.AttackCommand]
	lifecycle *queue.Queue[core.LifecycleRequest]

	skipped   metric.Int64Counter
	attackCtr metric.Int64Counter
	requests  metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates an arrow system. Metrics go to the global OTel meter.
func New(settings Settings, projectiles ProjectileStore, rc terrain.Raycaster, logger *slog.Logger) (*System, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &System{
		settings:    settings,
		projectiles: projectiles,
		terrain:     rc,
		logger:      logger,
		scratch:     &scratch{},
		attacks:     queue.New[core.AttackCommand](),
		lifecycle:   queue.New[core.LifecycleRequest](),
	}

	m := meter()
	var err error

	s.skipped, err = m.Int64Counter(
		"arrow.ticks.skipped",
		metric.WithDescription("Ticks skipped for lack of arrows or minions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	s.attackCtr, err = m.Int64Counter(
		"arrow.attacks",
		metric.WithDescription("Attack commands produced"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attack counter: %w", err)
	}

	s.requests, err = m.Int64Counter(
		"arrow.lifecycle.requests",
		metric.WithDescription("Lifecycle requests produced, by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating lifecycle counter: %w", err)
	}

	s.duration, err = m.Float64Histogram(
		"arrow.tick.duration",
		metric.WithDescription("Wall time of one arrow tick"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return s, nil
}

// Settings returns the system settings.
func (s *System) Settings() Settings {
	return s.settings
}

// Tick advances every arrow by tc.DT against the given minion snapshot and
// its spatial index.
//
// A tick with no live arrows or no live minions is skipped. If a stage fails
// the tick is aborted. Nothing is written back and the produced commands are
// discarded.
func (s *System) Tick(ctx context.Context, tc *TickContext, minions *store.MinionSet, index spatial.Index) (*TickResult, error) {
	start := time.Now()
	res := &TickResult{Tick: tc.Tick}

	view := NewMinionView(minions)
	if s.projectiles.Len() == 0 || view.Len() == 0 {
		res.Skipped = true
		s.skipped.Add(ctx, 1)
		return res, nil
	}

	batch := s.projectiles.Checkout()
	res.Projectiles = batch.Len()
	res.Minions = view.Len()

	sc := s.scratch
	sc.reset(batch.Len())
	s.attacks = queue.New[core.AttackCommand]()
	s.lifecycle = queue.New[core.LifecycleRequest]()

	g, err := s.buildGraph(batch, sc, view, index, tc.DT)
	if err != nil {
		return nil, err
	}

	final := g.Schedule(ctx, tc.AttackFence)
	if err := final.Wait(ctx); err != nil {
		// Later producers stay ordered behind the failed stages without
		// inheriting their error.
		tc.AttackFence = jobs.Settle(final)
		// Stages may still hold the scratch buffers and queues; start over next tick.
		s.scratch = &scratch{}
		s.attacks = queue.New[core.AttackCommand]()
		s.lifecycle = queue.New[core.LifecycleRequest]()
		return nil, fmt.Errorf("arrow tick %d: %w", tc.Tick, err)
	}
	tc.AttackFence = final

	if err := s.projectiles.Checkin(batch); err != nil {
		return nil, fmt.Errorf("arrow tick %d: writing back projectiles: %w", tc.Tick, err)
	}

	res.Attacks = s.DrainAttackCommands()
	res.Lifecycle = s.DrainLifecycleRequests()
	res.Duration = time.Since(start)
	s.record(ctx, res)

	s.logger.Debug("arrow tick",
		"tick", tc.Tick,
		"projectiles", res.Projectiles,
		"minions", res.Minions,
		"attacks", len(res.Attacks),
		"lifecycle", len(res.Lifecycle),
		"probes", len(sc.origins),
		"duration", res.Duration)
	return res, nil
}

func (s *System) buildGraph(batch *store.Batch, sc *scratch, view MinionView, index spatial.Index, dt float32) (*jobs.Graph, error) {
	integrate := &integration{
		handles:    batch.Handles,
		minions:    view,
		index:      index,
		dt:         dt,
		maxRangeSq: s.settings.MaxRangeSq,
		probeCap:   s.settings.ProbeCap,
		attacks:    s.attacks,
		lifecycle:  s.lifecycle,
		needsProbe: sc.needsProbe,
	}
	probe := &groundProbe{
		projectiles: batch.Data,
		scratch:     sc,
		terrain:     s.terrain,
	}
	stop := &impactStop{
		handles:   batch.Handles,
		results:   sc.results,
		lifecycle: s.lifecycle,
	}

	small, workers := s.settings.SmallBatchSize, s.settings.Workers
	g := jobs.NewGraph()
	if err := g.Add(StageIntegrate, func(context.Context) error {
		jobs.ParallelRange(batch.Data, small, workers, integrate.run)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := g.Add(StageGroundProbe, probe.run, StageIntegrate); err != nil {
		return nil, err
	}
	if err := g.Add(StageImpactStop, func(context.Context) error {
		jobs.ParallelRange(batch.Data, small, workers, stop.run)
		return nil
	}, StageGroundProbe); err != nil {
		return nil, err
	}
	return g, nil
}

// DrainAttackCommands removes and returns the queued attack commands. Tick
// calls it at the synchronization point; it must not run concurrently with
// a tick.
func (s *System) DrainAttackCommands() []core.AttackCommand {
	return s.attacks.Drain()
}

// DrainLifecycleRequests removes and returns the queued lifecycle requests.
// The same rules as DrainAttackCommands apply.
func (s *System) DrainLifecycleRequests() []core.LifecycleRequest {
	return s.lifecycle.Drain()
}

func (s *System) record(ctx context.Context, res *TickResult) {
	s.attackCtr.Add(ctx, int64(len(res.Attacks)))
	var counts [core.HitGround + 1]int64
	for _, r := range res.Lifecycle {
		if r.Reason <= core.HitGround {
			counts[r.Reason]++
		}
	}
	for _, reason := range []core.LifecycleReason{core.RangeExpired, core.HitTarget, core.HitGround} {
		if counts[reason] > 0 {
			s.requests.Add(ctx, counts[reason], metric.WithAttributes(attribute.String("reason", reason.String())))
		}
	}
	s.duration.Record(ctx, res.Duration.Seconds())
}
