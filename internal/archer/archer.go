// Package archer fires arrows from ranged minions on a shared attack cycle.
// Fired arrows are queued as spawn requests and created by the lifecycle
// manager at the end of the tick.
package archer

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volleyworks/volley/internal/jobs"
	"github.com/volleyworks/volley/internal/queue"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid archer settings")

// Settings configure the attack cycle and launch parameters.
type Settings struct {
	// AttackTime is the length of one attack cycle in seconds.
	AttackTime float32
	// HitTime is the point within the cycle at which archers release.
	HitTime float32
	Speed   float32
	// Pitch is added to the normalized forward vector before launch.
	Pitch float32
	// Jitter is the maximum per-axis deviation added to the launch velocity.
	Jitter       float32
	LaunchHeight float32
	Damage       float32
	BatchSize    int
	Workers      int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		AttackTime:   2,
		HitTime:      1,
		Speed:        30,
		Pitch:        0.6,
		Jitter:       1.5,
		LaunchHeight: 1.5,
		Damage:       20,
		BatchSize:    64,
	}
}

func (s Settings) Validate() error {
	if s.AttackTime <= 0 {
		return fmt.Errorf("%w: attackTime must be positive, got %v", ErrInvalidSettings, s.AttackTime)
	}
	if s.HitTime < 0 || s.HitTime > s.AttackTime {
		return fmt.Errorf("%w: hitTime %v outside [0, %v]", ErrInvalidSettings, s.HitTime, s.AttackTime)
	}
	return nil
}

// System tracks the attack cycle and queues fired arrows.
type System struct {
	settings Settings
	cycle    float32
	fired    *queue.Queue[store.SpawnRequest]
	logger   *slog.Logger
}

func New(settings Settings, logger *slog.Logger) (*System, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		settings: settings,
		fired:    queue.New[store.SpawnRequest](),
		logger:   logger,
	}, nil
}

// Cycle returns the current position within the attack cycle.
func (s *System) Cycle() float32 {
	return s.cycle
}

// Update advances the cycle by dt. If the release point was crossed, every
// ranged minion of the snapshot fires one arrow. tick seeds the launch
// jitter. It returns the number of arrows fired.
func (s *System) Update(tick uint64, dt float32, set *store.MinionSet) int {
	prev := s.cycle
	s.cycle += dt
	if s.cycle > s.settings.AttackTime {
		s.cycle -= s.settings.AttackTime
	}
	if !crossed(prev, s.cycle, s.settings.HitTime) || set.Len() == 0 {
		return 0
	}

	before := s.fired.Len()
	jobs.ParallelRange(set.Snapshots, s.settings.BatchSize, s.settings.Workers, func(base int, chunk []core.MinionSnapshot) {
		var out []store.SpawnRequest
		for k, m := range chunk {
			i := base + k
			flags := set.Flags[i]
			if !flags.IsRanged() {
				continue
			}
			vel, ok := s.launch(m.Forward, tick, i)
			if !ok {
				continue
			}
			out = append(out, store.SpawnRequest{
				Position:   m.Position.Add(mgl32.Vec3{0, s.settings.LaunchHeight, 0}),
				Velocity:   vel,
				Damage:     s.settings.Damage,
				IsFriendly: flags.IsFriendly(),
			})
		}
		if len(out) > 0 {
			s.fired.Push(out...)
		}
	})

	n := s.fired.Len() - before
	s.logger.Debug("archers fired", "tick", tick, "arrows", n)
	return n
}

// DrainSpawns returns and clears the queued spawn requests.
func (s *System) DrainSpawns() []store.SpawnRequest {
	return s.fired.Drain()
}

func (s *System) launch(forward mgl32.Vec3, tick uint64, index int) (mgl32.Vec3, bool) {
	flat := mgl32.Vec3{forward.X(), 0, forward.Z()}
	if flat.LenSqr() == 0 {
		return mgl32.Vec3{}, false
	}
	dir := flat.Normalize().Add(mgl32.Vec3{0, s.settings.Pitch, 0}).Normalize()
	vel := dir.Mul(s.settings.Speed)

	if j := s.settings.Jitter; j > 0 {
		rng := rand.New(rand.NewPCG(tick, uint64(index)))
		vel = vel.Add(mgl32.Vec3{
			(rng.Float32()*2 - 1) * j,
			(rng.Float32()*2 - 1) * j,
			(rng.Float32()*2 - 1) * j,
		})
	}
	return vel, true
}

// crossed reports whether a cycle moving from prev to cur passed at.
// cur < prev means the cycle wrapped.
func crossed(prev, cur, at float32) bool {
	if cur >= prev {
		return prev < at && at <= cur
	}
	return prev < at || at <= cur
}
