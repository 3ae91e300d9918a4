package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/volleyworks/volley/internal/combat"
	"github.com/volleyworks/volley/internal/lifecycle"
	"github.com/volleyworks/volley/internal/storage"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

// Commands handled by the manager.
const (
	CommandAttack    = ":ATTACK:"
	CommandLifecycle = ":LIFECYCLE:"
	CommandTick      = ":TICK:"
)

// ErrUnexpectedPayload is returned when an event carries the wrong payload type.
var ErrUnexpectedPayload = errors.New("unexpected payload")

// TickWriter receives per-tick summaries for a metrics sink.
type TickWriter interface {
	WriteTick(ctx context.Context, session string, t *core.TickSummary) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Resolver  *combat.Resolver
	Lifecycle *lifecycle.Manager
	// Metrics is optional.
	Metrics TickWriter
	Session string
	Logger  *slog.Logger
}

// LifecyclePayload is the :LIFECYCLE: event payload. Requests are applied
// before Spawns.
type LifecyclePayload struct {
	Requests []core.LifecycleRequest
	Spawns   []store.SpawnRequest
}

// TickPayload is the :TICK: event payload. The slices must not be reused by
// the sender once dispatched.
type TickPayload struct {
	Summary   core.TickSummary
	Attacks   []core.AttackCommand
	Lifecycle []core.LifecycleRequest
}

// Manager applies drained commands to the world and forwards tick records
// to the recording backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// WriteDurationProvider is an optional interface that backends can implement
// to expose their last write duration for monitoring.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// LastWriteDuration returns the duration of the last backend write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) LastWriteDuration() time.Duration {
	if p, ok := m.backend.(WriteDurationProvider); ok {
		return p.LastWriteDuration()
	}
	return 0
}
