package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/volleyworks/volley/internal/dispatcher"
	"github.com/volleyworks/volley/pkg/core"
)

// tickBuffer bounds how far recording may trail the simulation.
const tickBuffer = 256

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Command playback - sync, the next tick must see the result
	d.Register(CommandAttack, m.handleAttack)
	d.Register(CommandLifecycle, m.handleLifecycle)

	// Recording - buffered, never dropped
	d.Register(CommandTick, m.handleTick, dispatcher.Buffered(tickBuffer), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleAttack(e dispatcher.Event) (any, error) {
	cmds, err := attackPayload(e)
	if err != nil {
		return nil, err
	}
	out := m.deps.Resolver.Apply(cmds)
	if len(out.Killed) > 0 {
		m.deps.Logger.Debug("minions killed", "tick", e.Tick, "count", len(out.Killed))
	}
	return out, nil
}

func (m *Manager) handleLifecycle(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(LifecyclePayload)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrUnexpectedPayload, e.Payload)
	}
	return m.deps.Lifecycle.Apply(p.Requests, p.Spawns), nil
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	p, ok := e.Payload.(TickPayload)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrUnexpectedPayload, e.Payload)
	}

	var errs []error
	if m.backend != nil {
		if err := m.backend.RecordTick(&p.Summary); err != nil {
			errs = append(errs, fmt.Errorf("failed to record tick: %w", err))
		}
		if err := m.backend.RecordAttacks(p.Summary.Tick, p.Attacks); err != nil {
			errs = append(errs, fmt.Errorf("failed to record attacks: %w", err))
		}
		if err := m.backend.RecordLifecycle(p.Summary.Tick, p.Lifecycle); err != nil {
			errs = append(errs, fmt.Errorf("failed to record lifecycle: %w", err))
		}
	}
	if m.deps.Metrics != nil {
		if err := m.deps.Metrics.WriteTick(context.Background(), m.deps.Session, &p.Summary); err != nil {
			errs = append(errs, fmt.Errorf("failed to write tick metrics: %w", err))
		}
	}
	return nil, errors.Join(errs...)
}

func attackPayload(e dispatcher.Event) ([]core.AttackCommand, error) {
	switch p := e.Payload.(type) {
	case []core.AttackCommand:
		return p, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrUnexpectedPayload, e.Payload)
	}
}
