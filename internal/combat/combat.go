// Package combat applies drained attack commands to minion health.
package combat

import (
	"log/slog"

	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

// Outcome summarizes one batch of attacks.
type Outcome struct {
	Applied int
	// Ignored counts attacks on minions that are no longer live.
	Ignored int
	// Killed lists minions whose health reached zero in this batch.
	Killed []core.MinionHandle
}

// Resolver applies attack commands. It must only run at the synchronization
// point after a tick.
type Resolver struct {
	minions *store.Minions
	logger  *slog.Logger
}

func NewResolver(minions *store.Minions, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{minions: minions, logger: logger}
}

// Apply subtracts each command's damage from its target exactly once.
func (r *Resolver) Apply(cmds []core.AttackCommand) Outcome {
	var out Outcome
	for _, c := range cmds {
		left, ok := r.minions.ApplyDamage(c.Target, c.Damage)
		if !ok {
			out.Ignored++
			continue
		}
		out.Applied++
		if left <= 0 && left+c.Damage > 0 {
			out.Killed = append(out.Killed, c.Target)
		}
	}
	if out.Ignored > 0 {
		r.logger.Debug("attacks on missing minions ignored", "count", out.Ignored)
	}
	return out
}
