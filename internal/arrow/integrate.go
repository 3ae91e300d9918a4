package arrow

import (
	"github.com/volleyworks/volley/internal/queue"
	"github.com/volleyworks/volley/internal/spatial"
	"github.com/volleyworks/volley/pkg/core"
)

// integration moves every active arrow, expires arrows past their range and
// tests survivors against the minions sharing their cell. Arrows still in
// flight afterwards are flagged for the ground probe.
type integration struct {
	handles    []core.ProjectileHandle
	minions    MinionView
	index      spatial.Index
	dt         float32
	maxRangeSq float32
	probeCap   int

	attacks   *queue.Queue[core.AttackCommand]
	lifecycle *queue.Queue[core.LifecycleRequest]

	// needsProbe is indexed like the projectile slice.
	needsProbe []bool
}

// run processes one disjoint chunk of the projectile slice starting at base.
func (j *integration) run(base int, chunk []core.Projectile) {
	var attacks []core.AttackCommand
	var requests []core.LifecycleRequest

	for k := range chunk {
		p := &chunk[k]
		if !p.Active {
			continue
		}
		slot := base + k

		move := p.Velocity.Mul(j.dt)
		p.Position = p.Position.Add(move)
		p.TraveledDistSq += move.LenSqr()

		if p.TraveledDistSq > j.maxRangeSq {
			requests = append(requests, core.LifecycleRequest{
				Handle:   j.handles[slot],
				Reason:   core.RangeExpired,
				Position: p.Deactivate(),
			})
			continue
		}

		if target, ok := j.probe(p); ok {
			attacks = append(attacks, core.AttackCommand{
				Attacker: j.handles[slot],
				Target:   j.minions.Handle(target),
				Damage:   p.Damage,
			})
			requests = append(requests, core.LifecycleRequest{
				Handle:   j.handles[slot],
				Reason:   core.HitTarget,
				Position: p.Deactivate(),
			})
			continue
		}

		j.needsProbe[slot] = true
	}

	if len(attacks) > 0 {
		j.attacks.Push(attacks...)
	}
	if len(requests) > 0 {
		j.lifecycle.Push(requests...)
	}
}

// probe returns the first of at most probeCap candidates the arrow hits.
// Candidates past the cap are never examined.
func (j *integration) probe(p *core.Projectile) (int, bool) {
	candidates := j.index.Lookup(j.index.Key(p.Position))
	for n, i := range candidates {
		if n >= j.probeCap {
			break
		}
		m := j.minions.Snapshot(i)
		if p.Position.Sub(m.Position).LenSqr() >= m.HitRadiusSq {
			continue
		}
		if p.IsFriendly == j.minions.Flags(i).IsFriendly() {
			continue
		}
		return i, true
	}
	return 0, false
}
