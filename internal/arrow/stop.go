package arrow

import (
	"github.com/volleyworks/volley/internal/queue"
	"github.com/volleyworks/volley/pkg/core"
)

// impactStop deactivates arrows at or below the ground under them.
type impactStop struct {
	handles   []core.ProjectileHandle
	results   []core.GroundProbeResult
	lifecycle *queue.Queue[core.LifecycleRequest]
}

func (j *impactStop) run(base int, chunk []core.Projectile) {
	var requests []core.LifecycleRequest
	for k := range chunk {
		p := &chunk[k]
		r := j.results[base+k]
		if !p.Active || !r.Hit || p.Position.Y() > r.ImpactHeight {
			continue
		}
		requests = append(requests, core.LifecycleRequest{
			Handle:   j.handles[base+k],
			Reason:   core.HitGround,
			Position: p.Deactivate(),
		})
	}
	if len(requests) > 0 {
		j.lifecycle.Push(requests...)
	}
}
