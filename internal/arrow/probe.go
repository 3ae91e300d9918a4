package arrow

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volleyworks/volley/internal/terrain"
	"github.com/volleyworks/volley/pkg/core"
)

// scratch holds the probe buffers. They are resized on demand and kept
// across ticks.
type scratch struct {
	needsProbe []bool
	slots      []int
	origins    []mgl32.Vec3
	results    []core.GroundProbeResult
}

func (s *scratch) reset(n int) {
	s.needsProbe = resize(s.needsProbe, n)
	s.results = resize(s.results, n)
	s.slots = s.slots[:0]
	s.origins = s.origins[:0]
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)
	return s
}

// groundProbe compacts the flagged slots into one batched terrain query and
// scatters the answers back to slot order. Unflagged slots keep Hit=false.
type groundProbe struct {
	projectiles []core.Projectile
	scratch     *scratch
	terrain     terrain.Raycaster
}

func (g *groundProbe) run(ctx context.Context) error {
	s := g.scratch
	for slot, flagged := range s.needsProbe {
		if flagged {
			s.slots = append(s.slots, slot)
			s.origins = append(s.origins, g.projectiles[slot].Position)
		}
	}
	if len(s.origins) == 0 {
		return nil
	}

	hits, err := g.terrain.BatchQuery(ctx, s.origins)
	if err != nil {
		return fmt.Errorf("terrain query of %d rays: %w", len(s.origins), err)
	}
	if len(hits) != len(s.origins) {
		return fmt.Errorf("terrain query returned %d results for %d rays", len(hits), len(s.origins))
	}
	for k, slot := range s.slots {
		s.results[slot] = hits[k]
	}
	return nil
}
