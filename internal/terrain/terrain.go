// Package terrain answers downward ground rays for the arrow pipeline.
//
// Rays are cast from above the origin with unbounded length, so a projectile
// that tunnelled below the surface within one tick still reports the surface
// height beneath it.
package terrain

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/volleyworks/volley/internal/jobs"
	"github.com/volleyworks/volley/pkg/core"
)

// Surface reports the ground height under an XZ position. ok is false where
// the surface has no ground.
type Surface interface {
	HeightAt(x, z float32) (height float32, ok bool)
}

// Raycaster executes one batched ground query: one result per origin, in order.
type Raycaster interface {
	BatchQuery(ctx context.Context, origins []mgl32.Vec3) ([]core.GroundProbeResult, error)
}

// Batch adapts a Surface into a Raycaster, fanning rays out over a bounded
// worker pool.
type Batch struct {
	Surface   Surface
	BatchSize int
	Workers   int
}

// NewBatch wraps s with the given per-task ray count and worker bound.
func NewBatch(s Surface, batchSize, workers int) *Batch {
	return &Batch{Surface: s, BatchSize: batchSize, Workers: workers}
}

// BatchQuery implements Raycaster.
func (b *Batch) BatchQuery(ctx context.Context, origins []mgl32.Vec3) ([]core.GroundProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]core.GroundProbeResult, len(origins))
	jobs.ParallelRange(results, b.BatchSize, b.Workers, func(base int, chunk []core.GroundProbeResult) {
		for i := range chunk {
			o := origins[base+i]
			h, ok := b.Surface.HeightAt(o.X(), o.Z())
			chunk[i] = core.GroundProbeResult{ImpactHeight: h, Hit: ok}
		}
	})
	return results, nil
}

// Flat is an infinite horizontal plane.
type Flat float32

// HeightAt implements Surface.
func (f Flat) HeightAt(float32, float32) (float32, bool) {
	return float32(f), true
}
