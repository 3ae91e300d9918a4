package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/internal/terrain"
	"github.com/volleyworks/volley/pkg/core"
)

// ErrUnknownTerrain is returned for an unsupported terrain.type.
var ErrUnknownTerrain = errors.New("unknown terrain type")

// BuildSurface creates the ground surface described by cfg.
func BuildSurface(cfg config.TerrainConfig) (terrain.Surface, error) {
	switch cfg.Type {
	case "", "flat":
		return terrain.Flat(cfg.BaseHeight), nil
	case "heightfield":
		hf := cfg.Heightfield
		return terrain.NewHeightfield(hf.OriginX, hf.OriginZ, hf.Spacing, hf.Cols, hf.Rows, hf.Heights)
	case "footprints":
		fp := terrain.NewFootprints(cfg.BaseHeight, true)
		for i, f := range cfg.Footprints {
			if err := fp.AddWKT(f.WKT, f.Elevation); err != nil {
				return nil, fmt.Errorf("footprint %d: %w", i, err)
			}
		}
		return fp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTerrain, cfg.Type)
	}
}

// Populate seeds two facing armies into minions. The friendly side stands
// at z = -Separation/2 facing +Z, the enemy at +Separation/2 facing -Z. Each
// side's first RangedFraction of minions are archers. Minions are placed on
// the ground where the surface has any. It returns the number spawned.
func Populate(minions *store.Minions, cfg config.ScenarioConfig, ground terrain.Surface) int {
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x766f6c6c6579))
	ranged := int(math.Round(float64(cfg.RangedFraction) * float64(cfg.MinionsPerSide)))

	sides := []struct {
		flags   core.FactionFlags
		z       float32
		forward mgl32.Vec3
	}{
		{core.Friendly, -cfg.Separation / 2, mgl32.Vec3{0, 0, 1}},
		{0, cfg.Separation / 2, mgl32.Vec3{0, 0, -1}},
	}

	n := 0
	for _, side := range sides {
		for i := range cfg.MinionsPerSide {
			x := (rng.Float32() - 0.5) * cfg.Spread
			z := side.z + (rng.Float32()-0.5)*cfg.Spread/4
			var y float32
			if ground != nil {
				if h, ok := ground.HeightAt(x, z); ok {
					y = h
				}
			}
			flags := side.flags
			if i < ranged {
				flags |= core.Ranged
			}
			minions.Spawn(store.Minion{
				Snapshot: core.MinionSnapshot{
					Position:    mgl32.Vec3{x, y, z},
					Forward:     side.forward,
					HitRadiusSq: cfg.HitRadiusSq,
				},
				Flags:  flags,
				Health: cfg.Health,
			})
			n++
		}
	}
	return n
}

// NewSession describes a run for the recording backends. An empty runID
// gets a random UUID.
func NewSession(runID string, sc config.ScenarioConfig, sim config.SimConfig, minionCount int) *core.Session {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &core.Session{
		RunID:       runID,
		Name:        sc.Name,
		StartTime:   time.Now().UTC(),
		DT:          sim.DT,
		MaxRangeSq:  sim.MaxRangeSq,
		ProbeCap:    sim.ProbeCap,
		MinionCount: minionCount,
		Seed:        sc.Seed,
	}
}
