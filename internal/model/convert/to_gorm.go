// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/volleyworks/volley/internal/model"
	"github.com/volleyworks/volley/pkg/core"
	"gorm.io/datatypes"
)

// groundPoint projects a world position onto the XZ ground plane. Non-finite
// coordinates are rejected.
func groundPoint(p mgl32.Vec3) (geom.Point, error) {
	coords := geom.Coordinates{XY: geom.XY{X: float64(p.X()), Y: float64(p.Z())}, Type: geom.DimXY}
	return geom.NewPoint(coords)
}

// reasonsToJSON counts lifecycle reasons into a JSON object.
func reasonsToJSON(t core.TickSummary) datatypes.JSON {
	data, _ := json.Marshal(map[string]int{
		core.RangeExpired.String(): t.RangeExpired,
		core.HitTarget.String():    t.HitTarget,
		core.HitGround.String():    t.HitGround,
	})
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	m := model.Session{
		RunID:       s.RunID,
		Name:        s.Name,
		StartTime:   s.StartTime,
		DT:          s.DT,
		MaxRangeSq:  s.MaxRangeSq,
		ProbeCap:    s.ProbeCap,
		MinionCount: s.MinionCount,
		Seed:        int64(s.Seed),
	}
	m.ID = s.ID
	return m
}

// CoreToTickRecord converts a core.TickSummary to a GORM model.TickRecord.
func CoreToTickRecord(t core.TickSummary) model.TickRecord {
	return model.TickRecord{
		Tick:           t.Tick,
		Time:           t.Time,
		DurationMicros: t.Duration.Microseconds(),
		Skipped:        t.Skipped,
		Projectiles:    t.Projectiles,
		Minions:        t.Minions,
		Attacks:        t.Attacks,
		Spawned:        t.Spawned,
		MinionsKilled:  t.MinionsKilled,
		Reasons:        reasonsToJSON(t),
	}
}

// CoreToAttackRecords converts one tick's attack commands.
func CoreToAttackRecords(tick uint64, cmds []core.AttackCommand) []model.AttackRecord {
	out := make([]model.AttackRecord, len(cmds))
	for i, c := range cmds {
		out[i] = model.AttackRecord{
			Tick:     tick,
			Attacker: uint64(c.Attacker),
			Target:   uint64(c.Target),
			Damage:   c.Damage,
		}
	}
	return out
}

// CoreToImpactRecords converts one tick's lifecycle requests. It fails on the
// first request whose position has no valid ground point.
func CoreToImpactRecords(tick uint64, reqs []core.LifecycleRequest) ([]model.ImpactRecord, error) {
	out := make([]model.ImpactRecord, len(reqs))
	for i, r := range reqs {
		pt, err := groundPoint(r.Position)
		if err != nil {
			return nil, fmt.Errorf("impact of projectile %d: %w", r.Handle, err)
		}
		out[i] = model.ImpactRecord{
			Tick:       tick,
			Projectile: uint64(r.Handle),
			Reason:     r.Reason.String(),
			Position:   pt,
			Height:     r.Position.Y(),
		}
	}
	return out, nil
}
