package convert

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/volleyworks/volley/internal/model"
	"github.com/volleyworks/volley/pkg/core"
)

// pointToPosition rebuilds a world position from a ground point and height.
func pointToPosition(p geom.Point, height float32) mgl32.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return mgl32.Vec3{0, height, 0}
	}
	return mgl32.Vec3{float32(coord.XY.X), height, float32(coord.XY.Y)}
}

func parseReason(s string) core.LifecycleReason {
	for _, r := range []core.LifecycleReason{core.RangeExpired, core.HitTarget, core.HitGround} {
		if r.String() == s {
			return r
		}
	}
	return 0
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:          s.ID,
		RunID:       s.RunID,
		Name:        s.Name,
		StartTime:   s.StartTime,
		DT:          s.DT,
		MaxRangeSq:  s.MaxRangeSq,
		ProbeCap:    s.ProbeCap,
		MinionCount: s.MinionCount,
		Seed:        uint64(s.Seed),
	}
}

// TickRecordToCore converts a GORM TickRecord to a core.TickSummary.
// Unparseable reason counts are left at zero.
func TickRecordToCore(t model.TickRecord) core.TickSummary {
	out := core.TickSummary{
		Tick:          t.Tick,
		Time:          t.Time,
		Duration:      time.Duration(t.DurationMicros) * time.Microsecond,
		Skipped:       t.Skipped,
		Projectiles:   t.Projectiles,
		Minions:       t.Minions,
		Attacks:       t.Attacks,
		Spawned:       t.Spawned,
		MinionsKilled: t.MinionsKilled,
	}

	var reasons map[string]int
	if len(t.Reasons) > 0 && json.Unmarshal(t.Reasons, &reasons) == nil {
		out.RangeExpired = reasons[core.RangeExpired.String()]
		out.HitTarget = reasons[core.HitTarget.String()]
		out.HitGround = reasons[core.HitGround.String()]
	}
	return out
}

// AttackRecordToCore converts a GORM AttackRecord to a core.AttackCommand.
func AttackRecordToCore(a model.AttackRecord) core.AttackCommand {
	return core.AttackCommand{
		Attacker: core.ProjectileHandle(a.Attacker),
		Target:   core.MinionHandle(a.Target),
		Damage:   a.Damage,
	}
}

// ImpactRecordToCore converts a GORM ImpactRecord to a core.LifecycleRequest.
func ImpactRecordToCore(r model.ImpactRecord) core.LifecycleRequest {
	return core.LifecycleRequest{
		Handle:   core.ProjectileHandle(r.Projectile),
		Reason:   parseReason(r.Reason),
		Position: pointToPosition(r.Position, r.Height),
	}
}
