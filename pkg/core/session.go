// pkg/core/session.go
package core

import "time"

// Session describes one simulation run for the recording backends.
type Session struct {
	ID          uint
	RunID       string // unique per run, unlike Name
	Name        string
	StartTime   time.Time
	DT          float32
	MaxRangeSq  float32
	ProbeCap    int
	MinionCount int
	Seed        uint64
}

// TickSummary is the per-tick outcome handed to recorders and metrics sinks.
type TickSummary struct {
	Tick          uint64
	Time          time.Time
	Duration      time.Duration
	Skipped       bool
	Projectiles   int
	Minions       int
	Attacks       int
	RangeExpired  int
	HitTarget     int
	HitGround     int
	Spawned       int
	MinionsKilled int
}

// CountReasons tallies lifecycle requests into the summary's reason counters.
func (s *TickSummary) CountReasons(reqs []LifecycleRequest) {
	for _, r := range reqs {
		switch r.Reason {
		case RangeExpired:
			s.RangeExpired++
		case HitTarget:
			s.HitTarget++
		case HitGround:
			s.HitGround++
		}
	}
}
