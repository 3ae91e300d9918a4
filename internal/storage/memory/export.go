// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SessionExport is the root JSON structure.
type SessionExport struct {
	RunID       string  `json:"runId,omitempty"`
	Name        string  `json:"name"`
	StartTime   string  `json:"startTime"`
	DT          float32 `json:"dt"`
	MaxRangeSq  float32 `json:"maxRangeSq"`
	ProbeCap    int     `json:"probeCap"`
	MinionCount int     `json:"minionCount"`
	Seed        uint64  `json:"seed"`
	EndTick     uint64  `json:"endTick"`
	Totals      Totals  `json:"totals"`
	// Ticks rows: [tick, durationMs, skipped, projectiles, minions, attacks, spawned, minionsKilled]
	Ticks [][]any `json:"ticks"`
	// Attacks rows: [tick, attacker, target, damage]
	Attacks [][]any `json:"attacks"`
	// Impacts rows: [tick, projectile, reason, x, y, z]
	Impacts [][]any `json:"impacts"`
}

// Totals sums the per-tick counters of a session.
type Totals struct {
	Attacks       int `json:"attacks"`
	RangeExpired  int `json:"rangeExpired"`
	HitTarget     int `json:"hitTarget"`
	HitGround     int `json:"hitGround"`
	Spawned       int `json:"spawned"`
	MinionsKilled int `json:"minionsKilled"`
	Skipped       int `json:"skipped"`
}

// exportJSON writes the session data to a JSON file, gzipped if configured.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.ReplaceAll(b.session.Name, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	export := SessionExport{
		RunID:       s.RunID,
		Name:        s.Name,
		StartTime:   s.StartTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
		DT:          s.DT,
		MaxRangeSq:  s.MaxRangeSq,
		ProbeCap:    s.ProbeCap,
		MinionCount: s.MinionCount,
		Seed:        s.Seed,
		Ticks:       make([][]any, 0, len(b.ticks)),
		Attacks:     make([][]any, 0, len(b.attacks)),
		Impacts:     make([][]any, 0, len(b.impacts)),
	}

	for _, t := range b.ticks {
		if t.Tick > export.EndTick {
			export.EndTick = t.Tick
		}
		export.Ticks = append(export.Ticks, []any{
			t.Tick,
			float64(t.Duration.Microseconds()) / 1000,
			t.Skipped,
			t.Projectiles,
			t.Minions,
			t.Attacks,
			t.Spawned,
			t.MinionsKilled,
		})

		export.Totals.Attacks += t.Attacks
		export.Totals.RangeExpired += t.RangeExpired
		export.Totals.HitTarget += t.HitTarget
		export.Totals.HitGround += t.HitGround
		export.Totals.Spawned += t.Spawned
		export.Totals.MinionsKilled += t.MinionsKilled
		if t.Skipped {
			export.Totals.Skipped++
		}
	}

	for _, a := range b.attacks {
		export.Attacks = append(export.Attacks, []any{
			a.Tick,
			uint64(a.Command.Attacker),
			uint64(a.Command.Target),
			a.Command.Damage,
		})
	}

	for _, i := range b.impacts {
		p := i.Request.Position
		export.Impacts = append(export.Impacts, []any{
			i.Tick,
			uint64(i.Request.Handle),
			i.Request.Reason.String(),
			p.X(), p.Y(), p.Z(),
		})
	}

	return export
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
