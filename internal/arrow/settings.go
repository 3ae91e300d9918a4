package arrow

import (
	"errors"
	"fmt"
)

// ErrInvalidSettings is returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid arrow settings")

// Settings are the per-world scalars of the arrow pipeline.
type Settings struct {
	// MaxRangeSq is the squared flight distance after which an arrow expires.
	MaxRangeSq float32
	// ProbeCap bounds the candidates examined per arrow per tick.
	ProbeCap int
	// SmallBatchSize is the per-task slot count of the per-arrow stages.
	SmallBatchSize int
	// BigBatchSize is the per-task ray count of the terrain query.
	BigBatchSize int
	// Workers bounds the pool; zero means GOMAXPROCS.
	Workers int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxRangeSq:     10000,
		ProbeCap:       4,
		SmallBatchSize: 64,
		BigBatchSize:   1024,
	}
}

// Validate checks the settings for values the pipeline cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.MaxRangeSq <= 0:
		return fmt.Errorf("%w: maxRangeSq must be positive, got %v", ErrInvalidSettings, s.MaxRangeSq)
	case s.ProbeCap <= 0:
		return fmt.Errorf("%w: probeCap must be positive, got %d", ErrInvalidSettings, s.ProbeCap)
	case s.SmallBatchSize <= 0 || s.BigBatchSize <= 0:
		return fmt.Errorf("%w: batch sizes must be positive, got %d/%d", ErrInvalidSettings, s.SmallBatchSize, s.BigBatchSize)
	case s.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidSettings, s.Workers)
	}
	return nil
}
