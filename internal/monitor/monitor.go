package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is how often the status is refreshed.
const DefaultInterval = time.Second

// WorldStats is the read side of a running world. Implementations must be
// safe to call while the world steps.
type WorldStats interface {
	Tick() uint64
	MinionCount() int
	ProjectileCount() int
	// RecordBacklog is the number of ticks waiting to be recorded.
	RecordBacklog() int
}

// WriteDurationSource reports the duration of the last storage write.
type WriteDurationSource interface {
	LastWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	World   WorldStats
	Storage WriteDurationSource
	Logger  *slog.Logger
	// StatusFile is rewritten with the JSON status every Interval. Empty
	// disables the file.
	StatusFile string
	Interval   time.Duration
	// Addr serves the status over HTTP when set, e.g. "127.0.0.1:8090".
	Addr string
}

// Status is one sample of the program status.
type Status struct {
	Time                time.Time `json:"time"`
	Tick                uint64    `json:"tick"`
	Minions             int       `json:"minions"`
	Projectiles         int       `json:"projectiles"`
	RecordBacklog       int       `json:"recordBacklog"`
	TicksPerSecond      float64   `json:"ticksPerSecond"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}

	lastTick uint64
	lastTime time.Time
	latest   atomic.Pointer[Status]

	server *http.Server
	addr   string
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus samples the current program status. The tick rate is
// measured against the previous sample.
func (s *Service) GetProgramStatus() Status {
	now := time.Now()
	status := Status{
		Time:          now,
		Tick:          s.deps.World.Tick(),
		Minions:       s.deps.World.MinionCount(),
		Projectiles:   s.deps.World.ProjectileCount(),
		RecordBacklog: s.deps.World.RecordBacklog(),
	}
	if s.deps.Storage != nil {
		status.LastWriteDurationMs = float32(s.deps.Storage.LastWriteDuration().Microseconds()) / 1000
	}

	s.mu.Lock()
	if !s.lastTime.IsZero() {
		if elapsed := now.Sub(s.lastTime).Seconds(); elapsed > 0 {
			status.TicksPerSecond = float64(status.Tick-s.lastTick) / elapsed
		}
	}
	s.lastTick, s.lastTime = status.Tick, now
	s.mu.Unlock()

	s.latest.Store(&status)
	return status
}

// WriteStatus replaces the contents of the status file with status.
func (s *Service) WriteStatus(status Status) error {
	if s.deps.StatusFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// Start starts sampling and, when Addr is set, the HTTP endpoint. A listen
// failure leaves the service stopped.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Addr != "" {
		if err := s.serve(s.deps.Addr); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				status := s.GetProgramStatus()
				if err := s.WriteStatus(status); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				logger.Debug("status",
					"tick", status.Tick,
					"minions", status.Minions,
					"projectiles", status.Projectiles,
					"recordBacklog", status.RecordBacklog,
					"ticksPerSecond", status.TicksPerSecond,
					"lastWriteDurationMs", status.LastWriteDurationMs)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done, server := s.done, s.server
	s.server = nil
	s.mu.Unlock()

	<-done
	if server != nil {
		s.shutdown(server)
	}
}
