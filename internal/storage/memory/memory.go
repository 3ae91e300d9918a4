// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/pkg/core"
)

// ErrNoSession is returned when recording outside a session.
var ErrNoSession = errors.New("no session started")

// ImpactRecord is one deactivated arrow.
type ImpactRecord struct {
	Tick    uint64
	Request core.LifecycleRequest
}

// AttackRecord is one applied attack.
type AttackRecord struct {
	Tick    uint64
	Command core.AttackCommand
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	ticks   []core.TickSummary
	attacks []AttackRecord
	impacts []ImpactRecord

	lastExportPath string
	idCounter      uint
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and resets all collections.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	b.session = s

	b.ticks = nil
	b.attacks = nil
	b.impacts = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// RecordTick appends a tick summary.
func (b *Backend) RecordTick(t *core.TickSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return ErrNoSession
	}
	b.ticks = append(b.ticks, *t)
	return nil
}

// RecordAttacks appends the attacks of one tick.
func (b *Backend) RecordAttacks(tick uint64, cmds []core.AttackCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return ErrNoSession
	}
	for _, c := range cmds {
		b.attacks = append(b.attacks, AttackRecord{Tick: tick, Command: c})
	}
	return nil
}

// RecordLifecycle appends the lifecycle requests of one tick.
func (b *Backend) RecordLifecycle(tick uint64, reqs []core.LifecycleRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return ErrNoSession
	}
	for _, r := range reqs {
		b.impacts = append(b.impacts, ImpactRecord{Tick: tick, Request: r})
	}
	return nil
}

// Ticks returns a copy of the recorded tick summaries.
func (b *Backend) Ticks() []core.TickSummary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.TickSummary(nil), b.ticks...)
}

// Counts returns the number of recorded attacks and impacts.
func (b *Backend) Counts() (attacks, impacts int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.attacks), len(b.impacts)
}

// ExportedFilePath returns the path of the last export.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
