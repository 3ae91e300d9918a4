package storage

import "github.com/volleyworks/volley/pkg/core"

// Backend is the interface all recording implementations must satisfy.
// Record calls arrive from one goroutine, in tick order.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Tick recording
	RecordTick(t *core.TickSummary) error
	RecordAttacks(tick uint64, cmds []core.AttackCommand) error
	RecordLifecycle(tick uint64, reqs []core.LifecycleRequest) error
}

// Exportable is an optional interface for backends that write a file when
// the session ends.
type Exportable interface {
	ExportedFilePath() string
}
