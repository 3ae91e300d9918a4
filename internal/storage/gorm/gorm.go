// Package gormstorage implements the storage.Backend interface on top of any
// GORM dialect. Records are queued on the simulation side and written in
// batches by a background writer goroutine.
package gormstorage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/volleyworks/volley/internal/model"
	"github.com/volleyworks/volley/internal/model/convert"
	"github.com/volleyworks/volley/internal/queue"
	"github.com/volleyworks/volley/pkg/core"

	"gorm.io/gorm"
)

// DefaultWriteInterval is the writer period when none is configured.
const DefaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Ticks   *queue.Queue[model.TickRecord]
	Attacks *queue.Queue[model.AttackRecord]
	Impacts *queue.Queue[model.ImpactRecord]
}

func newQueues() *queues {
	return &queues{
		Ticks:   queue.New[model.TickRecord](),
		Attacks: queue.New[model.AttackRecord](),
		Impacts: queue.New[model.ImpactRecord](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	lastWrite atomic.Int64
	flushMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new GORM storage backend. A nil DB runs in queue-only mode.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB != nil {
		if err := b.setupDB(); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
	}

	go b.writeLoop()
	return nil
}

// setupDB migrates tables.
func (b *Backend) setupDB() error {
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.deps.Logger.Info("Database setup complete")
	return nil
}

// Close stops the DB writer goroutine and writes what is still queued.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
		b.Flush()
	})
	return nil
}

// StartSession inserts the session row and assigns its ID back to s.
func (b *Backend) StartSession(s *core.Session) error {
	if b.deps.DB == nil {
		b.sessionID.Store(uint64(s.ID))
		return nil
	}

	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	return nil
}

// EndSession flushes the queues and stamps the session end time.
func (b *Backend) EndSession() error {
	b.Flush()

	if b.deps.DB == nil {
		return nil
	}
	id := uint(b.sessionID.Load())
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", id).
		Update("end_time", sql.NullTime{Time: time.Now(), Valid: true}).Error
	if err != nil {
		return fmt.Errorf("failed to end session %d: %w", id, err)
	}
	return nil
}

// RecordTick converts and queues a tick summary.
func (b *Backend) RecordTick(t *core.TickSummary) error {
	b.queues.Ticks.Push(convert.CoreToTickRecord(*t))
	return nil
}

// RecordAttacks converts and queues one tick's attack commands.
func (b *Backend) RecordAttacks(tick uint64, cmds []core.AttackCommand) error {
	if len(cmds) == 0 {
		return nil
	}
	b.queues.Attacks.Push(convert.CoreToAttackRecords(tick, cmds)...)
	return nil
}

// RecordLifecycle converts and queues one tick's lifecycle requests.
func (b *Backend) RecordLifecycle(tick uint64, reqs []core.LifecycleRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	recs, err := convert.CoreToImpactRecords(tick, reqs)
	if err != nil {
		return fmt.Errorf("tick %d: %w", tick, err)
	}
	b.queues.Impacts.Push(recs...)
	return nil
}

// LastWriteDuration returns how long the last flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush drains every queue into the database. Records that fail to write
// are requeued for the next flush.
func (b *Backend) Flush() {
	if b.deps.DB == nil {
		return
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	sessionID := uint(b.sessionID.Load())
	log := b.deps.Logger

	writeQueue(b.deps.DB, b.queues.Ticks, "tick records", log, func(items []model.TickRecord) {
		for i := range items {
			if items[i].SessionID == 0 {
				items[i].SessionID = sessionID
			}
		}
	})
	writeQueue(b.deps.DB, b.queues.Attacks, "attack records", log, func(items []model.AttackRecord) {
		for i := range items {
			if items[i].SessionID == 0 {
				items[i].SessionID = sessionID
			}
		}
	})
	writeQueue(b.deps.DB, b.queues.Impacts, "impact records", log, func(items []model.ImpactRecord) {
		for i := range items {
			if items[i].SessionID == 0 {
				items[i].SessionID = sessionID
			}
		}
	})

	b.lastWrite.Store(int64(time.Since(start)))
}

// writeQueue inserts everything buffered in q in one transaction. A failed
// batch goes back to the front of q for the next flush.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger, prepare func([]T)) {
	items := q.Drain()
	if len(items) == 0 {
		return
	}
	if prepare != nil {
		prepare(items)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating records", "table", name, "count", len(items), "error", err)
		q.Requeue(items)
	}
}

// writeLoop periodically drains the queues into the DB.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// LoadTicks returns the tick summaries recorded for a session in tick order.
func (b *Backend) LoadTicks(sessionID uint) ([]core.TickSummary, error) {
	var rows []model.TickRecord
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("tick").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load tick records: %w", err)
	}
	out := make([]core.TickSummary, len(rows))
	for i, r := range rows {
		out[i] = convert.TickRecordToCore(r)
	}
	return out, nil
}

// LoadImpacts returns the lifecycle requests recorded for a session.
func (b *Backend) LoadImpacts(sessionID uint) ([]core.LifecycleRequest, error) {
	var rows []model.ImpactRecord
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("tick, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load impact records: %w", err)
	}
	out := make([]core.LifecycleRequest, len(rows))
	for i, r := range rows {
		out[i] = convert.ImpactRecordToCore(r)
	}
	return out, nil
}

// LoadAttacks returns the attack commands recorded for a session.
func (b *Backend) LoadAttacks(sessionID uint) ([]core.AttackCommand, error) {
	var rows []model.AttackRecord
	if err := b.deps.DB.Where("session_id = ?", sessionID).Order("tick, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load attack records: %w", err)
	}
	out := make([]core.AttackCommand, len(rows))
	for i, r := range rows {
		out[i] = convert.AttackRecordToCore(r)
	}
	return out, nil
}
