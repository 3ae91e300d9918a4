package gormstorage

import (
	"math"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volleyworks/volley/internal/model"
	"github.com/volleyworks/volley/internal/queue"
	"github.com/volleyworks/volley/pkg/core"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func newTestBackend(t *testing.T, interval time.Duration) *Backend {
	t.Helper()
	b := New(Dependencies{DB: openTestDB(t), WriteInterval: interval})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testSession() *core.Session {
	return &core.Session{
		Name:        "gorm",
		StartTime:   time.Now().UTC(),
		DT:          0.1,
		MaxRangeSq:  10000,
		ProbeCap:    4,
		MinionCount: 8,
		Seed:        42,
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, DefaultWriteInterval, b.deps.WriteInterval)
	assert.NotNil(t, b.deps.Logger)
}

func TestQueueOnlyMode(t *testing.T) {
	b := New(Dependencies{})
	require.NoError(t, b.Init())

	s := testSession()
	s.ID = 5
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))
	require.NoError(t, b.RecordAttacks(1, []core.AttackCommand{{Attacker: 1, Target: 2, Damage: 3}}))
	require.NoError(t, b.RecordLifecycle(1, []core.LifecycleRequest{{Handle: 1, Reason: core.HitTarget}}))

	assert.Equal(t, 1, b.queues.Ticks.Len())
	assert.Equal(t, 1, b.queues.Attacks.Len())
	assert.Equal(t, 1, b.queues.Impacts.Len())

	// nothing to write to, so the queues keep their records
	require.NoError(t, b.EndSession())
	assert.Equal(t, 1, b.queues.Ticks.Len())
	require.NoError(t, b.Close())
}

func TestRecordEmptyBatchesAreSkipped(t *testing.T) {
	b := New(Dependencies{})
	require.NoError(t, b.RecordAttacks(1, nil))
	require.NoError(t, b.RecordLifecycle(1, []core.LifecycleRequest{}))
	assert.True(t, b.queues.Attacks.Empty())
	assert.True(t, b.queues.Impacts.Empty())
}

func TestRecordLifecycle_RejectsNonFinitePosition(t *testing.T) {
	b := New(Dependencies{})
	inf := float32(math.Inf(1))

	err := b.RecordLifecycle(3, []core.LifecycleRequest{
		{Handle: 4, Reason: core.HitGround, Position: mgl32.Vec3{inf, 0, 0}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick 3")
	assert.True(t, b.queues.Impacts.Empty())
}

func TestSessionRoundTrip(t *testing.T) {
	b := newTestBackend(t, time.Hour)

	s := testSession()
	require.NoError(t, b.StartSession(s))
	require.NotZero(t, s.ID)

	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 2, Attacks: 1, HitTarget: 1, HitGround: 1}))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1, Skipped: true}))
	require.NoError(t, b.RecordAttacks(2, []core.AttackCommand{{Attacker: 7, Target: 3, Damage: 20}}))
	require.NoError(t, b.RecordLifecycle(2, []core.LifecycleRequest{
		{Handle: 7, Reason: core.HitTarget, Position: mgl32.Vec3{1, 2, 3}},
		{Handle: 8, Reason: core.HitGround, Position: mgl32.Vec3{-1e6, -1e6, -1e6}},
	}))
	require.NoError(t, b.EndSession())

	assert.True(t, b.queues.Ticks.Empty())

	ticks, err := b.LoadTicks(s.ID)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, uint64(1), ticks[0].Tick)
	assert.True(t, ticks[0].Skipped)
	assert.Equal(t, 1, ticks[1].HitGround)

	attacks, err := b.LoadAttacks(s.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.AttackCommand{{Attacker: 7, Target: 3, Damage: 20}}, attacks)

	impacts, err := b.LoadImpacts(s.ID)
	require.NoError(t, err)
	require.Len(t, impacts, 2)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, impacts[0].Position)
	assert.Equal(t, core.HitGround, impacts[1].Reason)

	var row model.Session
	require.NoError(t, b.DB().First(&row, s.ID).Error)
	assert.True(t, row.EndTime.Valid)
	assert.Equal(t, int64(42), row.Seed)
}

func TestSessionsAreSeparated(t *testing.T) {
	b := newTestBackend(t, time.Hour)

	first := testSession()
	require.NoError(t, b.StartSession(first))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))
	require.NoError(t, b.EndSession())

	second := testSession()
	require.NoError(t, b.StartSession(second))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 2}))
	require.NoError(t, b.EndSession())

	assert.NotEqual(t, first.ID, second.ID)
	ticks, err := b.LoadTicks(first.ID)
	require.NoError(t, err)
	assert.Len(t, ticks, 1)
	ticks, err = b.LoadTicks(second.ID)
	require.NoError(t, err)
	assert.Len(t, ticks, 2)
}

func TestWriteLoop_DrainsQueues(t *testing.T) {
	b := newTestBackend(t, 10*time.Millisecond)
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))

	assert.Eventually(t, func() bool {
		return b.queues.Ticks.Empty()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriteQueue_EmptyQueue(t *testing.T) {
	db := openTestDB(t)
	q := queue.New[model.AttackRecord]()

	called := false
	writeQueue(db, q, "attacks", New(Dependencies{}).deps.Logger, func([]model.AttackRecord) { called = true })
	assert.False(t, called)
}

func TestWriteQueue_FailureRequeues(t *testing.T) {
	// no migration, so the insert fails
	db := openTestDB(t)
	q := queue.New[model.AttackRecord]()
	q.Push(model.AttackRecord{Tick: 1}, model.AttackRecord{Tick: 2})

	writeQueue(db, q, "attacks", New(Dependencies{}).deps.Logger, nil)
	assert.Equal(t, 2, q.Len())
}

func TestClose_FlushesAndIsIdempotent(t *testing.T) {
	b := New(Dependencies{DB: openTestDB(t), WriteInterval: time.Hour})
	require.NoError(t, b.Init())

	s := testSession()
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, b.queues.Ticks.Empty())
}
