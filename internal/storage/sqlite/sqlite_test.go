package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volleyworks/volley/internal/config"
	"github.com/volleyworks/volley/internal/database"
	"github.com/volleyworks/volley/pkg/core"
)

func session() *core.Session {
	return &core.Session{Name: "sqlite", StartTime: time.Now().UTC(), DT: 0.1, ProbeCap: 4}
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volley.db")
	b, err := New(config.SQLiteConfig{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	s := session()
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordTick(&core.TickSummary{Tick: 1}))
	require.NoError(t, b.EndSession())

	assert.Equal(t, path, b.ExportedFilePath())
	ticks, err := b.LoadTicks(s.ID)
	require.NoError(t, err)
	assert.Len(t, ticks, 1)
}

func TestMemoryBackends_AreIsolated(t *testing.T) {
	a, err := New(config.SQLiteConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Init())
	defer a.Close()

	b, err := New(config.SQLiteConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	s := session()
	require.NoError(t, a.StartSession(s))
	require.NoError(t, a.RecordTick(&core.TickSummary{Tick: 1}))
	require.NoError(t, a.EndSession())

	ticks, err := b.LoadTicks(s.ID)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}

func TestEndSession_Dumps(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.db")
	b, err := New(config.SQLiteConfig{DumpPath: dump}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	s := session()
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.RecordLifecycle(1, []core.LifecycleRequest{{Handle: 1, Reason: core.HitGround}}))
	require.NoError(t, b.EndSession())

	assert.Equal(t, dump, b.ExportedFilePath())
	_, err = os.Stat(dump)
	require.NoError(t, err)

	disk, err := database.OpenSQLite(dump)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Table("impact_records").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpLoop(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "loop.db")
	b, err := New(config.SQLiteConfig{DumpPath: dump, DumpInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
