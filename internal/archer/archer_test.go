package archer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

func TestCrossed(t *testing.T) {
	tests := []struct {
		name          string
		prev, cur, at float32
		want          bool
	}{
		{"before", 0.1, 0.5, 1, false},
		{"crosses", 0.5, 1.2, 1, true},
		{"lands on it", 0.5, 1, 1, true},
		{"starts on it", 1, 1.5, 1, false},
		{"wraps past it", 1.8, 0.3, 1.9, true},
		{"wraps onto it", 1.8, 0.2, 0.2, true},
		{"wraps without it", 1.8, 0.3, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crossed(tt.prev, tt.cur, tt.at))
		})
	}
}

func testSet() *store.MinionSet {
	ms := store.NewMinions()
	ms.Spawn(store.Minion{
		Snapshot: core.MinionSnapshot{Position: mgl32.Vec3{0, 0, 0}, Forward: mgl32.Vec3{0, 0, 1}},
		Flags:    core.Ranged | core.Friendly,
	})
	ms.Spawn(store.Minion{
		Snapshot: core.MinionSnapshot{Position: mgl32.Vec3{5, 0, 0}, Forward: mgl32.Vec3{1, 0, 0}},
	})
	ms.Spawn(store.Minion{
		Snapshot: core.MinionSnapshot{Position: mgl32.Vec3{9, 0, 9}, Forward: mgl32.Vec3{-1, 0, 0}},
		Flags:    core.Ranged,
	})
	ms.Spawn(store.Minion{
		Snapshot: core.MinionSnapshot{Position: mgl32.Vec3{3, 0, 3}},
		Flags:    core.Ranged,
	})
	return ms.Snapshot()
}

func TestUpdate_FiresOnRelease(t *testing.T) {
	settings := DefaultSettings()
	settings.Jitter = 0
	settings.BatchSize = 1
	sys, err := New(settings, nil)
	require.NoError(t, err)
	set := testSet()

	assert.Zero(t, sys.Update(1, 0.5, set), "cycle 0.5 has not reached the release point")
	assert.Empty(t, sys.DrainSpawns())

	// Ranged minions with a heading fire; the one without a heading cannot.
	require.Equal(t, 2, sys.Update(2, 0.5, set))
	spawns := sys.DrainSpawns()
	require.Len(t, spawns, 2)

	byFaction := map[bool]store.SpawnRequest{}
	for _, s := range spawns {
		byFaction[s.IsFriendly] = s
	}
	friendly := byFaction[true]
	assert.Equal(t, mgl32.Vec3{0, settings.LaunchHeight, 0}, friendly.Position)
	assert.Equal(t, settings.Damage, friendly.Damage)
	assert.InDelta(t, settings.Speed, friendly.Velocity.Len(), 1e-3)
	assert.Greater(t, friendly.Velocity.Z(), float32(0))
	assert.Greater(t, friendly.Velocity.Y(), float32(0))

	enemy := byFaction[false]
	assert.Less(t, enemy.Velocity.X(), float32(0))

	assert.Zero(t, sys.Update(3, 0.5, set))
	assert.Zero(t, sys.Update(4, 0.5, set))
	assert.Zero(t, sys.Update(5, 0.5, set), "cycle wraps without firing")
	assert.InDelta(t, 0.5, sys.Cycle(), 1e-6)
	assert.Equal(t, 2, sys.Update(6, 0.5, set), "second cycle fires again")
}

func TestUpdate_JitterIsDeterministic(t *testing.T) {
	settings := DefaultSettings()
	settings.HitTime = 0.5
	settings.AttackTime = 1

	fire := func(tick uint64) []store.SpawnRequest {
		sys, err := New(settings, nil)
		require.NoError(t, err)
		sys.Update(tick, 1, testSet())
		return sys.DrainSpawns()
	}

	a, b := fire(7), fire(7)
	require.Len(t, a, 2)
	assert.ElementsMatch(t, a, b)

	c := fire(8)
	assert.NotEqual(t, a[0].Velocity, c[0].Velocity)
}

func TestSettings_Validate(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())

	s.AttackTime = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)

	s = DefaultSettings()
	s.HitTime = s.AttackTime + 1
	assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
}
