package store

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleyworks/volley/pkg/core"
)

func TestProjectiles_SpawnAndGet(t *testing.T) {
	p := NewProjectiles()

	hs := p.Spawn(
		SpawnRequest{Position: mgl32.Vec3{1, 2, 3}, Velocity: mgl32.Vec3{0, 0, 5}, Damage: 10, IsFriendly: true},
		SpawnRequest{Position: mgl32.Vec3{4, 5, 6}},
	)

	require.Len(t, hs, 2)
	assert.NotEqual(t, hs[0], hs[1])
	assert.Equal(t, 2, p.Len())

	got, ok := p.Get(hs[0])
	require.True(t, ok)
	assert.True(t, got.Active)
	assert.True(t, got.IsFriendly)
	assert.Equal(t, float32(10), got.Damage)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, got.Position)
}

func TestProjectiles_SpawnNothing(t *testing.T) {
	p := NewProjectiles()
	assert.Nil(t, p.Spawn())
	assert.Equal(t, 0, p.Len())
}

func TestProjectiles_CheckoutIsCopy(t *testing.T) {
	p := NewProjectiles()
	hs := p.Spawn(SpawnRequest{Position: mgl32.Vec3{1, 0, 0}})

	b := p.Checkout()
	require.Equal(t, 1, b.Len())
	assert.Equal(t, hs[0], b.Handles[0])

	b.Data[0].Position = mgl32.Vec3{9, 9, 9}
	got, _ := p.Get(hs[0])
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, got.Position, "checkout must not alias live data")

	require.NoError(t, p.Checkin(b))
	got, _ = p.Get(hs[0])
	assert.Equal(t, mgl32.Vec3{9, 9, 9}, got.Position)
}

func TestProjectiles_CheckinStale(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Projectiles, hs []core.ProjectileHandle)
	}{
		{"spawn", func(p *Projectiles, _ []core.ProjectileHandle) { p.Spawn(SpawnRequest{}) }},
		{"destroy", func(p *Projectiles, hs []core.ProjectileHandle) { p.Destroy(hs[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjectiles()
			hs := p.Spawn(SpawnRequest{}, SpawnRequest{})
			b := p.Checkout()

			tt.mutate(p, hs)

			assert.ErrorIs(t, p.Checkin(b), ErrStaleBatch)
		})
	}
}

func TestProjectiles_Destroy(t *testing.T) {
	p := NewProjectiles()
	hs := p.Spawn(
		SpawnRequest{Damage: 1},
		SpawnRequest{Damage: 2},
		SpawnRequest{Damage: 3},
	)

	assert.True(t, p.Destroy(hs[0]))
	assert.False(t, p.Destroy(hs[0]), "second destroy of the same handle")
	assert.Equal(t, 2, p.Len())

	_, ok := p.Get(hs[0])
	assert.False(t, ok)

	for i, h := range hs[1:] {
		got, ok := p.Get(h)
		require.True(t, ok)
		assert.Equal(t, float32(i+2), got.Damage, "handle %d must keep its data after swap-remove", h)
	}
}

func TestMinions_SpawnSnapshot(t *testing.T) {
	s := NewMinions()
	a := s.Spawn(Minion{
		Snapshot: core.MinionSnapshot{Position: mgl32.Vec3{1, 0, 1}, HitRadiusSq: 2},
		Flags:    core.Friendly,
		Health:   100,
	})
	b := s.Spawn(Minion{
		Snapshot: core.MinionSnapshot{Position: mgl32.Vec3{5, 0, 5}, HitRadiusSq: 2},
		Health:   50,
	})

	set := s.Snapshot()
	require.Equal(t, 2, set.Len())
	assert.Equal(t, []core.MinionHandle{a, b}, set.Handles)
	assert.True(t, set.Flags[0].IsFriendly())
	assert.False(t, set.Flags[1].IsFriendly())
	assert.Equal(t, []mgl32.Vec3{{1, 0, 1}, {5, 0, 5}}, set.Positions())

	set.Snapshots[0].Position = mgl32.Vec3{}
	got, _ := s.Get(a)
	assert.Equal(t, mgl32.Vec3{1, 0, 1}, got.Snapshot.Position)
}

func TestMinions_DamageAndDead(t *testing.T) {
	s := NewMinions()
	a := s.Spawn(Minion{Health: 10})
	b := s.Spawn(Minion{Health: 10})

	left, ok := s.ApplyDamage(a, 4)
	require.True(t, ok)
	assert.Equal(t, float32(6), left)
	assert.Empty(t, s.Dead())

	left, ok = s.ApplyDamage(b, 10)
	require.True(t, ok)
	assert.Equal(t, float32(0), left)
	assert.Equal(t, []core.MinionHandle{b}, s.Dead())

	_, ok = s.ApplyDamage(core.MinionHandle(999), 1)
	assert.False(t, ok)
}

func TestMinions_DestroyAndMutate(t *testing.T) {
	s := NewMinions()
	a := s.Spawn(Minion{Health: 1})
	b := s.Spawn(Minion{Health: 2})

	require.True(t, s.Destroy(a))
	assert.False(t, s.Destroy(a))
	assert.Equal(t, 1, s.Len())

	s.Mutate(func(handles []core.MinionHandle, ms []Minion) {
		require.Equal(t, []core.MinionHandle{b}, handles)
		ms[0].Health = 7
	})
	got, ok := s.Get(b)
	require.True(t, ok)
	assert.Equal(t, float32(7), got.Health)
}
