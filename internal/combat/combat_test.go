package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

func TestResolver_Apply(t *testing.T) {
	ms := store.NewMinions()
	a := ms.Spawn(store.Minion{Health: 50})
	b := ms.Spawn(store.Minion{Health: 20})

	r := NewResolver(ms, nil)
	out := r.Apply([]core.AttackCommand{
		{Attacker: 1, Target: a, Damage: 10},
		{Attacker: 2, Target: b, Damage: 15},
		{Attacker: 3, Target: b, Damage: 15},
		{Attacker: 4, Target: b, Damage: 15},
		{Attacker: 5, Target: core.MinionHandle(404), Damage: 15},
	})

	assert.Equal(t, 4, out.Applied)
	assert.Equal(t, 1, out.Ignored)
	assert.Equal(t, []core.MinionHandle{b}, out.Killed, "a kill is reported once")

	got, ok := ms.Get(a)
	require.True(t, ok)
	assert.Equal(t, float32(40), got.Health)
	got, _ = ms.Get(b)
	assert.Equal(t, float32(-25), got.Health)
}

func TestResolver_ApplyNothing(t *testing.T) {
	r := NewResolver(store.NewMinions(), nil)
	assert.Equal(t, Outcome{}, r.Apply(nil))
}
