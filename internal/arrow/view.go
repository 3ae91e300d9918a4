package arrow

import (
	"github.com/volleyworks/volley/internal/store"
	"github.com/volleyworks/volley/pkg/core"
)

// MinionView is read-only access to the minion snapshot of one tick. Stages
// running in parallel share it; nothing can write through it.
type MinionView struct {
	set *store.MinionSet
}

// NewMinionView wraps a snapshot. The snapshot must not change while the
// view is in use.
func NewMinionView(set *store.MinionSet) MinionView {
	return MinionView{set: set}
}

func (v MinionView) Len() int {
	if v.set == nil {
		return 0
	}
	return v.set.Len()
}

func (v MinionView) Handle(i int) core.MinionHandle {
	return v.set.Handles[i]
}

func (v MinionView) Snapshot(i int) core.MinionSnapshot {
	return v.set.Snapshots[i]
}

func (v MinionView) Flags(i int) core.FactionFlags {
	return v.set.Flags[i]
}
