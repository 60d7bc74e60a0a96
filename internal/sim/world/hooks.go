package world

import (
	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/hooks"
)

type SwitchTrigger struct {
	Lookup  doorlock.TileEntityLookup
	Cluster int
	Pos     Vec3i
	Meta    uint8
}

type QuestStart struct {
	Pos  Vec3i
	Tags []string
}

// Hooks is the host's lifecycle hook set. It implements doorlock.Hooks.
type Hooks struct {
	ObjectLoaded      hooks.Hook[doorlock.TileEntity]
	LockChanging      hooks.Filter[doorlock.SecureOpenable, bool]
	LockChanged       hooks.Hook[doorlock.SecureOpenable]
	TriggeredBySwitch hooks.Hook[SwitchTrigger]
	RegionResetBegin  hooks.Hook[doorlock.Region]
	RegionResetEnd    hooks.Hook[doorlock.Region]
	QuestRelock       hooks.Hook[QuestStart]
}

var _ doorlock.Hooks = (*Hooks)(nil)

func (h *Hooks) OnObjectLoaded(fn func(te doorlock.TileEntity)) { h.ObjectLoaded.Subscribe(fn) }

func (h *Hooks) OnLockStateChanging(fn func(obj doorlock.SecureOpenable, requested bool) bool) {
	h.LockChanging.Subscribe(fn)
}

func (h *Hooks) OnLockStateChanged(fn func(obj doorlock.SecureOpenable)) { h.LockChanged.Subscribe(fn) }

func (h *Hooks) OnTriggeredBySwitch(fn func(lookup doorlock.TileEntityLookup, cluster int, pos Vec3i, meta uint8)) {
	if fn == nil {
		return
	}
	h.TriggeredBySwitch.Subscribe(func(e SwitchTrigger) { fn(e.Lookup, e.Cluster, e.Pos, e.Meta) })
}

func (h *Hooks) OnRegionResetBegin(fn func(region doorlock.Region)) { h.RegionResetBegin.Subscribe(fn) }
func (h *Hooks) OnRegionResetEnd(fn func(region doorlock.Region))   { h.RegionResetEnd.Subscribe(fn) }

func (h *Hooks) OnQuestRelock(fn func(pos Vec3i, tags []string)) {
	if fn == nil {
		return
	}
	h.QuestRelock.Subscribe(func(e QuestStart) { fn(e.Pos, e.Tags) })
}
