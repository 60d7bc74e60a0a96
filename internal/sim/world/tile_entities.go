package world

import (
	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/world/logic/mathx"
)

// SecureDoor is the tile entity of a lockable door, hatch or gate. The
// physical open state lives in the backing block's meta.
type SecureDoor struct {
	w *World

	Pos    Vec3i
	owner  string
	locked bool
}

var _ doorlock.SecureOpenable = (*SecureDoor)(nil)

func (d *SecureDoor) LocalPos() Vec3i {
	_, _, local := mathx.ChunkOf(d.Pos)
	return local
}

func (d *SecureDoor) Owner() string  { return d.owner }
func (d *SecureDoor) IsLocked() bool { return d.locked }

// SetLocked routes the request through the lock-changing filter and notifies
// lock-changed listeners when the flag actually flips.
func (d *SecureDoor) SetLocked(locked bool) {
	locked = d.w.hooks.LockChanging.Apply(d, locked)
	if locked == d.locked {
		return
	}
	d.locked = locked
	d.w.audit("DOOR_LOCK", d.Pos, map[string]any{"locked": locked, "owner": d.owner})
	d.w.hooks.LockChanged.Fire(d)
}

func (d *SecureDoor) BlockMeta() uint8 {
	_, meta := d.w.chunks.GetBlock(d.Pos)
	return meta
}

func (d *SecureDoor) IsOpen() bool { return doorlock.IsOpen(d.BlockMeta()) }

// Container is a plain storage tile entity. It never takes part in the lock
// policy.
type Container struct {
	Pos       Vec3i
	Inventory map[string]int
}

func (c *Container) LocalPos() Vec3i {
	_, _, local := mathx.ChunkOf(c.Pos)
	return local
}
