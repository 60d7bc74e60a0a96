package world

import (
	"sort"

	"github.com/samber/oops"

	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/world/logic/mathx"
)

type DoorInfo struct {
	Pos            Vec3i  `json:"pos"`
	Block          string `json:"block"`
	Owner          string `json:"owner,omitempty"`
	Locked         bool   `json:"locked"`
	Open           bool   `json:"open"`
	TemplateLocked bool   `json:"template_locked"`
}

func (w *World) door(pos Vec3i) (*SecureDoor, error) {
	te, ok := w.chunks.TileEntityAt(pos)
	if !ok {
		return nil, notFound("secure door", pos)
	}
	d, ok := te.(*SecureDoor)
	if !ok {
		return nil, notFound("secure door", pos)
	}
	return d, nil
}

func (w *World) blockOfKind(block, kind string) (uint16, error) {
	b, ok := w.palette.Index(block)
	if !ok {
		return 0, oops.Code(CodeBadRequest).With("block", block).Errorf("unknown block %q", block)
	}
	if w.palette.Kind(b) != kind {
		return 0, oops.Code(CodeBadRequest).With("block", block).Errorf("block %q is not a %s", block, kind)
	}
	return b, nil
}

func (w *World) checkBounds(pos Vec3i) error {
	if !w.chunks.InBounds(pos.X, pos.Y, pos.Z) {
		return oops.Code(CodeBadRequest).With("pos", pos.ToArray()).Errorf("position %v out of bounds", pos.ToArray())
	}
	return nil
}

// PlaceSecureDoor puts a door block at pos and binds a fresh door entity to
// it. The entity starts with the template default lock from meta.
func (w *World) PlaceSecureDoor(pos Vec3i, block string, meta uint8, owner string) error {
	b, err := w.blockOfKind(block, KindSecureDoor)
	if err != nil {
		return err
	}
	if err := w.checkBounds(pos); err != nil {
		return err
	}
	w.withCause("PLACE", func() {
		d := w.newDoor(pos, b, meta, owner)
		w.audit("DOOR_PLACE", pos, map[string]any{"block": block, "owner": owner})
		w.hooks.ObjectLoaded.Fire(d)
	})
	return nil
}

func (w *World) newDoor(pos Vec3i, b uint16, meta uint8, owner string) *SecureDoor {
	w.chunks.SetBlock(pos, b, meta)
	d := &SecureDoor{w: w, Pos: pos, owner: owner, locked: doorlock.TemplateDefaultLocked(meta)}
	cx, cz, _ := mathx.ChunkOf(pos)
	w.chunks.GetOrGenChunk(cx, cz).AddTileEntity(d)
	return d
}

func (w *World) PlaceContainer(pos Vec3i, block string) error {
	b, err := w.blockOfKind(block, KindContainer)
	if err != nil {
		return err
	}
	if err := w.checkBounds(pos); err != nil {
		return err
	}
	w.withCause("PLACE", func() {
		c := w.newContainer(pos, b)
		w.audit("CONTAINER_PLACE", pos, map[string]any{"block": block})
		w.hooks.ObjectLoaded.Fire(c)
	})
	return nil
}

func (w *World) newContainer(pos Vec3i, b uint16) *Container {
	w.chunks.SetBlock(pos, b, 0)
	c := &Container{Pos: pos, Inventory: map[string]int{}}
	cx, cz, _ := mathx.ChunkOf(pos)
	w.chunks.GetOrGenChunk(cx, cz).AddTileEntity(c)
	return c
}

// ActivateDoor toggles a door open or closed by hand. Locked doors refuse
// everyone but their owner.
func (w *World) ActivateDoor(actor string, pos Vec3i) (open bool, err error) {
	d, err := w.door(pos)
	if err != nil {
		return false, err
	}
	if d.locked && (d.owner == "" || d.owner != actor) {
		return false, oops.Code(CodeLocked).With("pos", pos.ToArray()).With("actor", actor).Errorf("door at %v is locked", pos.ToArray())
	}
	meta := d.BlockMeta() ^ doorlock.MetaOpen
	w.withCause("ACTIVATE", func() {
		w.chunks.SetMeta(pos, meta)
		w.auditAs(actor, "DOOR_TOGGLE", pos, map[string]any{"open": doorlock.IsOpen(meta)})
	})
	return doorlock.IsOpen(meta), nil
}

// SetDoorLocked requests a lock change. Owned doors only accept requests from
// their owner. The result is the lock state after the lock-changing hooks ran.
func (w *World) SetDoorLocked(actor string, pos Vec3i, locked bool) (bool, error) {
	d, err := w.door(pos)
	if err != nil {
		return false, err
	}
	if d.owner != "" && d.owner != actor {
		return d.locked, oops.Code(CodeForbidden).With("pos", pos.ToArray()).With("actor", actor).Errorf("door at %v belongs to %s", pos.ToArray(), d.owner)
	}
	w.withCause("SET_LOCKED", func() { d.SetLocked(locked) })
	return d.locked, nil
}

// ClaimDoor sets or clears the owner. Releasing a door resubmits its lock flag
// through the lock-changing hooks so an open door cannot stay locked unowned.
func (w *World) ClaimDoor(pos Vec3i, owner string) error {
	d, err := w.door(pos)
	if err != nil {
		return err
	}
	prev := d.owner
	if prev == owner {
		return nil
	}
	w.withCause("CLAIM", func() {
		d.owner = owner
		w.audit("DOOR_CLAIM", pos, map[string]any{"owner": owner, "previous": prev})
		if owner == "" {
			d.SetLocked(d.locked)
		}
	})
	return nil
}

func (w *World) doorInfo(d *SecureDoor) DoorInfo {
	b, meta := w.chunks.GetBlock(d.Pos)
	return DoorInfo{
		Pos:            d.Pos,
		Block:          w.palette.Name(b),
		Owner:          d.owner,
		Locked:         d.locked,
		Open:           doorlock.IsOpen(meta),
		TemplateLocked: doorlock.TemplateDefaultLocked(meta),
	}
}

func (w *World) DoorState(pos Vec3i) (DoorInfo, error) {
	d, err := w.door(pos)
	if err != nil {
		return DoorInfo{}, err
	}
	return w.doorInfo(d), nil
}

// Doors lists every door in resident chunks, sorted by position.
func (w *World) Doors() []DoorInfo {
	var out []DoorInfo
	for _, k := range w.chunks.LoadedChunkKeys() {
		ch, _ := w.chunks.LoadedChunk(k)
		for _, te := range ch.TileEntities() {
			if d, ok := te.(*SecureDoor); ok {
				out = append(out, w.doorInfo(d))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return posLess(out[i].Pos, out[j].Pos) })
	return out
}

func posLess(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
