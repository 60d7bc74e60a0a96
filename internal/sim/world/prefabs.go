package world

import (
	"github.com/samber/oops"
	"go.uber.org/zap"

	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/prefab"
	"opendoors.ai/internal/sim/world/terrain/store"
)

// SpawnPrefab places a template instance and builds it. New tile entities
// fire the object-loaded hook once the whole structure is in place.
func (w *World) SpawnPrefab(id, template string, origin Vec3i, tags []string) error {
	tpl, ok := w.cfg.Templates[template]
	if !ok {
		return oops.Code(CodeNotFound).With("template", template).Errorf("unknown template %q", template)
	}
	if origin.Y != 0 {
		return oops.Code(CodeBadRequest).With("origin", origin.ToArray()).Errorf("prefab origin must be at y=0")
	}
	in := &prefab.Instance{InstanceID: id, Template: tpl, Origin: origin, Tags: tags}
	if err := w.prefabs.Add(in); err != nil {
		// oops reports the deepest code, so the registry error is not wrapped.
		return oops.Code(CodeBadRequest).With("prefab", id).Errorf("spawn prefab: %v", err)
	}
	w.withCause("SPAWN", func() {
		created := w.build(in)
		w.audit("PREFAB_SPAWN", origin, map[string]any{"prefab": id, "template": template})
		for _, te := range created {
			w.hooks.ObjectLoaded.Fire(te)
		}
	})
	return nil
}

// ResetPrefab rebuilds an instance from its template, bracketed by the
// region-reset hooks.
func (w *World) ResetPrefab(id string) error {
	in, ok := w.prefabs.Get(id)
	if !ok {
		return oops.Code(CodeNotFound).With("prefab", id).Errorf("unknown prefab %q", id)
	}
	w.withCause("RESET", func() { w.reset(in) })
	return nil
}

func (w *World) reset(in *prefab.Instance) {
	w.audit("PREFAB_RESET", in.Origin, map[string]any{"prefab": in.ID()})
	neighbours := w.doorsOutside(in)
	w.hooks.RegionResetBegin.Fire(in)
	w.build(in)
	w.restoreDoors(neighbours)
	w.hooks.RegionResetEnd.Fire(in)
}

// keptDoor is a door outside an instance footprint that shares one of its
// chunks. The reset hooks work per chunk, so such doors are put back after the
// rebuild with the state they had before it.
type keptDoor struct {
	pos    Vec3i
	block  uint16
	meta   uint8
	owner  string
	locked bool
}

func (w *World) doorsOutside(in *prefab.Instance) []keptDoor {
	var out []keptDoor
	for _, id := range in.OccupiedChunks() {
		ch, ok := w.chunks.LoadedChunk(store.KeyFromID(id))
		if !ok {
			continue
		}
		for _, te := range ch.TileEntities() {
			d, ok := te.(*SecureDoor)
			if !ok || in.Contains(d.Pos) {
				continue
			}
			b, meta := w.chunks.GetBlock(d.Pos)
			out = append(out, keptDoor{pos: d.Pos, block: b, meta: meta, owner: d.owner, locked: d.locked})
		}
	}
	return out
}

func (w *World) restoreDoors(kept []keptDoor) {
	for _, k := range kept {
		if _, ok := w.chunks.TileEntityAt(k.pos); ok {
			continue
		}
		d := w.newDoor(k.pos, k.block, k.meta, k.owner)
		d.locked = k.locked
		w.audit("DOOR_RESTORE", k.pos, map[string]any{"block": w.palette.Name(k.block), "owner": k.owner, "locked": k.locked})
	}
}

// StartQuest resets the instances at pos matching any of tags and then fires
// the quest relock hook. It returns the ids of the reset instances.
func (w *World) StartQuest(pos Vec3i, tags []string) []string {
	var ids []string
	w.withCause("QUEST", func() {
		for _, in := range w.prefabs.At(pos, tags) {
			w.reset(in)
			ids = append(ids, in.ID())
		}
		w.audit("QUEST_START", pos, map[string]any{"tags": tags, "prefabs": ids})
		w.hooks.QuestRelock.Fire(QuestStart{Pos: pos, Tags: tags})
	})
	w.log.Debug("quest started", zap.Any("pos", pos), zap.Strings("tags", tags), zap.Strings("prefabs", ids))
	return ids
}

// build writes the template over the instance footprint. Cells the template
// leaves empty become air. Door and container entities already bound to a
// block of the same type are kept as they are; the rest are created fresh and
// returned.
func (w *World) build(in *prefab.Instance) []doorlock.TileEntity {
	tpl := in.Template
	blocks := make(map[Vec3i]prefab.BlockDef, len(tpl.Blocks))
	for _, b := range tpl.Blocks {
		blocks[prefab.Offset(in.Origin, b.Pos)] = b
	}
	switches := make(map[Vec3i]prefab.SwitchDef, len(tpl.Switches))
	for _, s := range tpl.Switches {
		switches[prefab.Offset(in.Origin, s.Pos)] = s
	}

	var created []doorlock.TileEntity
	for x := 0; x < tpl.Size[0]; x++ {
		for z := 0; z < tpl.Size[2]; z++ {
			pos := in.Origin.Add(Vec3i{X: x, Z: z})
			if !w.chunks.InBounds(pos.X, pos.Y, pos.Z) {
				continue
			}
			if def, ok := blocks[pos]; ok {
				delete(w.switches, pos)
				if te := w.buildBlock(pos, def); te != nil {
					created = append(created, te)
				}
				continue
			}
			if def, ok := switches[pos]; ok {
				sb, _ := w.palette.Index(blockSwitch)
				w.chunks.SetBlock(pos, sb, 0)
				links := make([]Vec3i, 0, len(def.Links))
				for _, l := range def.Links {
					links = append(links, prefab.Offset(in.Origin, l))
				}
				w.switches[pos] = &Switch{Pos: pos, Links: links}
				continue
			}
			delete(w.switches, pos)
			w.chunks.SetBlock(pos, w.palette.Air(), 0)
		}
	}
	return created
}

func (w *World) buildBlock(pos Vec3i, def prefab.BlockDef) doorlock.TileEntity {
	b, _ := w.palette.Index(def.Block)
	switch w.palette.Kind(b) {
	case KindSecureDoor:
		cur, _ := w.chunks.GetBlock(pos)
		if te, ok := w.chunks.TileEntityAt(pos); ok && cur == b {
			if _, ok := te.(*SecureDoor); ok {
				w.chunks.SetMeta(pos, def.Meta)
				return nil
			}
		}
		return w.newDoor(pos, b, def.Meta, def.Owner)
	case KindContainer:
		cur, _ := w.chunks.GetBlock(pos)
		if te, ok := w.chunks.TileEntityAt(pos); ok && cur == b {
			if _, ok := te.(*Container); ok {
				return nil
			}
		}
		return w.newContainer(pos, b)
	default:
		w.chunks.SetBlock(pos, b, def.Meta)
		return nil
	}
}

func (w *World) Prefabs() []*prefab.Instance { return w.prefabs.All() }
