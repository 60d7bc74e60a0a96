package world

import (
	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/world/logic/mathx"
	"opendoors.ai/internal/sim/world/terrain/store"
)

// The host world is a single cluster.
const hostCluster = 0

type chunkView struct {
	w  *World
	ch *store.Chunk
}

func (c chunkView) TileEntityCount() int { return c.ch.TileEntityCount() }

func (c chunkView) TileEntityAt(i int) doorlock.TileEntity { return c.ch.TileEntityAt(i) }

func (c chunkView) HasTileEntityBlock(local Vec3i) bool {
	return c.w.palette.BearsTileEntity(c.ch.Get(local.X, local.Z))
}

func (c chunkView) ClearBlock(local Vec3i) {
	pos := Vec3i{X: c.ch.CX*mathx.ChunkSize + local.X, Y: local.Y, Z: c.ch.CZ*mathx.ChunkSize + local.Z}
	from := c.ch.Get(local.X, local.Z)
	c.ch.Set(local.X, local.Z, c.w.palette.Air(), 0)
	c.w.audit("BLOCK_CLEAR", pos, map[string]any{"from": c.w.palette.Name(from)})
}

type doorWorld struct{ w *World }

func (d doorWorld) LoadedChunk(id int64) (doorlock.Chunk, bool) {
	ch, ok := d.w.chunks.LoadedChunk(store.KeyFromID(id))
	if !ok {
		return nil, false
	}
	return chunkView{w: d.w, ch: ch}, true
}

type regionRegistry struct{ w *World }

func (r regionRegistry) RegionsAt(pos Vec3i, tags []string) []doorlock.Region {
	ins := r.w.prefabs.At(pos, tags)
	out := make([]doorlock.Region, 0, len(ins))
	for _, in := range ins {
		out = append(out, in)
	}
	return out
}

type tileLookup struct{ w *World }

func (l tileLookup) TileEntityAt(cluster int, pos Vec3i) (doorlock.TileEntity, bool) {
	if cluster != hostCluster {
		return nil, false
	}
	te, ok := l.w.chunks.TileEntityAt(pos)
	if !ok {
		return nil, false
	}
	return te, true
}

// DoorWorld exposes resident chunks to the door-lock reconciler.
func (w *World) DoorWorld() doorlock.World { return doorWorld{w: w} }

// Regions exposes the prefab registry to the door-lock reconciler.
func (w *World) Regions() doorlock.RegionRegistry { return regionRegistry{w: w} }

// InstallDoorPolicy builds a reconciler over this world and subscribes it.
// Call before Run.
func (w *World) InstallDoorPolicy(cfg doorlock.Config) *doorlock.Reconciler {
	r := doorlock.New(w.DoorWorld(), w.Regions(), cfg)
	r.Register(&w.hooks)
	return r
}
