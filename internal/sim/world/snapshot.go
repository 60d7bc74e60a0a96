package world

import (
	"github.com/samber/oops"
	"go.uber.org/zap"

	"opendoors.ai/internal/persistence/snapshot"
	"opendoors.ai/internal/sim/doorlock"
	"opendoors.ai/internal/sim/prefab"
	"opendoors.ai/internal/sim/world/logic/mathx"
	"opendoors.ai/internal/sim/world/terrain/store"
)

// ExportSnapshot captures resident chunks and their tile entities. Entities of
// one kind keep their chunk storage order.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	keys := w.chunks.LoadedChunkKeys()
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		BoundaryR: w.cfg.BoundaryR,
		Palette:   w.palette.Names(),
		Chunks:    store.ExportLoadedChunks(w.chunks.Chunks, keys),
	}
	for _, k := range keys {
		ch, _ := w.chunks.LoadedChunk(k)
		for _, te := range ch.TileEntities() {
			switch v := te.(type) {
			case *SecureDoor:
				s.Doors = append(s.Doors, snapshot.DoorV1{Pos: v.Pos.ToArray(), Owner: v.owner, Locked: v.locked})
			case *Container:
				inv := make(map[string]int, len(v.Inventory))
				for item, n := range v.Inventory {
					inv[item] = n
				}
				s.Containers = append(s.Containers, snapshot.ContainerV1{Pos: v.Pos.ToArray(), Inventory: inv})
			}
		}
	}
	for _, sw := range w.sortedSwitches() {
		links := make([][3]int, 0, len(sw.Links))
		for _, l := range sw.Links {
			links = append(links, l.ToArray())
		}
		s.Switches = append(s.Switches, snapshot.SwitchV1{Pos: sw.Pos.ToArray(), On: sw.On, Links: links})
	}
	for _, in := range w.prefabs.All() {
		s.Prefabs = append(s.Prefabs, snapshot.PrefabV1{
			ID:       in.ID(),
			Template: in.Template.Name,
			Origin:   in.Origin.ToArray(),
			Tags:     append([]string(nil), in.Tags...),
		})
	}
	return s
}

// ImportSnapshot replaces the world state. The object-loaded hook fires for
// every tile entity only after the whole snapshot is deserialised.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	// Zero means the snapshot predates the boundary field.
	if s.BoundaryR != 0 && s.BoundaryR != w.cfg.BoundaryR {
		return oops.Code("SNAPSHOT_BOUNDARY_MISMATCH").
			With("cfg", w.cfg.BoundaryR).With("snapshot", s.BoundaryR).
			Errorf("snapshot boundary_r mismatch: cfg=%d snap=%d", w.cfg.BoundaryR, s.BoundaryR)
	}
	remap, err := w.paletteRemap(s.Palette)
	if err != nil {
		return err
	}
	chunks := make([]snapshot.ChunkV1, len(s.Chunks))
	for i, c := range s.Chunks {
		blocks := make([]uint16, len(c.Blocks))
		for j, b := range c.Blocks {
			if int(b) >= len(remap) {
				return oops.Code("SNAPSHOT_CHUNK_INVALID").With("cx", c.CX).With("cz", c.CZ).Errorf("block index %d outside snapshot palette", b)
			}
			blocks[j] = remap[b]
		}
		c.Blocks = blocks
		chunks[i] = c
	}
	cs, err := store.ImportChunks(store.WorldGen{BoundaryR: w.cfg.BoundaryR, Air: w.palette.Air()}, chunks)
	if err != nil {
		return err
	}

	reg := prefab.NewRegistry()
	for _, p := range s.Prefabs {
		tpl, ok := w.cfg.Templates[p.Template]
		if !ok {
			return oops.Code("SNAPSHOT_PREFAB_INVALID").With("prefab", p.ID).Errorf("unknown template %q", p.Template)
		}
		in := &prefab.Instance{InstanceID: p.ID, Template: tpl, Origin: mathx.FromArray(p.Origin), Tags: p.Tags}
		if err := reg.Add(in); err != nil {
			return err
		}
	}

	// Bind entities to the new store before swapping it in so a bad snapshot
	// leaves the current world untouched.
	var loaded []doorlock.TileEntity
	bind := func(pos [3]int, kind string) (*store.Chunk, mathx.Vec3i, error) {
		p := mathx.FromArray(pos)
		if !cs.InBounds(p.X, p.Y, p.Z) {
			return nil, p, oops.Code("SNAPSHOT_ENTITY_INVALID").With("pos", pos).Errorf("%s entity at %v outside world bounds", kind, pos)
		}
		cx, cz, local := mathx.ChunkOf(p)
		ch, ok := cs.LoadedChunk(store.ChunkKey{CX: cx, CZ: cz})
		if !ok || w.palette.Kind(ch.Get(local.X, local.Z)) != kind {
			return nil, p, oops.Code("SNAPSHOT_ENTITY_INVALID").With("pos", pos).Errorf("no %s block under entity at %v", kind, pos)
		}
		return ch, p, nil
	}
	for _, d := range s.Doors {
		ch, p, err := bind(d.Pos, KindSecureDoor)
		if err != nil {
			return err
		}
		door := &SecureDoor{w: w, Pos: p, owner: d.Owner, locked: d.Locked}
		ch.AddTileEntity(door)
		loaded = append(loaded, door)
	}
	for _, c := range s.Containers {
		ch, p, err := bind(c.Pos, KindContainer)
		if err != nil {
			return err
		}
		inv := make(map[string]int, len(c.Inventory))
		for item, n := range c.Inventory {
			inv[item] = n
		}
		box := &Container{Pos: p, Inventory: inv}
		ch.AddTileEntity(box)
		loaded = append(loaded, box)
	}
	switches := make(map[Vec3i]*Switch, len(s.Switches))
	for _, sw := range s.Switches {
		p := mathx.FromArray(sw.Pos)
		links := make([]Vec3i, 0, len(sw.Links))
		for _, l := range sw.Links {
			links = append(links, mathx.FromArray(l))
		}
		for _, v := range append([]Vec3i{p}, links...) {
			if !cs.InBounds(v.X, v.Y, v.Z) {
				return oops.Code("SNAPSHOT_ENTITY_INVALID").With("switch", sw.Pos).Errorf("switch position %v outside world bounds", v)
			}
		}
		switches[p] = &Switch{Pos: p, On: sw.On, Links: links}
	}
	w.chunks = cs
	w.prefabs = reg
	w.switches = switches
	w.tick.Store(s.Header.Tick)

	w.withCause("LOAD", func() {
		for _, te := range loaded {
			w.hooks.ObjectLoaded.Fire(te)
		}
	})
	w.log.Info("snapshot imported",
		zap.Uint64("tick", s.Header.Tick),
		zap.Int("chunks", len(s.Chunks)),
		zap.Int("doors", len(s.Doors)),
		zap.Int("prefabs", len(s.Prefabs)),
	)
	return nil
}

func (w *World) paletteRemap(names []string) ([]uint16, error) {
	if len(names) == 0 {
		names = w.palette.Names()
	}
	remap := make([]uint16, len(names))
	for i, n := range names {
		b, ok := w.palette.Index(n)
		if !ok {
			return nil, oops.Code("SNAPSHOT_PALETTE_MISMATCH").With("block", n).Errorf("snapshot block %q missing from palette", n)
		}
		remap[i] = b
	}
	return remap, nil
}
