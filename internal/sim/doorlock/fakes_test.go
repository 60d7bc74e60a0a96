package doorlock

import (
	"opendoors.ai/internal/sim/hooks"
	"opendoors.ai/internal/sim/world/logic/mathx"
)

type fakeDoor struct {
	pos    mathx.Vec3i
	owner  string
	locked bool
	meta   uint8
	sets   int

	host *fakeHost
}

func (d *fakeDoor) LocalPos() mathx.Vec3i { return d.pos }
func (d *fakeDoor) Owner() string         { return d.owner }
func (d *fakeDoor) IsLocked() bool        { return d.locked }
func (d *fakeDoor) BlockMeta() uint8      { return d.meta }

func (d *fakeDoor) SetLocked(locked bool) {
	if d.host != nil {
		locked = d.host.changing.Apply(d, locked)
	}
	d.sets++
	d.locked = locked
	if d.host != nil {
		d.host.changed.Fire(d)
	}
}

type fakeContainer struct {
	pos mathx.Vec3i
}

func (c *fakeContainer) LocalPos() mathx.Vec3i { return c.pos }

type fakeChunk struct {
	entries    []TileEntity
	teBlocks   map[mathx.Vec3i]bool
	clearCalls []mathx.Vec3i
}

func newFakeChunk(entries ...TileEntity) *fakeChunk {
	ch := &fakeChunk{teBlocks: map[mathx.Vec3i]bool{}}
	for _, te := range entries {
		ch.entries = append(ch.entries, te)
		ch.teBlocks[te.LocalPos()] = true
	}
	return ch
}

func (c *fakeChunk) TileEntityCount() int          { return len(c.entries) }
func (c *fakeChunk) TileEntityAt(i int) TileEntity { return c.entries[i] }

func (c *fakeChunk) HasTileEntityBlock(local mathx.Vec3i) bool { return c.teBlocks[local] }

func (c *fakeChunk) ClearBlock(local mathx.Vec3i) {
	c.clearCalls = append(c.clearCalls, local)
	delete(c.teBlocks, local)
	for i, te := range c.entries {
		if te.LocalPos() == local {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

type fakeWorld struct {
	chunks map[int64]*fakeChunk
	byPos  map[mathx.Vec3i]TileEntity
}

func (w *fakeWorld) LoadedChunk(id int64) (Chunk, bool) {
	ch, ok := w.chunks[id]
	if !ok {
		return nil, false
	}
	return ch, true
}

func (w *fakeWorld) TileEntityAt(cluster int, pos mathx.Vec3i) (TileEntity, bool) {
	if cluster != 0 {
		return nil, false
	}
	te, ok := w.byPos[pos]
	return te, ok
}

type fakeRegion struct {
	id     string
	chunks []int64
}

func (r *fakeRegion) ID() string              { return r.id }
func (r *fakeRegion) OccupiedChunks() []int64 { return r.chunks }

type fakeRegistry struct {
	regions []Region

	gotPos  mathx.Vec3i
	gotTags []string
}

func (f *fakeRegistry) RegionsAt(pos mathx.Vec3i, tags []string) []Region {
	f.gotPos = pos
	f.gotTags = tags
	return f.regions
}

type switchEvent struct {
	lookup  TileEntityLookup
	cluster int
	pos     mathx.Vec3i
	meta    uint8
}

type relockEvent struct {
	pos  mathx.Vec3i
	tags []string
}

// fakeHost exposes hook subscriptions the way a host world does.
type fakeHost struct {
	loaded     hooks.Hook[TileEntity]
	changing   hooks.Filter[SecureOpenable, bool]
	changed    hooks.Hook[SecureOpenable]
	triggered  hooks.Hook[switchEvent]
	resetBegin hooks.Hook[Region]
	resetEnd   hooks.Hook[Region]
	relock     hooks.Hook[relockEvent]
}

func (h *fakeHost) OnObjectLoaded(fn func(te TileEntity)) { h.loaded.Subscribe(fn) }

func (h *fakeHost) OnLockStateChanging(fn func(obj SecureOpenable, requested bool) bool) {
	h.changing.Subscribe(fn)
}

func (h *fakeHost) OnLockStateChanged(fn func(obj SecureOpenable)) { h.changed.Subscribe(fn) }

func (h *fakeHost) OnTriggeredBySwitch(fn func(lookup TileEntityLookup, cluster int, pos mathx.Vec3i, meta uint8)) {
	h.triggered.Subscribe(func(e switchEvent) { fn(e.lookup, e.cluster, e.pos, e.meta) })
}

func (h *fakeHost) OnRegionResetBegin(fn func(region Region)) { h.resetBegin.Subscribe(fn) }
func (h *fakeHost) OnRegionResetEnd(fn func(region Region))   { h.resetEnd.Subscribe(fn) }

func (h *fakeHost) OnQuestRelock(fn func(pos mathx.Vec3i, tags []string)) {
	h.relock.Subscribe(func(e relockEvent) { fn(e.pos, e.tags) })
}
