// Package doorlock keeps the effective lock flag of secure doors, hatches and
// gates consistent with their physical open/closed state and their ownership.
//
// The policy: an unowned secure object that is open is never locked. Owned
// objects are exempt. The Reconciler subscribes to host lifecycle hooks and
// funnels every one of them into the same idempotent rule, so whichever subset
// of hooks fires and in whatever order, the lock flag converges to the value
// the rule would produce once all physical changes have settled.
//
// The package only depends on the narrow host contract declared here; the host
// world, its chunk storage and its region registry are injected.
package doorlock

import "opendoors.ai/internal/sim/world/logic/mathx"

const (
	// MetaOpen is the physical-state bit of a door block's meta.
	MetaOpen uint8 = 1
	// MetaTemplateLocked is the template default lock bit of a door block's meta.
	MetaTemplateLocked uint8 = 4
)

// IsOpen decodes the physical open/closed state from a door block's meta.
func IsOpen(meta uint8) bool { return meta&MetaOpen != 0 }

// TemplateDefaultLocked decodes the lock state the object's template declares.
func TemplateDefaultLocked(meta uint8) bool { return meta&MetaTemplateLocked != 0 }

// SecureOpenable is the capability of a lockable, openable object.
type SecureOpenable interface {
	// Owner returns "" when the object is unowned.
	Owner() string
	IsLocked() bool
	SetLocked(locked bool)
	// BlockMeta returns the encoded physical state of the backing block.
	BlockMeta() uint8
}

// TileEntity is any object stored in a chunk's tile entity list.
type TileEntity interface {
	LocalPos() mathx.Vec3i
}

// Chunk is a loaded storage chunk. Tile entities are indexed in storage order
// and ClearBlock mutates that order in place.
type Chunk interface {
	TileEntityCount() int
	TileEntityAt(i int) TileEntity
	HasTileEntityBlock(local mathx.Vec3i) bool
	// ClearBlock replaces the block with air, removing its tile entity.
	ClearBlock(local mathx.Vec3i)
}

// World resolves chunk ids to chunks that are currently resident.
type World interface {
	LoadedChunk(id int64) (Chunk, bool)
}

// TileEntityLookup resolves a world position within a chunk cluster.
type TileEntityLookup interface {
	TileEntityAt(cluster int, pos mathx.Vec3i) (TileEntity, bool)
}

// Region is an instantiated prefab (quest POI, dungeon, building).
type Region interface {
	ID() string
	OccupiedChunks() []int64
}

// RegionRegistry finds instantiated regions at a position. Bounds and tag
// matching rules belong to the host.
type RegionRegistry interface {
	RegionsAt(pos mathx.Vec3i, tags []string) []Region
}

// Hooks is the set of lifecycle hooks a host exposes for subscription.
type Hooks interface {
	OnObjectLoaded(fn func(te TileEntity))
	OnLockStateChanging(fn func(obj SecureOpenable, requested bool) bool)
	OnLockStateChanged(fn func(obj SecureOpenable))
	OnTriggeredBySwitch(fn func(lookup TileEntityLookup, cluster int, pos mathx.Vec3i, meta uint8))
	OnRegionResetBegin(fn func(region Region))
	OnRegionResetEnd(fn func(region Region))
	OnQuestRelock(fn func(pos mathx.Vec3i, tags []string))
}
