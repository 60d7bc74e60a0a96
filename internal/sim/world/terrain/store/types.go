package store

import (
	"crypto/sha256"
	"encoding/binary"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

type ChunkKey struct {
	CX int
	CZ int
}

func (k ChunkKey) ID() int64 { return mathx.ChunkID(k.CX, k.CZ) }

func KeyFromID(id int64) ChunkKey {
	cx, cz := mathx.SplitChunkID(id)
	return ChunkKey{CX: cx, CZ: cz}
}

// TileEntity is an object bound to one block of a chunk.
type TileEntity interface {
	LocalPos() mathx.Vec3i
}

type Chunk struct {
	CX, CZ int
	Blocks []uint16 // len = 16*16 (pure 2D world)
	Meta   []uint8  // per-block state encoding, same layout as Blocks

	// Tile entities in storage order. Removal shifts later entries down.
	tiles []TileEntity

	dirty bool
	hash  [32]byte
}

func newChunk(cx, cz int) *Chunk {
	return &Chunk{
		CX:     cx,
		CZ:     cz,
		Blocks: make([]uint16, 16*16),
		Meta:   make([]uint8, 16*16),
	}
}

func (c *Chunk) Key() ChunkKey { return ChunkKey{CX: c.CX, CZ: c.CZ} }

func (c *Chunk) index(x, z int) int {
	return x + z*16
}

func (c *Chunk) Get(x, z int) uint16 {
	return c.Blocks[c.index(x, z)]
}

func (c *Chunk) GetMeta(x, z int) uint8 {
	return c.Meta[c.index(x, z)]
}

// Set writes a block and its meta. Replacing the block type drops the tile
// entity bound to that position.
func (c *Chunk) Set(x, z int, b uint16, meta uint8) {
	i := c.index(x, z)
	if c.Blocks[i] == b && c.Meta[i] == meta {
		return
	}
	if c.Blocks[i] != b {
		c.RemoveTileEntity(mathx.Vec3i{X: x, Z: z})
	}
	c.Blocks[i] = b
	c.Meta[i] = meta
	c.dirty = true
}

func (c *Chunk) SetMeta(x, z int, meta uint8) {
	i := c.index(x, z)
	if c.Meta[i] == meta {
		return
	}
	c.Meta[i] = meta
	c.dirty = true
}

func (c *Chunk) TileEntityCount() int { return len(c.tiles) }

func (c *Chunk) TileEntityAt(i int) TileEntity { return c.tiles[i] }

// TileEntities returns the live list. Callers must not append to it.
func (c *Chunk) TileEntities() []TileEntity { return c.tiles }

func (c *Chunk) TileEntityAtPos(local mathx.Vec3i) (TileEntity, bool) {
	for _, te := range c.tiles {
		if te.LocalPos() == local {
			return te, true
		}
	}
	return nil, false
}

// AddTileEntity binds te to its local position, replacing any entity already
// bound there.
func (c *Chunk) AddTileEntity(te TileEntity) {
	c.RemoveTileEntity(te.LocalPos())
	c.tiles = append(c.tiles, te)
}

// RemoveTileEntity unbinds the entity at local, shifting later entries down
// in place.
func (c *Chunk) RemoveTileEntity(local mathx.Vec3i) (TileEntity, bool) {
	for i, te := range c.tiles {
		if te.LocalPos() != local {
			continue
		}
		copy(c.tiles[i:], c.tiles[i+1:])
		c.tiles[len(c.tiles)-1] = nil
		c.tiles = c.tiles[:len(c.tiles)-1]
		return te, true
	}
	return nil, false
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		h.Write(c.Meta)
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	BoundaryR int // blocks

	Air uint16
}

type ChunkStore struct {
	Gen    WorldGen
	Chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		Gen:    gen,
		Chunks: map[ChunkKey]*Chunk{},
	}
}
