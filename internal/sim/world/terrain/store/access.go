package store

import (
	"sort"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

func (s *ChunkStore) InBounds(x, y, z int) bool {
	if y != 0 {
		return false
	}
	if s.Gen.BoundaryR > 0 {
		if x < -s.Gen.BoundaryR || x > s.Gen.BoundaryR || z < -s.Gen.BoundaryR || z > s.Gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

// LoadedChunk returns a resident chunk without generating it.
func (s *ChunkStore) LoadedChunk(k ChunkKey) (*Chunk, bool) {
	ch, ok := s.Chunks[k]
	return ch, ok
}

func (s *ChunkStore) UnloadChunk(k ChunkKey) {
	delete(s.Chunks, k)
}

func (s *ChunkStore) GetBlock(pos mathx.Vec3i) (uint16, uint8) {
	if !s.InBounds(pos.X, pos.Y, pos.Z) {
		return s.Gen.Air, 0
	}
	cx, cz, local := mathx.ChunkOf(pos)
	ch := s.GetOrGenChunk(cx, cz)
	return ch.Get(local.X, local.Z), ch.GetMeta(local.X, local.Z)
}

func (s *ChunkStore) SetBlock(pos mathx.Vec3i, b uint16, meta uint8) {
	if !s.InBounds(pos.X, pos.Y, pos.Z) {
		return
	}
	cx, cz, local := mathx.ChunkOf(pos)
	ch := s.GetOrGenChunk(cx, cz)
	ch.Set(local.X, local.Z, b, meta)
}

func (s *ChunkStore) SetMeta(pos mathx.Vec3i, meta uint8) {
	if !s.InBounds(pos.X, pos.Y, pos.Z) {
		return
	}
	cx, cz, local := mathx.ChunkOf(pos)
	s.GetOrGenChunk(cx, cz).SetMeta(local.X, local.Z, meta)
}

// TileEntityAt resolves a tile entity by world position in a resident chunk.
func (s *ChunkStore) TileEntityAt(pos mathx.Vec3i) (TileEntity, bool) {
	cx, cz, local := mathx.ChunkOf(pos)
	ch, ok := s.Chunks[ChunkKey{CX: cx, CZ: cz}]
	if !ok {
		return nil, false
	}
	return ch.TileEntityAtPos(local)
}

func (s *ChunkStore) GetOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.Chunks[k]; ok {
		return ch
	}
	ch := newChunk(cx, cz)
	s.GenerateChunk(ch)
	ch.dirty = true
	_ = ch.Digest()
	s.Chunks[k] = ch
	return ch
}

// GenerateChunk fills a fresh chunk with air; structures come from prefabs.
func (s *ChunkStore) GenerateChunk(ch *Chunk) {
	for i := range ch.Blocks {
		ch.Blocks[i] = s.Gen.Air
		ch.Meta[i] = 0
	}
}
