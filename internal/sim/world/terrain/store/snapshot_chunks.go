package store

import (
	"github.com/samber/oops"

	snapv1 "opendoors.ai/internal/persistence/snapshot"
)

// ExportLoadedChunks converts loaded chunk data into snapshot chunks.
// Tile entities are exported by their owners, not here.
func ExportLoadedChunks(chunks map[ChunkKey]*Chunk, keys []ChunkKey) []snapv1.ChunkV1 {
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := chunks[k]
		if ch == nil {
			continue
		}
		blocks := make([]uint16, len(ch.Blocks))
		copy(blocks, ch.Blocks)
		meta := make([]uint8, len(ch.Meta))
		copy(meta, ch.Meta)
		out = append(out, snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: 1,
			Blocks: blocks,
			Meta:   meta,
		})
	}
	return out
}

// ImportChunks rebuilds a chunk store from snapshot chunks.
func ImportChunks(gen WorldGen, chunks []snapv1.ChunkV1) (*ChunkStore, error) {
	store := NewChunkStore(gen)
	for _, ch := range chunks {
		if ch.Height != 1 {
			return nil, oops.Code("SNAPSHOT_CHUNK_INVALID").
				With("cx", ch.CX).With("cz", ch.CZ).
				Errorf("snapshot chunk height mismatch: got %d want 1", ch.Height)
		}
		if len(ch.Blocks) != 16*16 {
			return nil, oops.Code("SNAPSHOT_CHUNK_INVALID").
				With("cx", ch.CX).With("cz", ch.CZ).
				Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), 16*16)
		}
		c := newChunk(ch.CX, ch.CZ)
		copy(c.Blocks, ch.Blocks)
		if ch.Meta != nil {
			if len(ch.Meta) != 16*16 {
				return nil, oops.Code("SNAPSHOT_CHUNK_INVALID").
					With("cx", ch.CX).With("cz", ch.CZ).
					Errorf("snapshot chunk meta length mismatch: got %d want %d", len(ch.Meta), 16*16)
			}
			copy(c.Meta, ch.Meta)
		}
		_ = c.Digest()
		store.Chunks[c.Key()] = c
	}
	return store, nil
}
