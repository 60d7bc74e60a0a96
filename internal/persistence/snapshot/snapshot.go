package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/samber/oops"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	BoundaryR int `json:"boundary_r"`

	// Block palette the chunk data was written with, by index.
	Palette []string `json:"palette"`

	Chunks     []ChunkV1     `json:"chunks"`
	Doors      []DoorV1      `json:"doors"`
	Containers []ContainerV1 `json:"containers,omitempty"`
	Switches   []SwitchV1    `json:"switches,omitempty"`
	Prefabs    []PrefabV1    `json:"prefabs,omitempty"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CZ     int      `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
	Meta   []uint8  `json:"meta,omitempty"`
}

type DoorV1 struct {
	Pos    [3]int `json:"pos"`
	Owner  string `json:"owner,omitempty"`
	Locked bool   `json:"locked"`
}

type ContainerV1 struct {
	Pos       [3]int         `json:"pos"`
	Inventory map[string]int `json:"inventory,omitempty"`
}

type SwitchV1 struct {
	Pos   [3]int   `json:"pos"`
	On    bool     `json:"on"`
	Links [][3]int `json:"links,omitempty"`
}

type PrefabV1 struct {
	ID       string   `json:"id"`
	Template string   `json:"template"`
	Origin   [3]int   `json:"origin"`
	Tags     []string `json:"tags,omitempty"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, all inside one zstd stream.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return oops.With("path", path).Wrap(err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return oops.With("path", path).Wrap(err)
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return oops.Code("SNAPSHOT_ENCODE_FAILED").With("path", path).Wrapf(err, "gob encode")
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return oops.With("path", path).Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, oops.With("path", path).Wrap(err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, oops.With("path", path).Wrap(err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, oops.Code("SNAPSHOT_DECODE_FAILED").With("path", path).Wrapf(err, "gob decode")
	}
	if snap.Header.Version != Version {
		return snap, oops.Code("SNAPSHOT_VERSION_UNSUPPORTED").
			With("path", path).
			Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
