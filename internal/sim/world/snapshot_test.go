package world

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"opendoors.ai/internal/persistence/snapshot"
	"opendoors.ai/internal/sim/doorlock"
)

func loadedDoorSnapshot(t *testing.T, w *World) snapshot.SnapshotV1 {
	t.Helper()
	door, ok := w.Palette().Index("DOOR_SECURE")
	require.True(t, ok)

	blocks := make([]uint16, 256)
	meta := make([]uint8, 256)
	// (2,0,3) and (4,0,3) in chunk 0,0.
	blocks[2+3*16], meta[2+3*16] = door, doorlock.MetaOpen
	blocks[4+3*16], meta[4+3*16] = door, doorlock.MetaOpen
	return snapshot.SnapshotV1{
		Header:  snapshot.Header{Version: snapshot.Version, WorldID: "test", Tick: 42},
		Palette: w.Palette().Names(),
		Chunks:  []snapshot.ChunkV1{{CX: 0, CZ: 0, Height: 1, Blocks: blocks, Meta: meta}},
		Doors: []snapshot.DoorV1{
			{Pos: [3]int{2, 0, 3}, Locked: true},
			{Pos: [3]int{4, 0, 3}, Locked: true, Owner: "p1"},
		},
	}
}

func TestImportFiresObjectLoadedAfterFullLoad(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	var seen []int
	f.w.Hooks().ObjectLoaded.Subscribe(func(doorlock.TileEntity) {
		seen = append(seen, len(f.w.Doors()))
	})

	require.NoError(t, f.w.ImportSnapshot(loadedDoorSnapshot(t, f.w)))

	assert.Equal(t, []int{2, 2}, seen, "every entity is resident before the first hook fires")
	assert.Equal(t, uint64(42), f.w.CurrentTick())

	d := f.door(t, Vec3i{X: 2, Z: 3})
	assert.True(t, d.Open)
	assert.False(t, d.Locked, "open unowned door loaded locked is unlocked")
	assert.True(t, f.door(t, Vec3i{X: 4, Z: 3}).Locked, "owned door keeps its lock")

	for _, e := range f.audits.actions("DOOR_LOCK") {
		assert.Equal(t, "LOAD", e.Reason)
	}
}

func TestImportRejectsEntityWithoutBlock(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	bad := loadedDoorSnapshot(t, f.w)
	bad.Doors = append(bad.Doors, snapshot.DoorV1{Pos: [3]int{9, 0, 9}})
	assert.Error(t, f.w.ImportSnapshot(bad))

	bad = loadedDoorSnapshot(t, f.w)
	bad.Palette = append([]string{"LAVA"}, bad.Palette...)
	assert.Error(t, f.w.ImportSnapshot(bad))

	bad = loadedDoorSnapshot(t, f.w)
	bad.Prefabs = []snapshot.PrefabV1{{ID: "x", Template: "missing"}}
	assert.Error(t, f.w.ImportSnapshot(bad))

	// The failed imports left the spawned vault in place.
	assert.Len(t, f.w.Doors(), 3)
	assert.Len(t, f.w.Prefabs(), 1)
}

func TestSnapshotRoundTripThroughFile(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{X: -8, Z: 30}, []string{"fetch"}))
	require.NoError(t, f.w.ClaimDoor(Vec3i{X: -7, Z: 30}, "p1"))
	_, err := f.w.TriggerSwitch(Vec3i{X: -3, Z: 31})
	require.NoError(t, err)

	want := f.w.ExportSnapshot()
	path := t.TempDir() + "/snap.zst"
	require.NoError(t, snapshot.WriteSnapshot(path, want))
	read, err := snapshot.ReadSnapshot(path)
	require.NoError(t, err)

	g := newFixture(t, doorlock.Config{})
	require.NoError(t, g.w.ImportSnapshot(read))

	assert.Equal(t, f.w.Doors(), g.w.Doors())
	got := g.w.ExportSnapshot()
	assert.Equal(t, want.Chunks, got.Chunks)
	assert.Equal(t, want.Switches, got.Switches)
	assert.Equal(t, want.Prefabs, got.Prefabs)
	assert.Equal(t, want.Containers, got.Containers)

	// The restored instance still resets.
	assert.Equal(t, []string{"poi_1"}, g.w.StartQuest(Vec3i{X: -8, Z: 30}, []string{"fetch"}))
}

func TestRunExecutesDoAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, doorlock.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- f.w.Run(ctx) }()

	var info DoorInfo
	require.NoError(t, f.w.Do(ctx, func() {
		assert.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))
		info, _ = f.w.DoorState(vaultHatch)
	}))
	assert.True(t, info.Open)
	assert.False(t, info.Locked)

	f.w.Stop()
	f.w.Stop()
	require.NoError(t, <-errc)
	assert.ErrorIs(t, f.w.Do(context.Background(), func() {}), ErrStopped)
}

func TestImportRejectsOutOfBoundsSnapshot(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	bad := loadedDoorSnapshot(t, f.w)
	bad.BoundaryR = 64
	err := f.w.ImportSnapshot(bad)
	assert.Equal(t, "SNAPSHOT_BOUNDARY_MISMATCH", ErrorCode(err))

	// A door block beyond the boundary, in a chunk the snapshot does carry.
	door, _ := f.w.Palette().Index("DOOR_SECURE")
	blocks := make([]uint16, 256)
	blocks[12+3*16] = door
	bad = loadedDoorSnapshot(t, f.w)
	bad.BoundaryR = 256
	bad.Chunks = append(bad.Chunks, snapshot.ChunkV1{CX: 18, CZ: 0, Height: 1, Blocks: blocks, Meta: make([]uint8, 256)})
	bad.Doors = append(bad.Doors, snapshot.DoorV1{Pos: [3]int{300, 0, 3}})
	err = f.w.ImportSnapshot(bad)
	assert.Equal(t, "SNAPSHOT_ENTITY_INVALID", ErrorCode(err))
	assert.ErrorContains(t, err, "outside world bounds")

	bad = loadedDoorSnapshot(t, f.w)
	bad.Doors[0].Pos = [3]int{2, 1, 3}
	assert.ErrorContains(t, f.w.ImportSnapshot(bad), "outside world bounds")

	bad = loadedDoorSnapshot(t, f.w)
	bad.Switches = []snapshot.SwitchV1{{Pos: [3]int{1, 0, 1}, Links: [][3]int{{0, 0, 900}}}}
	err = f.w.ImportSnapshot(bad)
	assert.Equal(t, "SNAPSHOT_ENTITY_INVALID", ErrorCode(err))

	assert.Len(t, f.w.Doors(), 3)
	assert.Len(t, f.w.Prefabs(), 1)

	// Matching or unrecorded boundaries import.
	ok := loadedDoorSnapshot(t, f.w)
	ok.BoundaryR = 256
	require.NoError(t, f.w.ImportSnapshot(ok))
	assert.Len(t, f.w.Doors(), 2)
}
