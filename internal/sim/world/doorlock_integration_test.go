package world

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opendoors.ai/internal/sim/doorlock"
)

func TestSpawnAppliesPolicyToNewDoors(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))
	assert.Equal(t, CodeBadRequest, ErrorCode(f.w.SpawnPrefab("poi_1", "vault", Vec3i{X: 64}, nil)))
	assert.Equal(t, CodeNotFound, ErrorCode(f.w.SpawnPrefab("poi_2", "missing", Vec3i{X: 64}, nil)))

	d := f.door(t, vaultDoor)
	assert.True(t, d.Locked, "closed template-locked door starts locked")
	assert.False(t, d.Open)

	h := f.door(t, vaultHatch)
	assert.True(t, h.Open)
	assert.False(t, h.Locked, "open unowned hatch is unlocked on load")

	assert.False(t, f.door(t, vaultGate).Locked)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Unlocks.WithLabelValues(doorlock.HookObjectLoaded)))
}

func TestSwitchOpenUnlocksLockedClosedDoor(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))
	require.True(t, f.door(t, vaultDoor).Locked)

	on, err := f.w.TriggerSwitch(vaultLever)
	require.NoError(t, err)
	assert.True(t, on)

	d := f.door(t, vaultDoor)
	assert.True(t, d.Open)
	assert.False(t, d.Locked)

	// Closing again leaves the door unlocked; nothing relocks it.
	on, err = f.w.TriggerSwitch(vaultLever)
	require.NoError(t, err)
	assert.False(t, on)
	d = f.door(t, vaultDoor)
	assert.False(t, d.Open)
	assert.False(t, d.Locked)

	locks := f.audits.actions("DOOR_LOCK")
	require.NotEmpty(t, locks)
	last := locks[len(locks)-1]
	assert.Equal(t, "SWITCH", last.Reason)
	assert.Equal(t, false, last.Details["locked"])
	assert.Len(t, last.ID, 26)

	_, err = f.w.TriggerSwitch(Vec3i{X: 9, Z: 9})
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestResetRestoresTemplateLockOnClosedDoor(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	locked, err := f.w.SetDoorLocked("p1", vaultDoor, false)
	require.NoError(t, err)
	require.False(t, locked)

	require.NoError(t, f.w.ResetPrefab("poi_1"))
	assert.True(t, f.door(t, vaultDoor).Locked)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ResetRemoved))
}

func TestResetWithoutRemovalKeepsStaleLockState(t *testing.T) {
	f := newFixture(t, doorlock.Config{DisableRemoveOnReset: true})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	_, err := f.w.SetDoorLocked("p1", vaultDoor, false)
	require.NoError(t, err)

	require.NoError(t, f.w.ResetPrefab("poi_1"))
	assert.False(t, f.door(t, vaultDoor).Locked, "the kept entity carries its old flag through the rebuild")
}

func TestResetNeverLeavesOpenUnownedDoorLocked(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	require.NoError(t, f.w.ResetPrefab("poi_1"))
	h := f.door(t, vaultHatch)
	assert.True(t, h.Open)
	assert.True(t, h.TemplateLocked)
	assert.False(t, h.Locked)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Unlocks.WithLabelValues(doorlock.HookRegionResetEnd)))

	assert.Equal(t, CodeNotFound, ErrorCode(f.w.ResetPrefab("nope")))
}

func TestQuestRelockOverridesOpenState(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))
	require.NoError(t, f.w.SpawnPrefab("poi_far", "vault", Vec3i{X: 100}, nil))

	ids := f.w.StartQuest(Vec3i{X: 1, Z: 1}, []string{"clear"})
	assert.Equal(t, []string{"poi_1"}, ids)

	h := f.door(t, vaultHatch)
	assert.True(t, h.Open)
	assert.True(t, h.Locked, "relock restores the template lock on an open door")
	assert.True(t, f.door(t, vaultDoor).Locked)
	assert.False(t, f.door(t, vaultGate).Locked, "template default unlocked stays unlocked")

	_, err := f.w.ActivateDoor("p1", vaultHatch)
	assert.Equal(t, CodeLocked, ErrorCode(err))

	// The far instance was not part of the quest.
	assert.False(t, f.door(t, Vec3i{X: 102}).Locked)

	// Outside the quest the veto applies again.
	locked, err := f.w.SetDoorLocked("p1", vaultGate, true)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestQuestWithUnmatchedTagsOnlyFiresRelock(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	ids := f.w.StartQuest(Vec3i{X: 1}, []string{"fetch"})
	assert.Empty(t, ids)
	assert.False(t, f.door(t, vaultHatch).Locked)
	assert.Len(t, f.audits.actions("QUEST_START"), 1)
}

func TestLockRequestsGoThroughVeto(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	locked, err := f.w.SetDoorLocked("p1", vaultGate, true)
	require.NoError(t, err)
	assert.False(t, locked, "open unowned gate refuses the lock")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Vetoes))

	locked, err = f.w.SetDoorLocked("p1", vaultDoor, false)
	require.NoError(t, err)
	assert.False(t, locked)
	locked, err = f.w.SetDoorLocked("p1", vaultDoor, true)
	require.NoError(t, err)
	assert.True(t, locked, "closed doors may be locked")

	_, err = f.w.SetDoorLocked("p1", vaultChest, true)
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestOwnedDoorsAreExempt(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))
	require.NoError(t, f.w.ClaimDoor(vaultDoor, "p1"))

	_, err := f.w.SetDoorLocked("p2", vaultDoor, false)
	assert.Equal(t, CodeForbidden, ErrorCode(err))

	_, err = f.w.ActivateDoor("p2", vaultDoor)
	assert.Equal(t, CodeLocked, ErrorCode(err))

	open, err := f.w.ActivateDoor("p1", vaultDoor)
	require.NoError(t, err)
	assert.True(t, open)
	assert.True(t, f.door(t, vaultDoor).Locked, "owner opened a locked door; the policy leaves it alone")

	// The switch opens it too, still without touching the lock.
	_, err = f.w.TriggerSwitch(vaultLever)
	require.NoError(t, err)
	assert.True(t, f.door(t, vaultDoor).Locked)

	// Releasing an open locked door resubmits the flag through the veto.
	require.NoError(t, f.w.ClaimDoor(vaultDoor, ""))
	d := f.door(t, vaultDoor)
	assert.Empty(t, d.Owner)
	assert.False(t, d.Locked)
	assert.Len(t, f.audits.actions("DOOR_CLAIM"), 2)
}

func TestPlaceSecureDoorFiresObjectLoaded(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	pos := Vec3i{X: -20, Z: 7}

	require.NoError(t, f.w.PlaceSecureDoor(pos, "GATE_SECURE", doorlock.MetaOpen|doorlock.MetaTemplateLocked, ""))
	d := f.door(t, pos)
	assert.Equal(t, "GATE_SECURE", d.Block)
	assert.False(t, d.Locked)

	require.NoError(t, f.w.PlaceSecureDoor(pos.Add(Vec3i{X: 1}), "DOOR_SECURE", doorlock.MetaOpen|doorlock.MetaTemplateLocked, "p1"))
	assert.True(t, f.door(t, pos.Add(Vec3i{X: 1})).Locked)

	assert.Equal(t, CodeBadRequest, ErrorCode(f.w.PlaceSecureDoor(pos, "STONE", 0, "")))
	assert.Equal(t, CodeBadRequest, ErrorCode(f.w.PlaceSecureDoor(pos, "NOPE", 0, "")))
	assert.Equal(t, CodeBadRequest, ErrorCode(f.w.PlaceSecureDoor(Vec3i{X: 1000}, "DOOR_SECURE", 0, "")))
	assert.Equal(t, CodeBadRequest, ErrorCode(f.w.PlaceContainer(pos, "DOOR_SECURE")))
	require.NoError(t, f.w.PlaceContainer(Vec3i{X: -30}, "CHEST"))

	assert.Len(t, f.w.Doors(), 2)
}

func TestReassertOnChangedHostLoopTerminates(t *testing.T) {
	f := newFixture(t, doorlock.Config{ReassertOnChanged: true})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	_, err := f.w.TriggerSwitch(vaultLever)
	require.NoError(t, err)
	assert.False(t, f.door(t, vaultDoor).Locked)

	f.w.StartQuest(Vec3i{}, nil)
	assert.True(t, f.door(t, vaultHatch).Locked, "post-change reassert stays out of the relock")
}

func TestResetRestoresDoorsSharingItsChunks(t *testing.T) {
	f := newFixture(t, doorlock.Config{})
	require.NoError(t, f.w.SpawnPrefab("poi_1", "vault", Vec3i{}, nil))

	owned := Vec3i{X: 14, Z: 14}
	require.NoError(t, f.w.PlaceSecureDoor(owned, "DOOR_SECURE", 0, "p1"))
	locked, err := f.w.SetDoorLocked("p1", owned, true)
	require.NoError(t, err)
	require.True(t, locked)

	gate := Vec3i{X: 12, Z: 10}
	require.NoError(t, f.w.PlaceSecureDoor(gate, "GATE_SECURE", doorlock.MetaOpen|doorlock.MetaTemplateLocked, ""))

	require.NoError(t, f.w.ResetPrefab("poi_1"))

	d := f.door(t, owned)
	assert.Equal(t, "p1", d.Owner)
	assert.True(t, d.Locked)
	assert.False(t, d.Open)

	g := f.door(t, gate)
	assert.Equal(t, "GATE_SECURE", g.Block)
	assert.True(t, g.Open)
	assert.False(t, g.Locked)

	// Footprint doors were still recreated from the template.
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.ResetRemoved))
	assert.True(t, f.door(t, vaultDoor).Locked)
	assert.Len(t, f.audits.actions("DOOR_RESTORE"), 2)
	assert.Len(t, f.w.Doors(), 5)
}
