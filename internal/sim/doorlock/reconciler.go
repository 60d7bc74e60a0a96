package doorlock

import (
	"go.uber.org/zap"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

// Hook names used for logging and metrics labels.
const (
	HookObjectLoaded      = "object_loaded"
	HookLockStateChanging = "lock_state_changing"
	HookLockStateChanged  = "lock_state_changed"
	HookTriggeredBySwitch = "triggered_by_switch"
	HookRegionResetBegin  = "region_reset_begin"
	HookRegionResetEnd    = "region_reset_end"
	HookQuestRelock       = "quest_relock"
)

type Config struct {
	// ReassertOnChanged re-runs the rule after every lock change. The veto at
	// the pre-change hook already enforces the policy, so this is off by default.
	ReassertOnChanged bool
	// DisableRemoveOnReset keeps secure objects in place when a region rebuild
	// begins. Rebuilt regions then keep whatever lock state the stale objects had.
	DisableRemoveOnReset bool
	// DisableReconcileOnReset skips the rule pass after a region rebuild.
	DisableReconcileOnReset bool

	Logger  *zap.Logger
	Metrics *Metrics
}

// Reconciler applies the policy from host hooks. It carries no per-object
// state; the only field that changes at runtime is the relock depth, which
// suspends the pre-change veto while template defaults are being restored.
// Not safe for concurrent use: every hook must fire on the simulation goroutine.
type Reconciler struct {
	world   World
	regions RegionRegistry
	cfg     Config
	log     *zap.Logger
	metrics *Metrics

	relocking int
}

func New(world World, regions RegionRegistry, cfg Config) *Reconciler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		world:   world,
		regions: regions,
		cfg:     cfg,
		log:     log.Named("doorlock"),
		metrics: cfg.Metrics,
	}
}

// Register subscribes the reconciler's listeners on the host hooks.
func (r *Reconciler) Register(h Hooks) {
	h.OnObjectLoaded(r.OnObjectLoaded)
	h.OnLockStateChanging(r.OnLockStateChanging)
	h.OnLockStateChanged(r.OnLockStateChanged)
	h.OnTriggeredBySwitch(r.OnTriggeredBySwitch)
	h.OnRegionResetBegin(r.OnRegionResetBegin)
	h.OnRegionResetEnd(r.OnRegionResetEnd)
	h.OnQuestRelock(r.OnQuestRelock)
	r.log.Info("door lock policy registered",
		zap.Bool("reassert_on_changed", r.cfg.ReassertOnChanged),
		zap.Bool("remove_on_reset", !r.cfg.DisableRemoveOnReset),
		zap.Bool("reconcile_on_reset", !r.cfg.DisableReconcileOnReset),
	)
}

func (r *Reconciler) reconcile(obj SecureOpenable, hook string) bool {
	if !Reconcile(obj) {
		return false
	}
	r.metrics.unlock(hook)
	if te, ok := obj.(TileEntity); ok {
		r.log.Debug("unlocked open door", zap.String("hook", hook), zap.Any("local_pos", te.LocalPos()))
	} else {
		r.log.Debug("unlocked open door", zap.String("hook", hook))
	}
	return true
}

// OnObjectLoaded fires once an object has finished deserializing.
func (r *Reconciler) OnObjectLoaded(te TileEntity) {
	obj, ok := te.(SecureOpenable)
	if !ok {
		return
	}
	r.reconcile(obj, HookObjectLoaded)
}

// OnLockStateChanging returns the lock value the host should apply instead of
// requested. It never calls back into the setter.
func (r *Reconciler) OnLockStateChanging(obj SecureOpenable, requested bool) bool {
	if r.relocking > 0 {
		return requested
	}
	applied := Veto(obj, requested)
	if applied != requested {
		r.metrics.veto()
		r.log.Debug("vetoed lock of open door")
	}
	return applied
}

// OnLockStateChanged optionally reasserts the rule after a lock change.
func (r *Reconciler) OnLockStateChanged(obj SecureOpenable) {
	if !r.cfg.ReassertOnChanged || r.relocking > 0 {
		return
	}
	r.reconcile(obj, HookLockStateChanged)
}

// OnTriggeredBySwitch runs after a key or switch changed the physical state
// of the block at pos. meta is the block's new encoded state.
func (r *Reconciler) OnTriggeredBySwitch(lookup TileEntityLookup, cluster int, pos mathx.Vec3i, meta uint8) {
	if !IsOpen(meta) || lookup == nil {
		return
	}
	te, ok := lookup.TileEntityAt(cluster, pos)
	if !ok {
		return
	}
	obj, ok := te.(SecureOpenable)
	if !ok {
		return
	}
	// The trigger's meta decides; the entity's own meta may not have caught up.
	if obj.Owner() != "" || !obj.IsLocked() {
		return
	}
	obj.SetLocked(false)
	if obj.IsLocked() {
		return
	}
	r.metrics.unlock(HookTriggeredBySwitch)
	r.log.Debug("unlocked open door", zap.String("hook", HookTriggeredBySwitch), zap.Any("local_pos", te.LocalPos()))
}

func (r *Reconciler) OnRegionResetBegin(region Region) {
	if r.cfg.DisableRemoveOnReset {
		return
	}
	r.PrepareReset(region)
}

func (r *Reconciler) OnRegionResetEnd(region Region) {
	if r.cfg.DisableReconcileOnReset {
		return
	}
	r.FinalizeReset(region)
}

func (r *Reconciler) OnQuestRelock(pos mathx.Vec3i, tags []string) {
	r.QuestRelock(pos, tags)
}
