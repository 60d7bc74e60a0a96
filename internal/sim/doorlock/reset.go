package doorlock

import "go.uber.org/zap"

// eachSecure visits every secure object in the loaded chunks a region
// occupies. Tile entities are visited from the last index down, so fn may
// remove the entity it was handed without disturbing the entries still to be
// visited. Unloaded chunks are skipped: their objects pass through the
// object-loaded hook once they become resident.
func (r *Reconciler) eachSecure(region Region, fn func(ch Chunk, te TileEntity, obj SecureOpenable)) {
	if r.world == nil {
		return
	}
	for _, id := range region.OccupiedChunks() {
		ch, ok := r.world.LoadedChunk(id)
		if !ok || ch == nil {
			r.metrics.skip("unloaded")
			continue
		}
		for i := ch.TileEntityCount() - 1; i >= 0; i-- {
			te := ch.TileEntityAt(i)
			if te == nil || !ch.HasTileEntityBlock(te.LocalPos()) {
				continue
			}
			obj, ok := te.(SecureOpenable)
			if !ok {
				r.metrics.skip("not_secure")
				continue
			}
			fn(ch, te, obj)
		}
	}
}

// PrepareReset removes every secure object in region before the host
// rebuilds it, so the rebuild creates fresh objects carrying their template
// lock state instead of reusing stale ones.
func (r *Reconciler) PrepareReset(region Region) {
	if region == nil {
		return
	}
	removed := 0
	r.eachSecure(region, func(ch Chunk, te TileEntity, _ SecureOpenable) {
		ch.ClearBlock(te.LocalPos())
		r.metrics.removed()
		removed++
	})
	r.log.Info("removed secure objects before region rebuild",
		zap.String("region", region.ID()), zap.Int("removed", removed))
}

// FinalizeReset applies the rule to every secure object of a rebuilt region.
func (r *Reconciler) FinalizeReset(region Region) {
	if region == nil {
		return
	}
	unlocked := 0
	r.eachSecure(region, func(_ Chunk, _ TileEntity, obj SecureOpenable) {
		if r.reconcile(obj, HookRegionResetEnd) {
			unlocked++
		}
	})
	r.log.Info("reconciled rebuilt region",
		zap.String("region", region.ID()), zap.Int("unlocked", unlocked))
}
