package doorlock

import (
	"go.uber.org/zap"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

// QuestRelock restores the template lock state of every unowned secure object
// in the regions found at pos for tags. Unlike Reconcile it may lock an open
// object; the pre-change veto is suspended while it runs so the host applies
// the template value as written.
func (r *Reconciler) QuestRelock(pos mathx.Vec3i, tags []string) {
	if r.regions == nil {
		return
	}
	regions := r.regions.RegionsAt(pos, tags)
	if len(regions) == 0 {
		r.log.Debug("quest relock found no regions", zap.Any("pos", pos), zap.Strings("tags", tags))
		return
	}

	r.relocking++
	defer func() { r.relocking-- }()

	for _, region := range regions {
		if region == nil {
			continue
		}
		locked, unlocked := 0, 0
		r.eachSecure(region, func(_ Chunk, _ TileEntity, obj SecureOpenable) {
			if obj.Owner() != "" {
				r.metrics.skip("owned")
				return
			}
			want := TemplateDefaultLocked(obj.BlockMeta())
			obj.SetLocked(want)
			r.metrics.relock(want)
			if want {
				locked++
			} else {
				unlocked++
			}
		})
		r.log.Info("restored template lock state",
			zap.String("region", region.ID()),
			zap.Int("locked", locked),
			zap.Int("unlocked", unlocked),
		)
	}
}
