package world

import (
	"sort"

	"github.com/samber/oops"

	"opendoors.ai/internal/sim/doorlock"
)

// Switch remotely opens and closes the doors it links to. Remote triggers
// ignore the lock flag.
type Switch struct {
	Pos   Vec3i
	On    bool
	Links []Vec3i
}

func (w *World) PlaceSwitch(pos Vec3i, links []Vec3i) error {
	b, ok := w.palette.Index(blockSwitch)
	if !ok {
		return oops.Code(CodeBadRequest).Errorf("palette has no %s block", blockSwitch)
	}
	if err := w.checkBounds(pos); err != nil {
		return err
	}
	w.withCause("PLACE", func() {
		w.chunks.SetBlock(pos, b, 0)
		w.switches[pos] = &Switch{Pos: pos, Links: append([]Vec3i(nil), links...)}
		w.audit("SWITCH_PLACE", pos, map[string]any{"links": len(links)})
	})
	return nil
}

func (w *World) switchAt(pos Vec3i) (*Switch, bool) {
	s, ok := w.switches[pos]
	if !ok {
		return nil, false
	}
	// Guard against stale entries.
	if b, _ := w.chunks.GetBlock(pos); w.palette.Name(b) != blockSwitch {
		delete(w.switches, pos)
		return nil, false
	}
	return s, true
}

// TriggerSwitch flips the switch and drives every linked door to the new
// switch state, then fires the triggered-by-switch hook for that door.
func (w *World) TriggerSwitch(pos Vec3i) (on bool, err error) {
	s, ok := w.switchAt(pos)
	if !ok {
		return false, notFound("switch", pos)
	}
	s.On = !s.On
	w.withCause("SWITCH", func() {
		w.audit("SWITCH_TRIGGER", pos, map[string]any{"on": s.On})
		for _, link := range s.Links {
			d, err := w.door(link)
			if err != nil {
				continue
			}
			meta := d.BlockMeta() &^ doorlock.MetaOpen
			if s.On {
				meta |= doorlock.MetaOpen
			}
			w.chunks.SetMeta(link, meta)
			w.audit("DOOR_TOGGLE", link, map[string]any{"open": s.On, "switch": pos.ToArray()})
			w.hooks.TriggeredBySwitch.Fire(SwitchTrigger{
				Lookup:  tileLookup{w: w},
				Cluster: hostCluster,
				Pos:     link,
				Meta:    meta,
			})
		}
	})
	return s.On, nil
}

func (w *World) sortedSwitches() []*Switch {
	out := make([]*Switch, 0, len(w.switches))
	for _, s := range w.switches {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return posLess(out[i].Pos, out[j].Pos) })
	return out
}
