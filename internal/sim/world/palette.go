package world

import (
	"github.com/samber/oops"

	"opendoors.ai/internal/sim/prefab"
	"opendoors.ai/internal/sim/tuning"
)

// Tile entity kinds bound to palette blocks.
const (
	KindSecureDoor = "secure_door"
	KindContainer  = "container"
)

const blockSwitch = "SWITCH"

type Palette struct {
	names []string
	index map[string]uint16
	kinds []string
}

func NewPalette(defs []tuning.BlockDef) (*Palette, error) {
	if len(defs) == 0 || defs[0].ID != tuning.AirID {
		return nil, oops.Code("PALETTE_INVALID").Errorf("palette must start with %s", tuning.AirID)
	}
	p := &Palette{index: map[string]uint16{}}
	for i, d := range defs {
		if _, dup := p.index[d.ID]; dup {
			return nil, oops.Code("PALETTE_INVALID").With("block", d.ID).Errorf("duplicate block %q", d.ID)
		}
		switch d.TileEntity {
		case "", KindSecureDoor, KindContainer:
		default:
			return nil, oops.Code("PALETTE_INVALID").With("block", d.ID).Errorf("unknown tile entity kind %q", d.TileEntity)
		}
		p.index[d.ID] = uint16(i)
		p.names = append(p.names, d.ID)
		p.kinds = append(p.kinds, d.TileEntity)
	}
	return p, nil
}

func (p *Palette) Air() uint16 { return 0 }

func (p *Palette) Index(id string) (uint16, bool) {
	b, ok := p.index[id]
	return b, ok
}

func (p *Palette) Name(b uint16) string {
	if int(b) >= len(p.names) {
		return ""
	}
	return p.names[b]
}

func (p *Palette) Names() []string { return append([]string(nil), p.names...) }

// Kind returns the tile entity kind bound to block b, "" for plain blocks.
func (p *Palette) Kind(b uint16) string {
	if int(b) >= len(p.kinds) {
		return ""
	}
	return p.kinds[b]
}

func (p *Palette) BearsTileEntity(b uint16) bool { return p.Kind(b) != "" }

func (p *Palette) checkTemplate(t *prefab.Template) error {
	for _, b := range t.Blocks {
		if _, ok := p.index[b.Block]; !ok {
			return oops.Code("PREFAB_INVALID").With("block", b.Block).Errorf("template %s uses unknown block %q", t.Name, b.Block)
		}
	}
	if len(t.Switches) > 0 {
		if _, ok := p.index[blockSwitch]; !ok {
			return oops.Code("PREFAB_INVALID").Errorf("template %s has switches but the palette has no %s", t.Name, blockSwitch)
		}
	}
	return nil
}
