package tuning

import (
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const AirID = "AIR"

type Tuning struct {
	TickRateHz     int `yaml:"tick_rate_hz"`
	WorldBoundaryR int `yaml:"world_boundary_r"`

	DoorPolicy DoorPolicy `yaml:"door_policy"`
	Blocks     []BlockDef `yaml:"blocks"`
	Log        Log        `yaml:"log"`

	// Spawns are placed when a world starts without a snapshot.
	Spawns []Spawn `yaml:"spawns"`
}

type Spawn struct {
	ID       string   `yaml:"id"`
	Template string   `yaml:"template"`
	Origin   [3]int   `yaml:"origin"`
	Tags     []string `yaml:"tags"`
}

// DoorPolicy toggles the optional steps of the door-lock reconciler. Pointers
// distinguish "absent" from an explicit false so Normalize can default to on.
type DoorPolicy struct {
	ReassertOnChanged bool  `yaml:"reassert_on_changed"`
	RemoveOnReset     *bool `yaml:"remove_on_reset"`
	ReconcileOnReset  *bool `yaml:"reconcile_on_reset"`
}

func (p DoorPolicy) RemoveEnabled() bool    { return p.RemoveOnReset == nil || *p.RemoveOnReset }
func (p DoorPolicy) ReconcileEnabled() bool { return p.ReconcileOnReset == nil || *p.ReconcileOnReset }

type BlockDef struct {
	ID string `yaml:"id"`
	// TileEntity names the entity kind bound to this block ("secure_door",
	// "container"); empty for plain blocks.
	TileEntity string `yaml:"tile_entity,omitempty"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:     5,
		WorldBoundaryR: 2048,
		Blocks: []BlockDef{
			{ID: AirID},
			{ID: "STONE"},
			{ID: "DOOR_SECURE", TileEntity: "secure_door"},
			{ID: "HATCH_SECURE", TileEntity: "secure_door"},
			{ID: "GATE_SECURE", TileEntity: "secure_door"},
			{ID: "CHEST", TileEntity: "container"},
			{ID: "SWITCH"},
		},
		Log: Log{Level: "info", Format: "json"},
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, oops.With("path", path).Wrap(err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, oops.Code("TUNING_INVALID").With("path", path).Wrapf(err, "tuning.yaml")
	}
	if err := t.Normalize(); err != nil {
		return t, oops.With("path", path).Wrap(err)
	}
	return t, nil
}

// Normalize fills zero values from Defaults and moves AIR to palette index 0.
func (t *Tuning) Normalize() error {
	def := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = def.TickRateHz
	}
	if t.WorldBoundaryR <= 0 {
		t.WorldBoundaryR = def.WorldBoundaryR
	}
	if t.Log.Level == "" {
		t.Log.Level = def.Log.Level
	}
	if t.Log.Format == "" {
		t.Log.Format = def.Log.Format
	}

	spawned := map[string]bool{}
	for _, sp := range t.Spawns {
		if sp.ID == "" || sp.Template == "" {
			return oops.Code("TUNING_INVALID").Errorf("spawn needs id and template")
		}
		if spawned[sp.ID] {
			return oops.Code("TUNING_INVALID").With("spawn", sp.ID).Errorf("duplicate spawn id %q", sp.ID)
		}
		spawned[sp.ID] = true
	}

	if len(t.Blocks) == 0 {
		t.Blocks = def.Blocks
		return nil
	}

	seen := map[string]bool{}
	blocks := make([]BlockDef, 0, len(t.Blocks)+1)
	blocks = append(blocks, BlockDef{ID: AirID})
	for _, b := range t.Blocks {
		if b.ID == "" {
			return oops.Code("TUNING_INVALID").Errorf("block with empty id")
		}
		if seen[b.ID] {
			return oops.Code("TUNING_INVALID").With("block", b.ID).Errorf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = true
		if b.ID == AirID {
			if b.TileEntity != "" {
				return oops.Code("TUNING_INVALID").Errorf("AIR cannot carry a tile entity")
			}
			continue
		}
		blocks = append(blocks, b)
	}
	t.Blocks = blocks
	return nil
}
