package prefab

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/oops"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

//go:embed prefab.schema.json
var schemaJSON string

var templateSchema = jsonschema.MustCompileString("prefab.schema.json", schemaJSON)

// Template is a reusable structure. Positions are offsets from the instance
// origin and must fall inside Size.
type Template struct {
	Name     string      `yaml:"name"`
	Tags     []string    `yaml:"tags,omitempty"`
	Size     [3]int      `yaml:"size"`
	Blocks   []BlockDef  `yaml:"blocks"`
	Switches []SwitchDef `yaml:"switches,omitempty"`
}

type BlockDef struct {
	Pos   [3]int `yaml:"pos"`
	Block string `yaml:"block"`
	Meta  uint8  `yaml:"meta,omitempty"`
	Owner string `yaml:"owner,omitempty"`
}

type SwitchDef struct {
	Pos   [3]int   `yaml:"pos"`
	Links [][3]int `yaml:"links,omitempty"`
}

func (t *Template) inside(p [3]int) bool {
	for i := 0; i < 3; i++ {
		if p[i] < 0 || p[i] >= t.Size[i] {
			return false
		}
	}
	return true
}

// ParseTemplate decodes a YAML template and validates it against the embedded
// schema before the structural checks.
func ParseTemplate(raw []byte) (*Template, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, oops.Code("PREFAB_INVALID").Wrapf(err, "yaml")
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	jb, err := json.Marshal(doc)
	if err != nil {
		return nil, oops.Code("PREFAB_INVALID").Wrapf(err, "yaml to json")
	}
	var inst any
	if err := json.Unmarshal(jb, &inst); err != nil {
		return nil, oops.Code("PREFAB_INVALID").Wrap(err)
	}
	if err := templateSchema.Validate(inst); err != nil {
		return nil, oops.Code("PREFAB_INVALID").Wrapf(err, "schema")
	}

	var t Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, oops.Code("PREFAB_INVALID").Wrapf(err, "yaml")
	}
	if t.Size[1] != 1 {
		return nil, oops.Code("PREFAB_INVALID").With("template", t.Name).Errorf("size y must be 1, got %d", t.Size[1])
	}
	seen := map[[3]int]bool{}
	for _, b := range t.Blocks {
		if !t.inside(b.Pos) {
			return nil, oops.Code("PREFAB_INVALID").With("template", t.Name).Errorf("block %v outside size %v", b.Pos, t.Size)
		}
		if seen[b.Pos] {
			return nil, oops.Code("PREFAB_INVALID").With("template", t.Name).Errorf("duplicate block at %v", b.Pos)
		}
		seen[b.Pos] = true
	}
	for _, s := range t.Switches {
		if !t.inside(s.Pos) {
			return nil, oops.Code("PREFAB_INVALID").With("template", t.Name).Errorf("switch %v outside size %v", s.Pos, t.Size)
		}
		if seen[s.Pos] {
			return nil, oops.Code("PREFAB_INVALID").With("template", t.Name).Errorf("switch overlaps block at %v", s.Pos)
		}
	}
	return &t, nil
}

// LoadTemplates reads every *.yaml file in dir.
func LoadTemplates(dir string) (map[string]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.With("dir", dir).Wrap(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n := e.Name(); strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	out := make(map[string]*Template, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, oops.With("path", p).Wrap(err)
		}
		t, err := ParseTemplate(raw)
		if err != nil {
			return nil, oops.With("path", p).Wrap(err)
		}
		if _, dup := out[t.Name]; dup {
			return nil, oops.Code("PREFAB_INVALID").With("path", p).Errorf("duplicate template %q", t.Name)
		}
		out[t.Name] = t
	}
	return out, nil
}

// Offset converts a template-relative position to world space.
func Offset(origin mathx.Vec3i, p [3]int) mathx.Vec3i {
	return origin.Add(mathx.FromArray(p))
}
