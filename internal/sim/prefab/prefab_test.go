package prefab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates("testdata")
	require.NoError(t, err)
	require.Contains(t, ts, "bunker")

	b := ts["bunker"]
	assert.Equal(t, [3]int{20, 1, 4}, b.Size)
	require.Len(t, b.Blocks, 4)
	assert.Equal(t, uint8(5), b.Blocks[2].Meta)
	require.Len(t, b.Switches, 1)
	assert.Equal(t, [][3]int{{1, 0, 0}}, b.Switches[0].Links)
}

func TestParseTemplateRejects(t *testing.T) {
	cases := map[string]string{
		"schema: unknown field":  "name: x\nsize: [1,1,1]\nblocks: []\ncolour: red\n",
		"schema: missing blocks": "name: x\nsize: [1,1,1]\n",
		"schema: meta range":     "name: x\nsize: [2,1,1]\nblocks: [{pos: [0,0,0], block: DOOR_SECURE, meta: 300}]\n",
		"height":                 "name: x\nsize: [2,2,1]\nblocks: []\n",
		"outside":                "name: x\nsize: [2,1,1]\nblocks: [{pos: [2,0,0], block: STONE}]\n",
		"duplicate":              "name: x\nsize: [2,1,1]\nblocks: [{pos: [0,0,0], block: STONE}, {pos: [0,0,0], block: STONE}]\n",
		"switch overlap":         "name: x\nsize: [2,1,1]\nblocks: [{pos: [0,0,0], block: STONE}]\nswitches: [{pos: [0,0,0]}]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadTemplatesRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	body := []byte("name: hut\nsize: [1,1,1]\nblocks: []\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), body, 0o644))

	_, err := LoadTemplates(dir)
	assert.Error(t, err)
}

func TestInstanceBoundsAndChunks(t *testing.T) {
	tpl := &Template{Name: "hall", Size: [3]int{20, 1, 4}}
	in := &Instance{InstanceID: "poi_1", Template: tpl, Origin: mathx.Vec3i{X: -2, Z: 14}}

	assert.True(t, in.Contains(mathx.Vec3i{X: -2, Z: 14}))
	assert.True(t, in.Contains(mathx.Vec3i{X: 17, Z: 17}), "upper corner is inclusive")
	assert.False(t, in.Contains(mathx.Vec3i{X: 18, Z: 17}))
	assert.False(t, in.Contains(mathx.Vec3i{X: 0, Y: 1, Z: 15}))

	// x spans chunks -1..1, z spans 0..1.
	assert.Equal(t, []int64{
		mathx.ChunkID(-1, 0), mathx.ChunkID(-1, 1),
		mathx.ChunkID(0, 0), mathx.ChunkID(0, 1),
		mathx.ChunkID(1, 0), mathx.ChunkID(1, 1),
	}, in.OccupiedChunks())
}

func TestRegistryAt(t *testing.T) {
	tpl := &Template{Name: "hut", Tags: []string{"clear"}, Size: [3]int{4, 1, 4}}
	r := NewRegistry()
	require.NoError(t, r.Add(&Instance{InstanceID: "b", Template: tpl}))
	require.NoError(t, r.Add(&Instance{InstanceID: "a", Template: tpl, Tags: []string{"fetch"}}))
	require.NoError(t, r.Add(&Instance{InstanceID: "far", Template: tpl, Origin: mathx.Vec3i{X: 100}}))
	assert.Error(t, r.Add(&Instance{InstanceID: "a", Template: tpl}))
	assert.Error(t, r.Add(&Instance{InstanceID: "x"}))

	ids := func(ins []*Instance) []string {
		var out []string
		for _, in := range ins {
			out = append(out, in.ID())
		}
		return out
	}
	pos := mathx.Vec3i{X: 1, Z: 1}
	assert.Equal(t, []string{"a", "b"}, ids(r.At(pos, nil)))
	assert.Equal(t, []string{"b"}, ids(r.At(pos, []string{"clear"})))
	assert.Equal(t, []string{"a", "b"}, ids(r.At(pos, []string{"fetch", "clear"})))
	assert.Empty(t, r.At(pos, []string{"kill"}))
	assert.Equal(t, []string{"a", "b", "far"}, ids(r.All()))

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, []string{"clear"}, got.Tags, "inherits template tags")
}
