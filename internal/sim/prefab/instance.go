package prefab

import (
	"sort"

	"github.com/samber/oops"

	"opendoors.ai/internal/sim/world/logic/mathx"
)

// Instance is a template placed in the world.
type Instance struct {
	InstanceID string
	Template   *Template
	Origin     mathx.Vec3i
	Tags       []string
}

func (in *Instance) ID() string { return in.InstanceID }

// Max returns the inclusive upper corner.
func (in *Instance) Max() mathx.Vec3i {
	s := in.Template.Size
	return in.Origin.Add(mathx.Vec3i{X: s[0] - 1, Y: s[1] - 1, Z: s[2] - 1})
}

func (in *Instance) Contains(pos mathx.Vec3i) bool {
	hi := in.Max()
	return pos.X >= in.Origin.X && pos.X <= hi.X &&
		pos.Y >= in.Origin.Y && pos.Y <= hi.Y &&
		pos.Z >= in.Origin.Z && pos.Z <= hi.Z
}

// OccupiedChunks lists the chunk ids overlapped by the footprint, x-major.
func (in *Instance) OccupiedChunks() []int64 {
	lo, hi := in.Origin, in.Max()
	cx0, cx1 := mathx.FloorDiv(lo.X, mathx.ChunkSize), mathx.FloorDiv(hi.X, mathx.ChunkSize)
	cz0, cz1 := mathx.FloorDiv(lo.Z, mathx.ChunkSize), mathx.FloorDiv(hi.Z, mathx.ChunkSize)
	out := make([]int64, 0, (cx1-cx0+1)*(cz1-cz0+1))
	for cx := cx0; cx <= cx1; cx++ {
		for cz := cz0; cz <= cz1; cz++ {
			out = append(out, mathx.ChunkID(cx, cz))
		}
	}
	return out
}

func (in *Instance) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range in.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Registry indexes placed instances by id.
type Registry struct {
	byID map[string]*Instance
}

func NewRegistry() *Registry {
	return &Registry{byID: map[string]*Instance{}}
}

// Add registers an instance. Instances without tags inherit the template's.
func (r *Registry) Add(in *Instance) error {
	if in == nil || in.InstanceID == "" || in.Template == nil {
		return oops.Code("PREFAB_INVALID").Errorf("instance needs an id and a template")
	}
	if _, dup := r.byID[in.InstanceID]; dup {
		return oops.Code("PREFAB_DUPLICATE").With("instance", in.InstanceID).Errorf("instance %q already registered", in.InstanceID)
	}
	if len(in.Tags) == 0 {
		in.Tags = append([]string(nil), in.Template.Tags...)
	}
	r.byID[in.InstanceID] = in
	return nil
}

func (r *Registry) Get(id string) (*Instance, bool) {
	in, ok := r.byID[id]
	return in, ok
}

// All returns every instance sorted by id.
func (r *Registry) All() []*Instance {
	out := make([]*Instance, 0, len(r.byID))
	for _, in := range r.byID {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// At returns the instances containing pos that carry any of tags (all
// instances when tags is empty), sorted by id.
func (r *Registry) At(pos mathx.Vec3i, tags []string) []*Instance {
	var out []*Instance
	for _, in := range r.All() {
		if in.Contains(pos) && in.HasAnyTag(tags) {
			out = append(out, in)
		}
	}
	return out
}
