package mathx

// ChunkSize is the edge length of a chunk column in blocks.
const ChunkSize = 16

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func Manhattan(a, b Vec3i) int {
	return AbsInt(a.X-b.X) + AbsInt(a.Y-b.Y) + AbsInt(a.Z-b.Z)
}

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ChunkID packs chunk column coordinates into one key: cx in the low 32 bits,
// cz in the high 32 bits.
func ChunkID(cx, cz int) int64 {
	return int64(uint64(uint32(int32(cz)))<<32 | uint64(uint32(int32(cx))))
}

func SplitChunkID(id int64) (cx, cz int) {
	u := uint64(id)
	return int(int32(uint32(u))), int(int32(uint32(u >> 32)))
}

// ChunkOf returns the chunk column holding the world position and the position
// local to that chunk.
func ChunkOf(pos Vec3i) (cx, cz int, local Vec3i) {
	cx = FloorDiv(pos.X, ChunkSize)
	cz = FloorDiv(pos.Z, ChunkSize)
	local = Vec3i{X: Mod(pos.X, ChunkSize), Y: pos.Y, Z: Mod(pos.Z, ChunkSize)}
	return cx, cz, local
}
