package collision

import (
	"math"

	"voxelfx.dev/internal/sim/geom"
)

// mortonBits is the per-axis resolution of a 64-bit code.
const mortonBits = 21

// spread inserts two zero bits between each of the low 21 bits of x.
func spread(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// Morton interleaves three 21-bit coordinates into one code, x in the
// highest bit of each triple.
func Morton(x, y, z uint32) uint64 {
	return spread(uint64(x))<<2 | spread(uint64(y))<<1 | spread(uint64(z))
}

// quantizer maps points inside a scene box onto the Morton grid.
type quantizer struct {
	min   geom.Vec3
	scale geom.Vec3
}

func newQuantizer(scene geom.AABB) quantizer {
	q := quantizer{min: scene.Min}
	size := scene.Size()
	for i := 0; i < 3; i++ {
		if size[i] > 0 {
			q.scale[i] = float64(1<<mortonBits-1) / size[i]
		}
	}
	return q
}

func (q quantizer) code(p geom.Vec3) uint64 {
	var c [3]uint32
	for i := 0; i < 3; i++ {
		v := math.Floor((p[i] - q.min[i]) * q.scale[i])
		c[i] = uint32(math.Max(0, math.Min(v, 1<<mortonBits-1)))
	}
	return Morton(c[0], c[1], c[2])
}
