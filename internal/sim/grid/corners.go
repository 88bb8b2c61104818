package grid

import (
	"math"

	"voxelfx.dev/internal/sim/geom"
)

// Corners splits a step from origin into the unit axis offsets whose voxel
// boundary it crosses. A step that stays inside one voxel yields the zero
// offset only.
func Corners(origin, step geom.Vec3) []geom.Vec3i {
	from := geom.Floor(origin)
	to := geom.Floor(origin.Add(step))
	d := to.Sub(from)
	out := make([]geom.Vec3i, 0, 3)
	if c := sign(d.X); c != 0 {
		out = append(out, geom.Vec3i{X: c})
	}
	if c := sign(d.Y); c != 0 {
		out = append(out, geom.Vec3i{Y: c})
	}
	if c := sign(d.Z); c != 0 {
		out = append(out, geom.Vec3i{Z: c})
	}
	if len(out) == 0 {
		out = append(out, geom.Vec3i{})
	}
	return out
}

// Diagonal reports whether a step crosses more than one voxel boundary.
func Diagonal(origin, step geom.Vec3) bool {
	n := 0
	for _, c := range Corners(origin, step) {
		if !c.IsZero() {
			n++
		}
	}
	return n > 1
}

func sign(x int) int {
	return int(math.Max(-1, math.Min(1, float64(x))))
}
