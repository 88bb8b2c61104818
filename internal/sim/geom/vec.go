package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance every overlap test shrinks by, so volumes that only
// touch along a voxel face do not flicker between hit and miss.
const Epsilon = 1e-6

type Vec3 = mgl64.Vec3

var (
	UnitX = Vec3{1, 0, 0}
	UnitY = Vec3{0, 1, 0}
	UnitZ = Vec3{0, 0, 1}
)

// Vec3i addresses one unit voxel.
type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3i) Up() Vec3i   { return Vec3i{X: v.X, Y: v.Y + 1, Z: v.Z} }
func (v Vec3i) Down() Vec3i { return Vec3i{X: v.X, Y: v.Y - 1, Z: v.Z} }

// Vec returns the voxel's minimum corner.
func (v Vec3i) Vec() Vec3 { return Vec3{float64(v.X), float64(v.Y), float64(v.Z)} }

// Center returns the voxel's center point.
func (v Vec3i) Center() Vec3 { return Vec3{float64(v.X) + 0.5, float64(v.Y) + 0.5, float64(v.Z) + 0.5} }

func (v Vec3i) IsZero() bool { return v == Vec3i{} }

// Floor returns the voxel containing p.
func Floor(p Vec3) Vec3i {
	return Vec3i{
		X: int(math.Floor(p[0])),
		Y: int(math.Floor(p[1])),
		Z: int(math.Floor(p[2])),
	}
}

// Normalize returns v scaled to unit length, or the zero vector when v has no
// usable direction.
func Normalize(v Vec3) Vec3 {
	l := v.Len()
	if l < Epsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec3{}
	}
	return v.Mul(1 / l)
}

// HorizontalDirection projects v onto the XZ plane and normalizes it.
func HorizontalDirection(v Vec3) Vec3 {
	return Normalize(Vec3{v[0], 0, v[2]})
}

func DistanceSq(a, b Vec3) float64 { return a.Sub(b).LenSqr() }

func absVec(v Vec3) Vec3 { return Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])} }

func minVec(a, b Vec3) Vec3 {
	return Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func maxVec(a, b Vec3) Vec3 {
	return Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
