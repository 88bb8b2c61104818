package geom

import "math"

// AABB is an axis-aligned box. The zero value is the dummy box: it has no
// volume and never intersects anything.
type AABB struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// BoxAround returns the box centred on c with the given half extents.
func BoxAround(c, half Vec3) AABB {
	half = absVec(half)
	return AABB{Min: c.Sub(half), Max: c.Add(half)}
}

// BlockBounds is the unit box occupied by voxel v.
func BlockBounds(v Vec3i) AABB {
	min := v.Vec()
	return AABB{Min: min, Max: min.Add(Vec3{1, 1, 1})}
}

// ExpandedBlockBounds is the unit box of v grown by 0.4 on every side; it is
// the hit volume of a travelling voxel.
func ExpandedBlockBounds(v Vec3i) AABB {
	return BlockBounds(v).Grow(Vec3{0.4, 0.4, 0.4})
}

func (b AABB) Center() Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

func (b AABB) Size() Vec3 { return b.Max.Sub(b.Min) }

func (b AABB) Position() Vec3 { return b.Center() }

func (b AABB) HalfExtents() Vec3 { return b.Size().Mul(0.5) }

func (b AABB) Bounds() AABB { return b }

func (b AABB) Degenerate() bool {
	s := b.Size()
	return s[0] <= Epsilon || s[1] <= Epsilon || s[2] <= Epsilon ||
		math.IsNaN(s[0]) || math.IsNaN(s[1]) || math.IsNaN(s[2])
}

func (b AABB) Intersects(other Collider) bool { return Intersects(b, other) }

func (b AABB) Translated(offset Vec3) Collider { return b.Moved(offset) }

// Moved is Translated without the interface boxing.
func (b AABB) Moved(offset Vec3) AABB {
	return AABB{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

// At re-centres a box built around the origin onto p.
func (b AABB) At(p Vec3) AABB { return b.Moved(p) }

func (b AABB) Grow(d Vec3) AABB {
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Union returns the smallest box containing both b and o. Degenerate operands
// are ignored so the dummy box acts as the identity.
func (b AABB) Union(o AABB) AABB {
	if b == (AABB{}) {
		return o
	}
	if o == (AABB{}) {
		return b
	}
	return AABB{Min: minVec(b.Min, o.Min), Max: maxVec(b.Max, o.Max)}
}

// Overlaps is the inclusive broad-phase test used by the bounding volume
// hierarchy. Narrow-phase tests go through Intersects.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

func (b AABB) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// ClosestPoint clamps p into the box.
func (b AABB) ClosestPoint(p Vec3) Vec3 {
	return Vec3{
		clamp(p[0], b.Min[0], b.Max[0]),
		clamp(p[1], b.Min[1], b.Max[1]),
		clamp(p[2], b.Min[2], b.Max[2]),
	}
}

// ToOBB promotes the box to an oriented box with identity axes.
func (b AABB) ToOBB() OBB {
	return OBB{Center: b.Center(), Extents: b.HalfExtents(), Axes: identityAxes}
}

func aabbAABB(a, b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Max[i] <= b.Min[i]+Epsilon || b.Max[i] <= a.Min[i]+Epsilon {
			return false
		}
	}
	return true
}

func aabbSphere(b AABB, s Sphere) bool {
	return withinRadius(DistanceSq(b.ClosestPoint(s.Center), s.Center), s.Radius)
}
