package geom

// Collider is one of the closed set of volumes: AABB, OBB, Sphere, Disk, Ray.
// All values are immutable; Translated returns a moved copy.
type Collider interface {
	// Intersects is symmetric: a.Intersects(b) == b.Intersects(a).
	Intersects(other Collider) bool
	Translated(offset Vec3) Collider
	Position() Vec3
	HalfExtents() Vec3
	// Bounds is the smallest axis-aligned box enclosing the volume.
	Bounds() AABB
	// Degenerate volumes (zero size, zero radius, zero-length ray) never intersect.
	Degenerate() bool
}

// Intersects dispatches on the concrete pair. Every case is written once with
// the operands ordered by shape rank, which keeps the test symmetric.
func Intersects(a, b Collider) bool {
	if a == nil || b == nil || a.Degenerate() || b.Degenerate() {
		return false
	}
	if rank(a) > rank(b) {
		a, b = b, a
	}
	switch x := a.(type) {
	case AABB:
		switch y := b.(type) {
		case AABB:
			return aabbAABB(x, y)
		case OBB:
			return obbOBB(x.ToOBB(), y)
		case Sphere:
			return aabbSphere(x, y)
		case Disk:
			return Intersects(x, y.Sphere) && Intersects(x, y.Box)
		case Ray:
			return rayAABB(y, x)
		}
	case OBB:
		switch y := b.(type) {
		case OBB:
			return obbOBB(x, y)
		case Sphere:
			return obbSphere(x, y)
		case Disk:
			return Intersects(x, y.Sphere) && Intersects(x, y.Box)
		case Ray:
			return rayOBB(y, x)
		}
	case Sphere:
		switch y := b.(type) {
		case Sphere:
			return sphereSphere(x, y)
		case Disk:
			return Intersects(x, y.Sphere) && Intersects(x, y.Box)
		case Ray:
			return raySphere(y, x)
		}
	case Disk:
		switch y := b.(type) {
		case Disk:
			return Intersects(x.Sphere, y) && Intersects(x.Box, y)
		case Ray:
			return Intersects(y, x.Sphere) && Intersects(y, x.Box)
		}
	case Ray:
		if y, ok := b.(Ray); ok {
			return rayRay(x, y)
		}
	}
	return false
}

func rank(c Collider) int {
	switch c.(type) {
	case AABB:
		return 0
	case OBB:
		return 1
	case Sphere:
		return 2
	case Disk:
		return 3
	case Ray:
		return 4
	default:
		return 5
	}
}
