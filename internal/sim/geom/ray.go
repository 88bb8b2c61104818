package geom

import "math"

// Ray is the segment from Origin to Origin+Direction.
type Ray struct {
	Origin    Vec3 `json:"origin"`
	Direction Vec3 `json:"direction"`
}

func (r Ray) End() Vec3 { return r.Origin.Add(r.Direction) }

func (r Ray) Position() Vec3 { return r.Origin }

func (r Ray) HalfExtents() Vec3 { return absVec(r.Direction).Mul(0.5) }

func (r Ray) Bounds() AABB {
	e := r.End()
	return AABB{Min: minVec(r.Origin, e), Max: maxVec(r.Origin, e)}
}

func (r Ray) Degenerate() bool { return !(r.Direction.LenSqr() > Epsilon*Epsilon) }

func (r Ray) Intersects(other Collider) bool { return Intersects(r, other) }

func (r Ray) Translated(offset Vec3) Collider {
	return Ray{Origin: r.Origin.Add(offset), Direction: r.Direction}
}

// ClosestPoint returns the point on the segment nearest p.
func (r Ray) ClosestPoint(p Vec3) Vec3 {
	t := clamp(p.Sub(r.Origin).Dot(r.Direction)/r.Direction.LenSqr(), 0, 1)
	return r.Origin.Add(r.Direction.Mul(t))
}

func raySphere(r Ray, s Sphere) bool {
	return withinRadius(DistanceSq(r.ClosestPoint(s.Center), s.Center), s.Radius)
}

func rayAABB(r Ray, b AABB) bool {
	return segmentSlab(r.Origin, r.Direction, b.Min, b.Max)
}

func rayOBB(r Ray, o OBB) bool {
	return segmentSlab(o.Local(r.Origin), o.localDir(r.Direction), o.Extents.Mul(-1), o.Extents)
}

// segmentSlab clips the segment o+t*d, t in [0,1], against the slabs of the
// box shrunk by Epsilon.
func segmentSlab(o, d, min, max Vec3) bool {
	tmin, tmax := 0.0, 1.0
	for i := 0; i < 3; i++ {
		lo, hi := min[i]+Epsilon, max[i]-Epsilon
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < lo || o[i] > hi {
				return false
			}
			continue
		}
		inv := 1 / d[i]
		t0, t1 := (lo-o[i])*inv, (hi-o[i])*inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// rayRay finds the closest points of the two segments and reports a hit when
// they are within Epsilon of each other.
func rayRay(a, b Ray) bool {
	d1, d2 := a.Direction, b.Direction
	w := a.Origin.Sub(b.Origin)
	aa, ee, f := d1.Dot(d1), d2.Dot(d2), d2.Dot(w)
	c, bb := d1.Dot(w), d1.Dot(d2)

	var s, t float64
	if denom := aa*ee - bb*bb; denom > Epsilon*aa*ee {
		s = clamp((bb*f-c*ee)/denom, 0, 1)
	}
	t = (bb*s + f) / ee
	switch {
	case t < 0:
		t = 0
		s = clamp(-c/aa, 0, 1)
	case t > 1:
		t = 1
		s = clamp((bb-c)/aa, 0, 1)
	}
	p1 := a.Origin.Add(d1.Mul(s))
	p2 := b.Origin.Add(d2.Mul(t))
	return DistanceSq(p1, p2) < Epsilon*Epsilon
}
