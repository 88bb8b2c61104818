package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var identityAxes = [3]Vec3{UnitX, UnitY, UnitZ}

// OBB is an oriented box: a centre, three orthonormal axes and the half
// extent along each of them.
type OBB struct {
	Center  Vec3    `json:"center"`
	Extents Vec3    `json:"extents"`
	Axes    [3]Vec3 `json:"axes"`
}

// NewOBB rotates box about the world origin by rot. Boxes built around the
// origin and then translated therefore rotate in place.
func NewOBB(box AABB, rot mgl64.Mat3) OBB {
	return OBB{
		Center:  rot.Mul3x1(box.Center()),
		Extents: box.HalfExtents(),
		Axes:    [3]Vec3{rot.Col(0), rot.Col(1), rot.Col(2)},
	}
}

// YawOBB rotates box about the vertical axis by yaw radians.
func YawOBB(box AABB, yaw float64) OBB {
	return NewOBB(box, mgl64.Rotate3DY(yaw))
}

func (o OBB) Position() Vec3 { return o.Center }

func (o OBB) HalfExtents() Vec3 { return o.Extents }

func (o OBB) Bounds() AABB {
	var half Vec3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			half[i] += math.Abs(o.Axes[j][i]) * o.Extents[j]
		}
	}
	return BoxAround(o.Center, half)
}

func (o OBB) Degenerate() bool {
	return !(o.Extents[0] > Epsilon/2 && o.Extents[1] > Epsilon/2 && o.Extents[2] > Epsilon/2)
}

func (o OBB) Intersects(other Collider) bool { return Intersects(o, other) }

func (o OBB) Translated(offset Vec3) Collider { return o.Moved(offset) }

func (o OBB) Moved(offset Vec3) OBB {
	o.Center = o.Center.Add(offset)
	return o
}

func (o OBB) At(p Vec3) OBB {
	o.Center = p
	return o
}

// Local expresses a world point in the box's frame, relative to its centre.
func (o OBB) Local(p Vec3) Vec3 {
	d := p.Sub(o.Center)
	return Vec3{d.Dot(o.Axes[0]), d.Dot(o.Axes[1]), d.Dot(o.Axes[2])}
}

func (o OBB) localDir(d Vec3) Vec3 {
	return Vec3{d.Dot(o.Axes[0]), d.Dot(o.Axes[1]), d.Dot(o.Axes[2])}
}

func (o OBB) ClosestPoint(p Vec3) Vec3 {
	d := p.Sub(o.Center)
	q := o.Center
	for i := 0; i < 3; i++ {
		dist := clamp(d.Dot(o.Axes[i]), -o.Extents[i], o.Extents[i])
		q = q.Add(o.Axes[i].Mul(dist))
	}
	return q
}

func obbSphere(o OBB, s Sphere) bool {
	return withinRadius(DistanceSq(o.ClosestPoint(s.Center), s.Center), s.Radius)
}

// projectedRadius is the half length of o's shadow on the unit axis l.
func (o OBB) projectedRadius(l Vec3) float64 {
	return o.Extents[0]*math.Abs(o.Axes[0].Dot(l)) +
		o.Extents[1]*math.Abs(o.Axes[1].Dot(l)) +
		o.Extents[2]*math.Abs(o.Axes[2].Dot(l))
}

// obbOBB runs the separating axis test over the 15 candidate axes after an
// early out on the enclosing boxes.
func obbOBB(a, b OBB) bool {
	if !aabbAABB(a.Bounds(), b.Bounds()) {
		return false
	}
	t := b.Center.Sub(a.Center)
	separated := func(l Vec3) bool {
		return math.Abs(t.Dot(l)) >= a.projectedRadius(l)+b.projectedRadius(l)-Epsilon
	}
	for i := 0; i < 3; i++ {
		if separated(a.Axes[i]) || separated(b.Axes[i]) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			l := a.Axes[i].Cross(b.Axes[j])
			if l.LenSqr() < Epsilon {
				// Parallel edges; the face axes already cover this direction.
				continue
			}
			if separated(l.Normalize()) {
				return false
			}
		}
	}
	return true
}
