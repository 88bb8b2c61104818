package geom

type Sphere struct {
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
}

func (s Sphere) Position() Vec3 { return s.Center }

func (s Sphere) HalfExtents() Vec3 { return Vec3{s.Radius, s.Radius, s.Radius} }

func (s Sphere) Bounds() AABB { return BoxAround(s.Center, s.HalfExtents()) }

func (s Sphere) Degenerate() bool { return !(s.Radius > Epsilon) }

func (s Sphere) Intersects(other Collider) bool { return Intersects(s, other) }

func (s Sphere) Translated(offset Vec3) Collider {
	return Sphere{Center: s.Center.Add(offset), Radius: s.Radius}
}

func (s Sphere) At(p Vec3) Sphere { return Sphere{Center: p, Radius: s.Radius} }

func sphereSphere(a, b Sphere) bool {
	return withinRadius(DistanceSq(a.Center, b.Center), a.Radius+b.Radius)
}

// withinRadius reports whether a squared distance lies strictly inside r,
// less the shared tolerance.
func withinRadius(distSq, r float64) bool {
	r -= Epsilon
	return r > 0 && distSq < r*r
}
