package geom

// Disk is the intersection of a thin oriented box and a sphere. It intersects
// another volume only when both of its parts do.
type Disk struct {
	Box    OBB    `json:"box"`
	Sphere Sphere `json:"sphere"`
}

// NewDisk builds an upright disk of the given radius centred on c, facing
// along yaw, with the given half thickness.
func NewDisk(c Vec3, radius, halfThickness, yaw float64) Disk {
	local := AABB{
		Min: Vec3{-halfThickness, -radius, -radius},
		Max: Vec3{halfThickness, radius, radius},
	}
	return Disk{
		Box:    YawOBB(local, yaw).Moved(c),
		Sphere: Sphere{Center: c, Radius: radius},
	}
}

func (d Disk) Position() Vec3 { return d.Sphere.Center }

func (d Disk) HalfExtents() Vec3 { return d.Box.Extents }

func (d Disk) Bounds() AABB {
	a, b := d.Box.Bounds(), d.Sphere.Bounds()
	return AABB{Min: maxVec(a.Min, b.Min), Max: minVec(a.Max, b.Max)}
}

func (d Disk) Degenerate() bool { return d.Box.Degenerate() || d.Sphere.Degenerate() }

func (d Disk) Intersects(other Collider) bool { return Intersects(d, other) }

func (d Disk) Translated(offset Vec3) Collider { return d.Moved(offset) }

func (d Disk) Moved(offset Vec3) Disk {
	return Disk{Box: d.Box.Moved(offset), Sphere: Sphere{Center: d.Sphere.Center.Add(offset), Radius: d.Sphere.Radius}}
}

// At moves the disk so its centre sits on p.
func (d Disk) At(p Vec3) Disk { return d.Moved(p.Sub(d.Sphere.Center)) }
