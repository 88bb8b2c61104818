package trajectory

import (
	"math"

	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
)

const (
	wheelHalfThickness = 0.15
	// wheelClearance keeps a resting wheel just off the surface under it.
	wheelClearance = 0.05
)

// liquidWorld is implemented by worlds that know about liquids; a wheel
// sinks when it rolls onto one.
type liquidWorld interface {
	IsLiquid(v geom.Vec3i) bool
}

type WheelConfig struct {
	Owner model.ActorID
	// Origin is the wheel's starting centre.
	Origin    geom.Vec3
	Direction geom.Vec3
	Speed     float64
	Radius    float64
	Range     float64
	// MaxResolution is the highest ledge the wheel can roll onto. Zero
	// means Radius.
	MaxResolution float64
	Entities      EntityQuery
	Hooks         Hooks
}

// Wheel is an upright disk rolling over terrain. It climbs ledges up to
// MaxResolution high and drops one voxel at a time.
type Wheel struct {
	base
	cfg      WheelConfig
	location geom.Vec3
	step     geom.Vec3
	disk     geom.Disk
}

func NewWheel(cfg WheelConfig) *Wheel {
	if cfg.Radius <= 0 {
		cfg.Radius = 1
	}
	if cfg.MaxResolution <= 0 {
		cfg.MaxResolution = cfg.Radius
	}
	dir := geom.HorizontalDirection(cfg.Direction)
	yaw := math.Atan2(dir[0], dir[2])
	return &Wheel{
		base:     base{owner: cfg.Owner, hooks: cfg.Hooks},
		cfg:      cfg,
		location: cfg.Origin,
		step:     dir.Mul(cfg.Speed),
		disk:     geom.NewDisk(cfg.Origin, cfg.Radius, wheelHalfThickness, yaw),
	}
}

func (wh *Wheel) Position() geom.Vec3 { return wh.location }

func (wh *Wheel) Colliders() []geom.Collider {
	if wh.state != Active {
		return nil
	}
	return []geom.Collider{wh.disk.At(wh.location)}
}

func (wh *Wheel) Update(w World) State {
	if !wh.begin() {
		return wh.state
	}
	wh.location = wh.location.Add(wh.step)
	if geom.DistanceSq(wh.location, wh.cfg.Origin) > wh.cfg.Range*wh.cfg.Range {
		return wh.terminate(ReasonOutOfRange)
	}
	if !w.CanModify(wh.owner, geom.Floor(wh.location)) {
		return wh.terminate(ReasonDenied)
	}
	if !wh.settle(w) {
		wh.blockHit(geom.Floor(wh.location))
		return wh.terminate(ReasonObstructed)
	}
	if lw, ok := w.(liquidWorld); ok {
		below := wh.location.Sub(geom.Vec3{0, wh.cfg.Radius + 0.25, 0})
		if lw.IsLiquid(geom.Floor(below)) {
			return wh.terminate(ReasonObstructed)
		}
	}
	wh.render(wh.location)
	if wh.entityHits(w, wh.disk.At(wh.location), wh.cfg.Entities) {
		return wh.terminate(ReasonEntityHit)
	}
	return wh.state
}

// settle lifts the wheel onto the first ledge it overlaps, or lets it fall
// one voxel when there is nothing under it. It reports false when the wheel
// is stuck.
func (wh *Wheel) settle(w World) bool {
	r := wh.cfg.Radius
	bottom := wh.location[1] - r - wheelClearance
	disk := wh.disk.At(wh.location)
	for _, v := range wh.nearby(w, wh.location) {
		if !disk.Intersects(v) {
			continue
		}
		lift := v.Max[1] - bottom
		if lift > wh.cfg.MaxResolution {
			return false
		}
		wh.location[1] += lift
		return wh.clear(w, wh.location)
	}
	below := geom.Floor(geom.Vec3{wh.location[0], bottom, wh.location[2]})
	if w.IsPassable(below) {
		lowered := wh.location.Sub(geom.UnitY)
		if wh.clear(w, lowered) {
			wh.location = lowered
			return true
		}
	}
	return wh.clear(w, wh.location)
}

func (wh *Wheel) clear(w World, at geom.Vec3) bool {
	disk := wh.disk.At(at)
	for _, v := range wh.nearby(w, at) {
		if disk.Intersects(v) {
			return false
		}
	}
	return true
}

func (wh *Wheel) nearby(w World, at geom.Vec3) []geom.AABB {
	half := wh.cfg.Radius + 0.5
	return w.NearbyVolumes(geom.BoxAround(at, geom.Vec3{half, half, half}))
}
