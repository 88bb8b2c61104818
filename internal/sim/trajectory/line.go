package trajectory

import (
	"math"

	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/movement"
)

// lockRange is how far a followed target may jump between ticks before the
// line lets go of it.
const lockRange = 5

type LineConfig struct {
	Owner model.ActorID
	// Origin is where the line starts; range is measured from here.
	Origin geom.Vec3
	// Target sets the initial heading, projected onto the XZ plane.
	Target geom.Vec3
	Speed  float64
	Range  float64
	// Radius of the travelling sphere. Zero means 1.
	Radius float64
	// Follow re-aims at Hooks.Target every tick while the lock holds.
	Follow bool
	// SkipVertical lets the line climb or drop one voxel per tick toward the
	// target height.
	SkipVertical bool
	// Ground reports whether a voxel can carry the line. Nil means any
	// voxel that is not passable.
	Ground   func(geom.Vec3i) bool
	Entities EntityQuery
	Hooks    Hooks
}

// Line travels along the ground on the XZ plane, stepping up and down single
// voxel ledges.
type Line struct {
	base
	cfg       LineConfig
	location  geom.Vec3
	direction geom.Vec3
	target    geom.Vec3
	locked    bool
	collider  geom.Sphere
}

func NewLine(cfg LineConfig) *Line {
	if cfg.Radius <= 0 {
		cfg.Radius = 1
	}
	l := &Line{
		base:      base{owner: cfg.Owner, hooks: cfg.Hooks},
		cfg:       cfg,
		location:  cfg.Origin,
		direction: geom.HorizontalDirection(cfg.Target.Sub(cfg.Origin)),
		target:    cfg.Target,
		locked:    cfg.Follow && cfg.Hooks.Target != nil,
	}
	l.collider = geom.Sphere{Center: l.location, Radius: cfg.Radius}
	return l
}

func (l *Line) Position() geom.Vec3 { return l.location }

func (l *Line) Direction() geom.Vec3 { return l.direction }

func (l *Line) Locked() bool { return l.locked }

func (l *Line) Colliders() []geom.Collider {
	if l.state != Active {
		return nil
	}
	return []geom.Collider{l.collider}
}

func (l *Line) Update(w World) State {
	if !l.begin() {
		return l.state
	}
	l.follow()

	l.collider = l.collider.At(l.location)
	if l.entityHits(w, l.collider, l.cfg.Entities) {
		return l.terminate(ReasonEntityHit)
	}
	l.render(l.location)

	r := movement.Resolver{Valid: l.valid(w), Passable: w.IsPassable}
	res := r.Resolve(l.location, l.direction.Mul(l.cfg.Speed))
	if !res.OK {
		l.blockHit(res.Blocked)
		return l.terminate(ReasonObstructed)
	}
	l.location = res.Position
	if l.cfg.SkipVertical {
		l.climb(w)
	}
	l.collider = l.collider.At(l.location)

	if geom.DistanceSq(l.location, l.cfg.Origin) > l.cfg.Range*l.cfg.Range {
		return l.terminate(ReasonOutOfRange)
	}
	if !w.CanModify(l.owner, geom.Floor(l.location)) {
		return l.terminate(ReasonDenied)
	}
	return l.state
}

func (l *Line) follow() {
	if !l.locked {
		return
	}
	t, ok := l.hooks.Target()
	if !ok || geom.DistanceSq(t, l.target) > lockRange*lockRange {
		l.locked = false
		return
	}
	l.target = t
	if d := geom.HorizontalDirection(t.Sub(l.location)); d != (geom.Vec3{}) {
		l.direction = d
	}
}

func (l *Line) climb(w World) {
	dy := l.target[1] - l.location[1]
	if math.Abs(dy) < 1 {
		return
	}
	step := geom.Vec3{0, math.Copysign(1, dy), 0}
	next := l.location.Add(step)
	if l.valid(w)(geom.Floor(next)) {
		l.location = next
	}
}

func (l *Line) valid(w World) movement.Predicate {
	ground := l.cfg.Ground
	if ground == nil {
		ground = func(v geom.Vec3i) bool { return !w.IsPassable(v) }
	}
	return func(v geom.Vec3i) bool {
		return w.IsPassable(v) && ground(v.Down())
	}
}
