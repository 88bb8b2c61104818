package trajectory

import (
	"math"

	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/grid"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/movement"
)

// DefaultShotTolerance is the distance at which a shot counts as arrived.
var DefaultShotTolerance = math.Sqrt(0.8)

type ShotConfig struct {
	Owner model.ActorID
	// Origin is a point inside the voxel the shot starts from.
	Origin geom.Vec3
	Target geom.Vec3
	// Anchor is the point range is measured from. Nil means Origin.
	Anchor    func() geom.Vec3
	Speed     float64
	Range     float64
	Tolerance float64
	// Settle makes the shot first rise or fall to the target's height
	// before it heads for the target.
	Settle   bool
	Entities EntityQuery
	Hooks    Hooks
}

// Shot is a single voxel homing in on a target. Hooks.Target, when set,
// redirects it every tick.
type Shot struct {
	base
	cfg      ShotConfig
	location geom.Vec3
	target   geom.Vec3
	speed    speedBuffer
	settling bool
}

func NewShot(cfg ShotConfig) *Shot {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultShotTolerance
	}
	return &Shot{
		base:     base{owner: cfg.Owner, hooks: cfg.Hooks},
		cfg:      cfg,
		location: geom.Floor(cfg.Origin).Center(),
		target:   cfg.Target,
		speed:    newSpeedBuffer(cfg.Speed),
		settling: cfg.Settle,
	}
}

func (s *Shot) Position() geom.Vec3 { return s.location }

func (s *Shot) Colliders() []geom.Collider {
	if s.state != Active {
		return nil
	}
	return []geom.Collider{geom.ExpandedBlockBounds(geom.Floor(s.location))}
}

func (s *Shot) Update(w World) State {
	if !s.begin() {
		return s.state
	}
	if !s.speed.tick() {
		return s.state
	}
	if s.hooks.Target != nil {
		if t, ok := s.hooks.Target(); ok {
			s.target = t
		}
	}

	step, ok := s.nextStep(w)
	if !ok {
		return s.terminate(ReasonReachedTarget)
	}
	r := movement.Resolver{Valid: w.IsPassable, MaxBlockedCorners: movement.Strict(), NoVertical: true}
	if v, blocked := r.CornersBlocked(s.location, step); blocked {
		s.blockHit(v)
		return s.terminate(ReasonObstructed)
	}
	if v, blocked := s.firstSolid(w, step); blocked {
		s.blockHit(v)
		return s.terminate(ReasonObstructed)
	}
	s.location = s.location.Add(step)

	anchor := s.cfg.Origin
	if s.cfg.Anchor != nil {
		anchor = s.cfg.Anchor()
	}
	if geom.DistanceSq(s.location, anchor) > s.cfg.Range*s.cfg.Range {
		return s.terminate(ReasonOutOfRange)
	}
	cur := geom.Floor(s.location)
	if !w.CanModify(s.owner, cur) {
		return s.terminate(ReasonDenied)
	}
	s.render(s.location)
	if s.entityHits(w, geom.ExpandedBlockBounds(cur), s.cfg.Entities) {
		return s.terminate(ReasonEntityHit)
	}
	if geom.DistanceSq(s.location, s.target) < s.cfg.Tolerance*s.cfg.Tolerance {
		return s.terminate(ReasonReachedTarget)
	}
	return s.state
}

// nextStep picks this tick's displacement. A step that would stay inside the
// current voxel is doubled so the shot always advances.
func (s *Shot) nextStep(w World) (geom.Vec3, bool) {
	if s.settling {
		dy := s.target[1] - s.location[1]
		if math.Abs(dy) >= 1 {
			up := geom.Vec3{0, math.Copysign(1, dy), 0}
			if w.IsPassable(geom.Floor(s.location.Add(up))) {
				return up, true
			}
		}
		s.settling = false
	}
	dir := geom.Normalize(s.target.Sub(s.location))
	if dir == (geom.Vec3{}) {
		return geom.Vec3{}, false
	}
	if geom.Floor(s.location.Add(dir)) == geom.Floor(s.location) {
		dir = dir.Mul(2)
	}
	return dir, true
}

// firstSolid walks the voxels crossed by step and returns the first one that
// cannot be passed.
func (s *Shot) firstSolid(w World, step geom.Vec3) (geom.Vec3i, bool) {
	start := geom.Floor(s.location)
	var hit geom.Vec3i
	found := false
	grid.Walk(s.location, step, step.Len(), func(v geom.Vec3i) bool {
		if v == start {
			return true
		}
		if !w.IsPassable(v) {
			hit, found = v, true
			return false
		}
		return true
	})
	return hit, found
}
