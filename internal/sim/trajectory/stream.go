package trajectory

import (
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/grid"
	"voxelfx.dev/internal/sim/model"
)

type StreamConfig struct {
	Owner model.ActorID
	// Sources are the voxels the stream starts as, head first.
	Sources []geom.Vec3i
	Target  geom.Vec3
	// Anchor is the point range is measured from. Nil means the first
	// source's centre.
	Anchor    func() geom.Vec3
	Speed     float64
	Range     float64
	Tolerance float64
	MaxLength int
	Entities  EntityQuery
	Hooks     Hooks
}

// Stream is a queue of voxels flowing toward a target. Each move pushes a
// new head; the tail stays until the queue reaches MaxLength, and a move
// that cannot render a head drains one voxel from the tail. With no
// MaxLength the stream keeps the length of its sources.
type Stream struct {
	base
	cfg       StreamConfig
	voxels    []geom.Vec3i
	target    geom.Vec3
	anchor    geom.Vec3
	speed     speedBuffer
	colliders []geom.Collider
	lastSkip  Reason
}

func NewStream(cfg StreamConfig) *Stream {
	voxels := append([]geom.Vec3i(nil), cfg.Sources...)
	if cfg.MaxLength > 0 && len(voxels) > cfg.MaxLength {
		voxels = voxels[:cfg.MaxLength]
	}
	s := &Stream{
		base:   base{owner: cfg.Owner, hooks: cfg.Hooks},
		cfg:    cfg,
		voxels: voxels,
		target: cfg.Target,
		speed:  newSpeedBuffer(cfg.Speed),
	}
	if len(voxels) > 0 {
		s.anchor = voxels[0].Center()
	}
	s.rebuildColliders()
	return s
}

func (s *Stream) Voxels() []geom.Vec3i { return append([]geom.Vec3i(nil), s.voxels...) }

func (s *Stream) Position() geom.Vec3 {
	if len(s.voxels) == 0 {
		return s.anchor
	}
	return s.voxels[0].Center()
}

func (s *Stream) Colliders() []geom.Collider {
	if s.state != Active {
		return nil
	}
	return s.colliders
}

func (s *Stream) Update(w World) State {
	if !s.begin() {
		return s.state
	}
	if len(s.voxels) == 0 {
		return s.terminate(ReasonExhausted)
	}
	if !s.speed.tick() {
		return s.state
	}
	if s.hooks.Target != nil {
		if t, ok := s.hooks.Target(); ok {
			s.target = t
		}
	}

	head := s.voxels[0]
	from := head.Center()
	dir := geom.Normalize(s.target.Sub(from))
	if dir == (geom.Vec3{}) {
		return s.terminate(ReasonReachedTarget)
	}
	next := geom.Floor(from.Add(dir))
	if !w.CanModify(s.owner, next) {
		return s.terminate(ReasonDenied)
	}
	limit := s.cfg.MaxLength
	if limit <= 0 {
		limit = len(s.voxels)
	}

	anchor := s.anchor
	if s.cfg.Anchor != nil {
		anchor = s.cfg.Anchor()
	}
	grown := false
	if geom.DistanceSq(next.Center(), anchor) <= s.cfg.Range*s.cfg.Range {
		if s.push(w, head, from, dir, next) {
			return s.terminate(ReasonBlockHit)
		}
		grown = s.lastSkip == ReasonNone
	} else {
		s.lastSkip = ReasonOutOfRange
	}
	if !grown || len(s.voxels) > limit {
		s.voxels = s.voxels[:len(s.voxels)-1]
	}
	if len(s.voxels) == 0 {
		if s.lastSkip != ReasonNone {
			return s.terminate(s.lastSkip)
		}
		return s.terminate(ReasonExhausted)
	}

	s.rebuildColliders()
	if s.entityHitsAll(w) {
		return s.terminate(ReasonEntityHit)
	}
	if tol := s.cfg.Tolerance; tol > 0 && geom.DistanceSq(s.voxels[0].Center(), s.target) <= tol*tol {
		return s.terminate(ReasonReachedTarget)
	}
	return s.state
}

// push adds next as the new head unless a blocked corner or the voxel itself
// stops it. It reports whether a block hit ended the stream.
func (s *Stream) push(w World, head geom.Vec3i, from, dir geom.Vec3, next geom.Vec3i) bool {
	for _, c := range grid.Corners(from, dir) {
		if c.IsZero() {
			continue
		}
		if v := head.Add(c); !w.IsPassable(v) {
			s.lastSkip = ReasonObstructed
			return s.blockHit(v)
		}
	}
	if !w.IsPassable(next) {
		s.lastSkip = ReasonObstructed
		return s.blockHit(next)
	}
	s.lastSkip = ReasonNone
	s.render(next.Center())
	s.voxels = append([]geom.Vec3i{next}, s.voxels...)
	return false
}

// entityHitsAll runs the entity hook over every voxel of the stream, so all
// bodies it touches this tick are hit, each at most once. EarlyEscape is
// ignored here.
func (s *Stream) entityHitsAll(w World) bool {
	if s.hooks.EntityHit == nil {
		return false
	}
	seen := map[model.ActorID]bool{}
	once := func(e model.Entity) bool {
		if seen[e.ID] {
			return false
		}
		seen[e.ID] = true
		return s.hooks.EntityHit(e)
	}
	q := s.cfg.Entities
	q.EarlyEscape = false
	hit := false
	for _, c := range s.colliders {
		if HandleEntities(w, s.owner, c, q, once) {
			hit = true
		}
	}
	return hit
}

func (s *Stream) rebuildColliders() {
	cs := make([]geom.Collider, 0, len(s.voxels))
	for _, v := range s.voxels {
		cs = append(cs, geom.ExpandedBlockBounds(v))
	}
	s.colliders = cs
}
