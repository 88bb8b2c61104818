// Package movement resolves one tick of voxel-aware motion.
package movement

import (
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/grid"
)

// DefaultMaxBlockedCorners lets a diagonal step squeeze past a single blocked
// corner; it fails only when more than one corner voxel is obstructed.
const DefaultMaxBlockedCorners = 1

type Predicate func(geom.Vec3i) bool

// Resolver is a pure function of its predicates. Valid decides whether a
// voxel may hold the moving body; Passable decides whether the body may pass
// through a voxel on the way (it defaults to Valid).
type Resolver struct {
	Valid    Predicate
	Passable Predicate

	// MaxBlockedCorners is how many corner voxels a diagonal step tolerates.
	// Nil means DefaultMaxBlockedCorners.
	MaxBlockedCorners *int
	// NoVertical disables the one-voxel step up / step down correction.
	NoVertical bool
}

type Result struct {
	// Position is the destination on success and the origin on failure.
	Position geom.Vec3
	OK       bool
	// Contact is the point the body tried to reach when the move failed.
	Contact geom.Vec3
	// Blocked is the voxel that stopped the move.
	Blocked geom.Vec3i
	// Vertical is -1, 0 or +1 voxels of step correction applied.
	Vertical int
}

// Resolve moves origin by step. If the destination voxel is not valid it
// tries one voxel up (when the voxel above the origin is passable), then one
// voxel down (when the destination voxel itself can be passed through). The corner voxels
// of the horizontal part of the step are then checked against
// MaxBlockedCorners.
func (r Resolver) Resolve(origin, step geom.Vec3) Result {
	dest := origin.Add(step)
	src := geom.Floor(origin)
	dv := geom.Floor(dest)

	vertical := 0
	if !r.valid(dv) {
		switch {
		case r.NoVertical:
			return fail(origin, dest, dv)
		case r.valid(dv.Up()) && r.passable(src.Up()):
			vertical = 1
		case r.valid(dv.Down()) && r.passable(dv):
			vertical = -1
		default:
			return fail(origin, dest, dv)
		}
		dest = dest.Add(geom.Vec3{0, float64(vertical), 0})
	}

	if blocked, ok := r.CornersBlocked(origin, geom.Vec3{step[0], 0, step[2]}); ok {
		return fail(origin, dest, blocked)
	}
	return Result{Position: dest, OK: true, Contact: dest, Vertical: vertical}
}

// CornersBlocked checks the corner voxels next to origin that the step
// crosses and reports the first blocked one when more than MaxBlockedCorners
// of them are obstructed.
func (r Resolver) CornersBlocked(origin, step geom.Vec3) (geom.Vec3i, bool) {
	corners := grid.Corners(origin, step)
	if len(corners) < 2 && r.maxBlocked() >= 1 {
		return geom.Vec3i{}, false
	}
	src := geom.Floor(origin)
	var first geom.Vec3i
	blocked := 0
	for _, c := range corners {
		if c.IsZero() {
			continue
		}
		v := src.Add(c)
		if r.passable(v) {
			continue
		}
		if blocked == 0 {
			first = v
		}
		blocked++
	}
	return first, blocked > r.maxBlocked()
}

func (r Resolver) valid(v geom.Vec3i) bool {
	return r.Valid == nil || r.Valid(v)
}

func (r Resolver) passable(v geom.Vec3i) bool {
	if r.Passable != nil {
		return r.Passable(v)
	}
	return r.valid(v)
}

func (r Resolver) maxBlocked() int {
	if r.MaxBlockedCorners == nil {
		return DefaultMaxBlockedCorners
	}
	return *r.MaxBlockedCorners
}

func fail(origin, contact geom.Vec3, blocked geom.Vec3i) Result {
	return Result{Position: origin, Contact: contact, Blocked: blocked}
}

// Strict is a MaxBlockedCorners of zero: any obstructed corner stops the step.
func Strict() *int {
	z := 0
	return &z
}
