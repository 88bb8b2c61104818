// Package trajectory implements the reusable per-tick movement patterns an
// effect instance is built from: Line, Stream, Wheel and Shot.
//
// A pattern holds only kinematic state. Everything kind-specific is passed in
// as Hooks, and everything about the voxel world goes through World.
package trajectory

import (
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
)

type State int

const (
	Active State = iota
	Terminated
)

func (s State) String() string {
	if s == Active {
		return "ACTIVE"
	}
	return "TERMINATED"
}

// Reason records why a pattern stopped.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonObstructed    Reason = "OBSTRUCTED"
	ReasonOutOfRange    Reason = "OUT_OF_RANGE"
	ReasonDenied        Reason = "DENIED"
	ReasonOwnerInvalid  Reason = "OWNER_INVALID"
	ReasonReachedTarget Reason = "REACHED_TARGET"
	ReasonEntityHit     Reason = "ENTITY_HIT"
	ReasonBlockHit      Reason = "BLOCK_HIT"
	ReasonExhausted     Reason = "EXHAUSTED"
	ReasonLifetime      Reason = "LIFETIME"
)

// World is the voxel world as seen by a pattern.
type World interface {
	IsPassable(v geom.Vec3i) bool
	CanModify(actor model.ActorID, v geom.Vec3i) bool
	NearbyVolumes(region geom.AABB) []geom.AABB
	QueryEntities(c geom.Collider, f model.EntityFilter) []model.Entity
}

// Hooks are the kind-specific capabilities of an effect. Nil hooks are
// skipped.
type Hooks struct {
	// Render is called with each new visible position.
	Render func(p geom.Vec3)
	// BlockHit is called when the pattern runs into voxel v. Returning true
	// ends the pattern.
	BlockHit func(v geom.Vec3i) bool
	// EntityHit is called for every entity the pattern's colliders touch.
	// Returning true counts as a hit and ends the pattern.
	EntityHit func(e model.Entity) bool
	// OwnerValid ends the pattern once it returns false.
	OwnerValid func(owner model.ActorID) bool
	// Target is polled each tick by homing patterns.
	Target func() (geom.Vec3, bool)
}

// Pattern is one per-tick movement behaviour.
type Pattern interface {
	// Update advances one tick and returns the resulting state.
	Update(w World) State
	Colliders() []geom.Collider
	Position() geom.Vec3
	State() State
	Reason() Reason
	Owner() model.ActorID
	SetOwner(owner model.ActorID)
}

// EntityQuery controls HandleEntities.
type EntityQuery struct {
	LivingOnly  bool
	IncludeSelf bool
	// EarlyEscape stops at the first entity the callback accepts.
	EarlyEscape bool
}

// HandleEntities runs fn for every entity in the world that collider
// touches, and reports whether fn accepted any of them.
func HandleEntities(w World, owner model.ActorID, collider geom.Collider, q EntityQuery, fn func(model.Entity) bool) bool {
	if fn == nil || collider == nil {
		return false
	}
	hit := false
	entities := w.QueryEntities(collider, model.EntityFilter{
		Owner:       owner,
		LivingOnly:  q.LivingOnly,
		IncludeSelf: q.IncludeSelf,
	})
	for _, e := range entities {
		if !collider.Intersects(e.Bounds) {
			continue
		}
		if fn(e) {
			hit = true
			if q.EarlyEscape {
				return true
			}
		}
	}
	return hit
}

// base carries the fields every pattern shares.
type base struct {
	owner  model.ActorID
	hooks  Hooks
	state  State
	reason Reason
}

func (b *base) State() State                 { return b.state }
func (b *base) Reason() Reason               { return b.reason }
func (b *base) Owner() model.ActorID         { return b.owner }
func (b *base) SetOwner(owner model.ActorID) { b.owner = owner }

func (b *base) terminate(r Reason) State {
	if b.state == Active {
		b.state = Terminated
		b.reason = r
	}
	return b.state
}

// begin reports whether the tick should run at all.
func (b *base) begin() bool {
	if b.state != Active {
		return false
	}
	if b.hooks.OwnerValid != nil && !b.hooks.OwnerValid(b.owner) {
		b.terminate(ReasonOwnerInvalid)
		return false
	}
	return true
}

func (b *base) render(p geom.Vec3) {
	if b.hooks.Render != nil {
		b.hooks.Render(p)
	}
}

func (b *base) blockHit(v geom.Vec3i) bool {
	return b.hooks.BlockHit != nil && b.hooks.BlockHit(v)
}

func (b *base) entityHits(w World, c geom.Collider, q EntityQuery) bool {
	return HandleEntities(w, b.owner, c, q, b.hooks.EntityHit)
}

// speedBuffer converts a fractional speed into whole voxel moves. Speeds are
// counted in twentieths of a voxel per tick and capped at one voxel.
type speedBuffer struct {
	speed  int
	buffer int
}

const speedUnit = 20

func newSpeedBuffer(voxelsPerTick float64) speedBuffer {
	s := int(voxelsPerTick*speedUnit + 0.5)
	if s < 1 {
		s = 1
	}
	if s > speedUnit {
		s = speedUnit
	}
	return speedBuffer{speed: s}
}

// tick reports whether the pattern moves one voxel this tick.
func (b *speedBuffer) tick() bool {
	b.buffer += b.speed
	if b.buffer < speedUnit {
		return false
	}
	b.buffer -= speedUnit
	return true
}
