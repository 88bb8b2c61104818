// Package effects owns the live set of effect instances: it advances them
// once per tick, isolates their faults and hands the survivors to the
// collision resolver.
package effects

import (
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
)

type Status int

const (
	Continue Status = iota
	Remove
)

// Effect is one running ability instance.
type Effect interface {
	ID() model.EffectID
	Kind() model.Kind
	Owner() model.ActorID
	// Update advances the instance one tick. A panic or a non-nil error is a
	// fault: the instance is removed and the rest of the tick carries on.
	Update(tick uint64) (Status, error)
	Colliders() []geom.Collider
	OnCollision(c Collision)
	// OnOwnerChange is called after the instance has been moved to the new
	// owner's collection; Owner must report to from then on.
	OnOwnerChange(from, to model.ActorID)
	// OnDestroy is called exactly once when the instance leaves the live set.
	OnDestroy()
}

// Regional effects are refused by schedulers of other regions. An empty
// Region belongs to no region and is accepted everywhere.
type Regional interface {
	Region() string
}

// Collision is what one side of a resolved collision is told.
type Collision struct {
	Other  Effect
	Own    geom.Collider
	Theirs geom.Collider
	// Removed is true when the policy removes this side.
	Removed bool
}

type Remover interface {
	Remove(e Effect) bool
}

// CollisionResolver resolves collisions among the live set after every
// instance has been advanced.
type CollisionResolver interface {
	Resolve(tick uint64, live []Effect, r Remover) CollisionReport
}

type CollisionRecord struct {
	A        model.EffectID `json:"a"`
	B        model.EffectID `json:"b"`
	KindA    model.Kind     `json:"kind_a"`
	KindB    model.Kind     `json:"kind_b"`
	OwnerA   model.ActorID  `json:"owner_a"`
	OwnerB   model.ActorID  `json:"owner_b"`
	RemovedA bool           `json:"removed_a"`
	RemovedB bool           `json:"removed_b"`
}

type CollisionReport struct {
	// Candidates is the number of pairs the broad phase produced.
	Candidates int
	// Tested is the number of pairs that reached the narrow phase.
	Tested int
	Hits   []CollisionRecord
}
