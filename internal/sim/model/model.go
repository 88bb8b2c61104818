// Package model holds the identifiers shared by the simulation packages.
package model

import (
	"github.com/google/uuid"

	"voxelfx.dev/internal/sim/geom"
)

// ActorID identifies the owner of an effect instance.
type ActorID = uuid.UUID

// EffectID identifies one effect instance for its whole lifetime.
type EffectID = uuid.UUID

// Kind names an effect kind from the catalog, e.g. "AIR_SWIPE".
type Kind string

func NewActorID() ActorID { return uuid.New() }

func NewEffectID() EffectID { return uuid.New() }

// ParseActorID accepts the canonical UUID text form.
func ParseActorID(s string) (ActorID, error) { return uuid.Parse(s) }

// Entity is a body in the world that effects can hit.
type Entity struct {
	ID     uuid.UUID `json:"id"`
	Bounds geom.AABB `json:"bounds"`
	Living bool      `json:"living"`
}

// EntityFilter narrows an entity query made on behalf of Owner.
type EntityFilter struct {
	Owner       ActorID
	LivingOnly  bool
	IncludeSelf bool
}
