// Package terrain is an in-memory voxel world: sparse blocks, protected
// areas and entities. It backs the demo server and the simulation tests.
package terrain

import (
	"sync"

	"github.com/google/uuid"

	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
)

type Block uint8

const (
	Air Block = iota
	Solid
	Liquid
)

// Claim is an area only its owner may modify.
type Claim struct {
	Owner  model.ActorID
	Bounds geom.AABB
}

type World struct {
	mu       sync.RWMutex
	blocks   map[geom.Vec3i]Block
	claims   []Claim
	entities []model.Entity
	index    map[uuid.UUID]int
}

func New() *World {
	return &World{
		blocks: map[geom.Vec3i]Block{},
		index:  map[uuid.UUID]int{},
	}
}

func (w *World) Block(v geom.Vec3i) Block {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blocks[v]
}

func (w *World) SetBlock(v geom.Vec3i, b Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b == Air {
		delete(w.blocks, v)
		return
	}
	w.blocks[v] = b
}

// Fill sets every voxel in the inclusive range [min, max].
func (w *World) Fill(min, max geom.Vec3i, b Block) {
	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				w.SetBlock(geom.Vec3i{X: x, Y: y, Z: z}, b)
			}
		}
	}
}

func (w *World) Claim(c Claim) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.claims = append(w.claims, c)
}

// PutEntity adds e or replaces the entity with the same ID.
func (w *World) PutEntity(e model.Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i, ok := w.index[e.ID]; ok {
		w.entities[i] = e
		return
	}
	w.index[e.ID] = len(w.entities)
	w.entities = append(w.entities, e)
}

func (w *World) RemoveEntity(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.index[id]
	if !ok {
		return
	}
	w.entities = append(w.entities[:i], w.entities[i+1:]...)
	delete(w.index, id)
	for j := i; j < len(w.entities); j++ {
		w.index[w.entities[j].ID] = j
	}
}

func (w *World) Entity(id uuid.UUID) (model.Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.index[id]
	if !ok {
		return model.Entity{}, false
	}
	return w.entities[i], true
}

// IsPassable reports whether a body can occupy v. Liquids count as passable.
func (w *World) IsPassable(v geom.Vec3i) bool {
	return w.Block(v) != Solid
}

func (w *World) IsLiquid(v geom.Vec3i) bool {
	return w.Block(v) == Liquid
}

// CanModify is false inside any claim not owned by actor.
func (w *World) CanModify(actor model.ActorID, v geom.Vec3i) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p := v.Center()
	for _, c := range w.claims {
		if c.Owner != actor && c.Bounds.Contains(p) {
			return false
		}
	}
	return true
}

// NearbyVolumes returns the unit boxes of the solid voxels touching region,
// in x, y, z order.
func (w *World) NearbyVolumes(region geom.AABB) []geom.AABB {
	min, max := geom.Floor(region.Min), geom.Floor(region.Max)
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []geom.AABB
	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				v := geom.Vec3i{X: x, Y: y, Z: z}
				if w.blocks[v] == Solid {
					out = append(out, geom.BlockBounds(v))
				}
			}
		}
	}
	return out
}

// QueryEntities returns the entities whose bounds overlap c's bounds, in the
// order they were added. The owner's own entity is skipped unless
// f.IncludeSelf is set.
func (w *World) QueryEntities(c geom.Collider, f model.EntityFilter) []model.Entity {
	box := c.Bounds()
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []model.Entity
	for _, e := range w.entities {
		if f.LivingOnly && !e.Living {
			continue
		}
		if !f.IncludeSelf && e.ID == f.Owner {
			continue
		}
		if box.Overlaps(e.Bounds) {
			out = append(out, e)
		}
	}
	return out
}
