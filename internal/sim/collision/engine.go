// Package collision resolves effect-versus-effect collisions once per tick:
// a Morton-ordered bounding volume hierarchy finds candidate pairs and a
// policy table decides what each hit removes.
package collision

import (
	"voxelfx.dev/internal/sim/effects"
	"voxelfx.dev/internal/sim/geom"
)

type Options struct {
	// SelfCollision lets instances of the same owner collide.
	SelfCollision bool
}

// Engine implements effects.CollisionResolver.
type Engine struct {
	policies *PolicyTable
	opts     Options
}

func NewEngine(policies *PolicyTable, opts Options) *Engine {
	return &Engine{policies: policies, opts: opts}
}

type entry struct {
	effect    effects.Effect
	colliders []geom.Collider
	box       geom.AABB
	pruned    bool
}

// Resolve builds the hierarchy over the live set, walks its candidate pairs
// in order and applies the policy to every pair whose colliders touch.
// Removal goes through r, and an instance pruned earlier in the walk takes
// part in no further pairs.
func (e *Engine) Resolve(_ uint64, live []effects.Effect, r effects.Remover) effects.CollisionReport {
	var rep effects.CollisionReport
	entries := make([]entry, 0, len(live))
	for _, fx := range live {
		cs := fx.Colliders()
		if len(cs) == 0 {
			continue
		}
		var box geom.AABB
		for _, c := range cs {
			box = box.Union(c.Bounds())
		}
		entries = append(entries, entry{effect: fx, colliders: cs, box: box})
	}
	if len(entries) < 2 {
		return rep
	}

	boxes := make([]geom.AABB, len(entries))
	for i := range entries {
		boxes[i] = entries[i].box
	}
	pairs := Build(boxes).SelfQuery()
	rep.Candidates = len(pairs)

	for _, p := range pairs {
		a, b := &entries[p.A], &entries[p.B]
		if a.pruned || b.pruned {
			continue
		}
		if !e.opts.SelfCollision && a.effect.Owner() == b.effect.Owner() {
			continue
		}
		out, ok := e.policies.Lookup(a.effect.Kind(), b.effect.Kind())
		if !ok {
			continue
		}
		rep.Tested++
		ca, cb, hit := firstHit(a.colliders, b.colliders)
		if !hit {
			continue
		}

		a.effect.OnCollision(effects.Collision{Other: b.effect, Own: ca, Theirs: cb, Removed: out.RemoveA})
		b.effect.OnCollision(effects.Collision{Other: a.effect, Own: cb, Theirs: ca, Removed: out.RemoveB})
		if out.RemoveA {
			a.pruned = true
			r.Remove(a.effect)
		}
		if out.RemoveB {
			b.pruned = true
			r.Remove(b.effect)
		}
		rep.Hits = append(rep.Hits, effects.CollisionRecord{
			A:        a.effect.ID(),
			B:        b.effect.ID(),
			KindA:    a.effect.Kind(),
			KindB:    b.effect.Kind(),
			OwnerA:   a.effect.Owner(),
			OwnerB:   b.effect.Owner(),
			RemovedA: out.RemoveA,
			RemovedB: out.RemoveB,
		})
	}
	return rep
}

// firstHit tests every collider of one side against every collider of the
// other and stops at the first intersection.
func firstHit(as, bs []geom.Collider) (geom.Collider, geom.Collider, bool) {
	for _, a := range as {
		for _, b := range bs {
			if a.Intersects(b) {
				return a, b, true
			}
		}
	}
	return nil, nil, false
}
