package region

import (
	"fmt"

	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/effects"
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/trajectory"
)

// CastRequest asks for one instance of a catalog kind.
type CastRequest struct {
	Kind   model.Kind
	Owner  model.ActorID
	Origin geom.Vec3
	Target geom.Vec3
	// Track, when set, is polled every tick by homing and following kinds.
	Track func() (geom.Vec3, bool)
	// Hooks override the defaults field by field.
	Hooks trajectory.Hooks
	// OnCollision runs after the engine reports a hit.
	OnCollision func(i *effects.Instance, c effects.Collision)
}

type entityDirectory interface {
	Entity(id model.ActorID) (model.Entity, bool)
}

// Build turns a request into an instance without queueing it.
func (r *Region) Build(req CastRequest) (*effects.Instance, error) {
	def, err := r.cat.Kind(req.Kind)
	if err != nil {
		return nil, err
	}
	hooks := r.hooks(req)
	q := trajectory.EntityQuery{LivingOnly: def.LivingOnly, EarlyEscape: true}

	var p trajectory.Pattern
	switch def.Pattern {
	case catalogs.PatternLine:
		p = trajectory.NewLine(trajectory.LineConfig{
			Owner:        req.Owner,
			Origin:       req.Origin,
			Target:       req.Target,
			Speed:        def.Speed,
			Range:        def.Range,
			Radius:       def.Radius,
			Follow:       def.Follow,
			SkipVertical: def.SkipVertical,
			Entities:     q,
			Hooks:        hooks,
		})
	case catalogs.PatternStream:
		p = trajectory.NewStream(trajectory.StreamConfig{
			Owner:     req.Owner,
			Sources:   []geom.Vec3i{geom.Floor(req.Origin)},
			Target:    req.Target,
			Speed:     def.Speed,
			Range:     def.Range,
			Tolerance: def.Tolerance,
			MaxLength: def.MaxLength,
			Entities:  q,
			Hooks:     hooks,
		})
	case catalogs.PatternWheel:
		p = trajectory.NewWheel(trajectory.WheelConfig{
			Owner:     req.Owner,
			Origin:    req.Origin,
			Direction: req.Target.Sub(req.Origin),
			Speed:     def.Speed,
			Radius:    def.Radius,
			Range:     def.Range,
			Entities:  q,
			Hooks:     hooks,
		})
	case catalogs.PatternShot:
		p = trajectory.NewShot(trajectory.ShotConfig{
			Owner:     req.Owner,
			Origin:    req.Origin,
			Target:    req.Target,
			Speed:     def.Speed,
			Range:     def.Range,
			Tolerance: def.Tolerance,
			Settle:    def.Settle,
			Entities:  q,
			Hooks:     hooks,
		})
	default:
		return nil, fmt.Errorf("%w: %s has pattern %q", catalogs.ErrInvalid, def.Name, def.Pattern)
	}

	return effects.NewInstance(effects.InstanceConfig{
		Kind:        def.Name,
		Region:      r.cfg.ID,
		Pattern:     p,
		World:       r.world,
		Lifetime:    def.LifetimeTicks,
		OnCollision: req.OnCollision,
		OnDestroy:   r.recordEnd,
	}), nil
}

// Cast builds the instance and queues it for the next tick. Safe from any
// goroutine as long as the world is.
func (r *Region) Cast(req CastRequest) (model.EffectID, error) {
	i, err := r.Build(req)
	if err != nil {
		return model.EffectID{}, err
	}
	if err := r.Spawn(i); err != nil {
		return model.EffectID{}, err
	}
	return i.ID(), nil
}

// hooks fills in defaults: entity hits end the pattern, Track feeds the
// target, and an owner the world knows about must stay alive.
func (r *Region) hooks(req CastRequest) trajectory.Hooks {
	h := req.Hooks
	if h.EntityHit == nil {
		h.EntityHit = func(model.Entity) bool { return true }
	}
	if h.Target == nil && req.Track != nil {
		h.Target = req.Track
	}
	if h.OwnerValid == nil {
		if dir, ok := r.world.(entityDirectory); ok {
			if _, known := dir.Entity(req.Owner); known {
				h.OwnerValid = func(owner model.ActorID) bool {
					e, ok := dir.Entity(owner)
					return ok && e.Living
				}
			}
		}
	}
	return h
}
