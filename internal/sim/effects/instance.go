package effects

import (
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/trajectory"
)

type InstanceConfig struct {
	Kind    model.Kind
	Region  string
	Pattern trajectory.Pattern
	World   trajectory.World
	// Lifetime in ticks; zero means the pattern decides alone.
	Lifetime int

	OnCollision func(i *Instance, c Collision)
	OnDestroy   func(i *Instance)
}

// Instance drives one trajectory pattern as an Effect.
type Instance struct {
	id      model.EffectID
	cfg     InstanceConfig
	age     int
	expired bool
	hits    int
}

func NewInstance(cfg InstanceConfig) *Instance {
	return &Instance{id: model.NewEffectID(), cfg: cfg}
}

func (i *Instance) ID() model.EffectID          { return i.id }
func (i *Instance) Kind() model.Kind            { return i.cfg.Kind }
func (i *Instance) Region() string              { return i.cfg.Region }
func (i *Instance) Owner() model.ActorID        { return i.cfg.Pattern.Owner() }
func (i *Instance) Pattern() trajectory.Pattern { return i.cfg.Pattern }
func (i *Instance) Position() geom.Vec3         { return i.cfg.Pattern.Position() }
func (i *Instance) Colliders() []geom.Collider  { return i.cfg.Pattern.Colliders() }
func (i *Instance) Age() int                    { return i.age }
func (i *Instance) CollisionCount() int         { return i.hits }

// Reason explains why the instance stopped, or is empty while it runs.
func (i *Instance) Reason() trajectory.Reason {
	if i.expired {
		return trajectory.ReasonLifetime
	}
	return i.cfg.Pattern.Reason()
}

func (i *Instance) Update(tick uint64) (Status, error) {
	i.age++
	if i.cfg.Lifetime > 0 && i.age > i.cfg.Lifetime {
		i.expired = true
		return Remove, nil
	}
	if i.cfg.Pattern.Update(i.cfg.World) == trajectory.Terminated {
		return Remove, nil
	}
	return Continue, nil
}

func (i *Instance) OnCollision(c Collision) {
	i.hits++
	if i.cfg.OnCollision != nil {
		i.cfg.OnCollision(i, c)
	}
}

func (i *Instance) OnOwnerChange(_, to model.ActorID) {
	i.cfg.Pattern.SetOwner(to)
}

func (i *Instance) OnDestroy() {
	if i.cfg.OnDestroy != nil {
		i.cfg.OnDestroy(i)
	}
}
