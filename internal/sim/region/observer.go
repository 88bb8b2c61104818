package region

import (
	"context"
	"encoding/json"

	"voxelfx.dev/internal/observerproto"
	"voxelfx.dev/internal/sim/effects"
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
)

type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	Filter    ObserverFilter
}

type ObserverSubscribeRequest struct {
	SessionID string
	Filter    ObserverFilter
}

// ObserverFilter selects which effects a session sees. The zero value
// passes everything.
type ObserverFilter struct {
	Kinds     []model.Kind
	Owner     model.ActorID
	Colliders bool
}

type observer struct {
	id      string
	tickOut chan []byte
	kinds   map[model.Kind]bool
	owner   model.ActorID
	boxes   bool
}

func (o *observer) apply(f ObserverFilter) {
	o.kinds = nil
	if len(f.Kinds) > 0 {
		o.kinds = make(map[model.Kind]bool, len(f.Kinds))
		for _, k := range f.Kinds {
			o.kinds[k] = true
		}
	}
	o.owner = f.Owner
	o.boxes = f.Colliders
}

func (o *observer) wants(fx effects.Effect) bool {
	if o.kinds != nil && !o.kinds[fx.Kind()] {
		return false
	}
	return o.owner == (model.ActorID{}) || o.owner == fx.Owner()
}

func (r *Region) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	if old := r.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	o := &observer{id: req.SessionID, tickOut: req.TickOut}
	o.apply(req.Filter)
	r.observers[req.SessionID] = o
}

func (r *Region) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if o := r.observers[req.SessionID]; o != nil {
		o.apply(req.Filter)
	}
}

func (r *Region) handleObserverLeave(sessionID string) {
	o := r.observers[sessionID]
	if o == nil {
		return
	}
	delete(r.observers, sessionID)
	close(o.tickOut)
}

func (r *Region) publish(tick uint64, entry TickLogEntry) {
	if len(r.observers) == 0 {
		return
	}
	live := r.sched.Instances()

	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		RegionID:        r.cfg.ID,
		Live:            entry.Live,
		Terminated:      entry.Terminated,
		Faults:          entry.Faults,
		PairsTested:     entry.PairsTested,
	}
	for _, h := range entry.Collisions {
		msg.Collisions = append(msg.Collisions, observerproto.CollisionInfo{
			A:        h.A.String(),
			B:        h.B.String(),
			KindA:    string(h.KindA),
			KindB:    string(h.KindB),
			RemovedA: h.RemovedA,
			RemovedB: h.RemovedB,
		})
	}
	for _, e := range entry.Ended {
		msg.Ended = append(msg.Ended, observerproto.EndInfo{Effect: e.Effect.String(), Kind: string(e.Kind), Reason: e.Reason})
	}

	// Sessions without a filter share one encoding.
	var shared []byte
	for _, o := range r.observers {
		if o.kinds == nil && o.owner == (model.ActorID{}) && !o.boxes && shared != nil {
			sendLatest(o.tickOut, shared)
			continue
		}
		m := msg
		m.Effects = make([]observerproto.EffectState, 0, len(live))
		for _, fx := range live {
			if o.wants(fx) {
				m.Effects = append(m.Effects, effectState(fx, o.boxes))
			}
		}
		b, err := json.Marshal(m)
		if err != nil {
			r.logger.Printf("region=%s tick=%d observer encode: %v", r.cfg.ID, tick, err)
			return
		}
		if o.kinds == nil && o.owner == (model.ActorID{}) && !o.boxes {
			shared = b
		}
		sendLatest(o.tickOut, b)
	}
}

type positioned interface {
	Position() geom.Vec3
}

type aged interface {
	Age() int
}

func effectState(fx effects.Effect, boxes bool) observerproto.EffectState {
	st := observerproto.EffectState{
		ID:    fx.ID().String(),
		Kind:  string(fx.Kind()),
		Owner: fx.Owner().String(),
	}
	cs := fx.Colliders()
	if p, ok := fx.(positioned); ok {
		st.Pos = vec3Array(p.Position())
	} else if len(cs) > 0 {
		st.Pos = vec3Array(cs[0].Position())
	}
	if a, ok := fx.(aged); ok {
		st.Age = a.Age()
	}
	if boxes {
		for _, c := range cs {
			b := c.Bounds()
			st.Colliders = append(st.Colliders, observerproto.ColliderState{
				Shape: shapeName(c),
				Min:   vec3Array(b.Min),
				Max:   vec3Array(b.Max),
			})
		}
	}
	return st
}

func shapeName(c geom.Collider) string {
	switch c.(type) {
	case geom.AABB:
		return "AABB"
	case geom.OBB:
		return "OBB"
	case geom.Sphere:
		return "SPHERE"
	case geom.Disk:
		return "DISK"
	case geom.Ray:
		return "RAY"
	default:
		return "UNKNOWN"
	}
}

func vec3Array(v geom.Vec3) [3]float64 { return [3]float64{v[0], v[1], v[2]} }

// Effects lists the live instances. It runs on the loop goroutine like
// Admin.
func (r *Region) Effects(ctx context.Context, colliders bool) ([]observerproto.EffectState, error) {
	var out []observerproto.EffectState
	err := r.Admin(ctx, func(s *effects.Scheduler) {
		out = make([]observerproto.EffectState, 0, s.Size())
		for _, fx := range s.Instances() {
			out = append(out, effectState(fx, colliders))
		}
	})
	return out, err
}
