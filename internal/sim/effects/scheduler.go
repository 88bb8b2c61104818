package effects

import (
	"errors"
	"fmt"
	"io"
	"log"

	"voxelfx.dev/internal/sim/model"
)

var (
	ErrQueueFull   = errors.New("effects: pending queue full")
	ErrWrongRegion = errors.New("effects: instance belongs to another region")
)

const DefaultPendingCapacity = 1024

type Config struct {
	Region          string
	PendingCapacity int
}

// TickReport summarizes one Tick.
type TickReport struct {
	Tick       uint64
	Spawned    int
	Refused    int
	Advanced   int
	Terminated int
	Faults     int
	Live       int
	Collisions CollisionReport
	// FaultLog carries one entry per fault counted in Faults.
	FaultLog []Fault
}

// Fault records an instance that panicked or returned an error.
type Fault struct {
	Effect model.EffectID `json:"effect"`
	Owner  model.ActorID  `json:"owner"`
	Kind   model.Kind     `json:"kind"`
	Stage  string         `json:"stage"`
	Err    string         `json:"error"`
}

// Scheduler holds the live instances grouped by owner. Spawn may be called
// from any goroutine; everything else belongs to the tick goroutine.
type Scheduler struct {
	region   string
	logger   *log.Logger
	resolver CollisionResolver

	pending chan Effect

	owners  []model.ActorID
	byOwner map[model.ActorID][]Effect
	index   map[model.EffectID]model.ActorID

	tick   uint64
	faults []Fault
}

func NewScheduler(cfg Config, resolver CollisionResolver, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.PendingCapacity <= 0 {
		cfg.PendingCapacity = DefaultPendingCapacity
	}
	return &Scheduler{
		region:   cfg.Region,
		logger:   logger,
		resolver: resolver,
		pending:  make(chan Effect, cfg.PendingCapacity),
		byOwner:  map[model.ActorID][]Effect{},
		index:    map[model.EffectID]model.ActorID{},
	}
}

func (s *Scheduler) Region() string { return s.region }

// Spawn queues e for the start of the next tick. An instance with no region
// of its own is accepted anywhere.
func (s *Scheduler) Spawn(e Effect) error {
	if r, ok := e.(Regional); ok && s.region != "" && r.Region() != "" && r.Region() != s.region {
		return fmt.Errorf("%w: %s", ErrWrongRegion, r.Region())
	}
	select {
	case s.pending <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Tick drains the pending queue, advances every live instance once, removes
// the ones that finished or faulted, then resolves collisions.
func (s *Scheduler) Tick(tick uint64) TickReport {
	s.tick = tick
	rep := TickReport{Tick: tick}
	s.faults = nil

	for drained := false; !drained; {
		select {
		case e := <-s.pending:
			if s.add(e) {
				rep.Spawned++
			} else {
				rep.Refused++
			}
		default:
			drained = true
		}
	}

	for _, e := range s.Instances() {
		// An earlier update or teardown may have removed e.
		if !s.HasInstance(e) {
			continue
		}
		st, err := s.update(e)
		rep.Advanced++
		if err != nil {
			s.fault(e, "update", err)
			if s.Remove(e) {
				rep.Terminated++
			}
			continue
		}
		if st == Remove && s.Remove(e) {
			rep.Terminated++
		}
	}

	if s.resolver != nil {
		rep.Collisions = s.resolver.Resolve(tick, s.Instances(), s)
		for _, h := range rep.Collisions.Hits {
			if h.RemovedA {
				rep.Terminated++
			}
			if h.RemovedB {
				rep.Terminated++
			}
		}
	}
	rep.Faults = len(s.faults)
	rep.FaultLog = s.faults
	rep.Live = s.Size()
	return rep
}

func (s *Scheduler) add(e Effect) bool {
	if _, dup := s.index[e.ID()]; dup {
		return false
	}
	s.insert(e, e.Owner())
	return true
}

func (s *Scheduler) insert(e Effect, owner model.ActorID) {
	list, ok := s.byOwner[owner]
	if !ok {
		s.owners = append(s.owners, owner)
	}
	s.byOwner[owner] = append(list, e)
	s.index[e.ID()] = owner
}

func (s *Scheduler) update(e Effect) (st Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			st, err = Remove, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Update(s.tick)
}

// Remove takes e out of the live set and runs its teardown. It is idempotent
// and reports whether e was live.
func (s *Scheduler) Remove(e Effect) bool {
	owner, ok := s.index[e.ID()]
	if !ok {
		return false
	}
	s.detach(e, owner)
	s.destroy(e)
	return true
}

func (s *Scheduler) detach(e Effect, owner model.ActorID) {
	delete(s.index, e.ID())
	list := s.byOwner[owner]
	for i, x := range list {
		if x.ID() == e.ID() {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) > 0 {
		s.byOwner[owner] = list
		return
	}
	delete(s.byOwner, owner)
	for i, o := range s.owners {
		if o == owner {
			s.owners = append(s.owners[:i], s.owners[i+1:]...)
			break
		}
	}
}

func (s *Scheduler) destroy(e Effect) {
	defer func() {
		if r := recover(); r != nil {
			s.fault(e, "teardown", fmt.Errorf("panic: %v", r))
		}
	}()
	e.OnDestroy()
}

func (s *Scheduler) fault(e Effect, stage string, err error) {
	s.logger.Printf("effects: region=%s tick=%d owner=%s kind=%s %s: %v", s.region, s.tick, e.Owner(), e.Kind(), stage, err)
	s.faults = append(s.faults, Fault{Effect: e.ID(), Owner: e.Owner(), Kind: e.Kind(), Stage: stage, Err: err.Error()})
}

// Instances returns the live instances grouped by owner in first-seen order.
func (s *Scheduler) Instances() []Effect {
	out := make([]Effect, 0, len(s.index))
	for _, o := range s.owners {
		out = append(out, s.byOwner[o]...)
	}
	return out
}

func (s *Scheduler) OwnerInstances(owner model.ActorID) []Effect {
	return append([]Effect(nil), s.byOwner[owner]...)
}

func (s *Scheduler) HasInstance(e Effect) bool {
	_, ok := s.index[e.ID()]
	return ok
}

func (s *Scheduler) Size() int { return len(s.index) }

// DestroyWhere removes every instance matching pred and returns how many
// went.
func (s *Scheduler) DestroyWhere(pred func(Effect) bool) int {
	n := 0
	for _, e := range s.Instances() {
		if pred(e) && s.Remove(e) {
			n++
		}
	}
	return n
}

func (s *Scheduler) DestroyOwner(owner model.ActorID, pred func(Effect) bool) int {
	n := 0
	for _, e := range s.OwnerInstances(owner) {
		if (pred == nil || pred(e)) && s.Remove(e) {
			n++
		}
	}
	return n
}

func (s *Scheduler) DestroyAll() int {
	return s.DestroyWhere(func(Effect) bool { return true })
}

// ChangeOwner moves a live instance to another owner's collection and tells
// the instance about it.
func (s *Scheduler) ChangeOwner(e Effect, to model.ActorID) bool {
	from, ok := s.index[e.ID()]
	if !ok || from == to {
		return false
	}
	s.detach(e, from)
	e.OnOwnerChange(from, to)
	s.insert(e, to)
	return true
}
