// Package region runs one simulation region: the effect scheduler, the
// collision engine and the diagnostics that follow every tick.
package region

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/collision"
	"voxelfx.dev/internal/sim/effects"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/trajectory"
)

var ErrStopped = errors.New("region: stopped")

type Config struct {
	ID              string
	TickRateHz      int
	PendingCapacity int
	SelfCollision   bool
}

// TickLogger receives one entry per tick. Implemented in
// internal/persistence/log.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// FaultLogger receives every instance fault.
type FaultLogger interface {
	WriteFault(entry FaultEntry) error
}

// Indexer is the secondary read model. Writes must not block.
type Indexer interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick        uint64                    `json:"tick"`
	Region      string                    `json:"region"`
	Spawned     int                       `json:"spawned,omitempty"`
	Refused     int                       `json:"refused,omitempty"`
	Live        int                       `json:"live"`
	Advanced    int                       `json:"advanced"`
	Terminated  int                       `json:"terminated"`
	Faults      int                       `json:"faults"`
	Candidates  int                       `json:"candidates"`
	PairsTested int                       `json:"pairs_tested"`
	Collisions  []effects.CollisionRecord `json:"collisions,omitempty"`
	Ended       []Ending                  `json:"ended,omitempty"`
}

// Ending records an instance leaving the live set.
type Ending struct {
	Effect model.EffectID `json:"effect"`
	Kind   model.Kind     `json:"kind"`
	Owner  model.ActorID  `json:"owner"`
	Reason string         `json:"reason"`
	Age    int            `json:"age"`
}

type FaultEntry struct {
	Tick   uint64 `json:"tick"`
	Region string `json:"region"`
	effects.Fault
}

// Region is single-threaded: the scheduler, the world and the observer set
// are touched only from the loop goroutine. Spawn and the request channels
// are the cross-goroutine entry points.
type Region struct {
	cfg    Config
	cat    *catalogs.Catalog
	world  trajectory.World
	logger *log.Logger

	sched  *effects.Scheduler
	engine *collision.Engine

	tick atomic.Uint64
	live atomic.Int64

	tickLogger  TickLogger
	faultLogger FaultLogger
	index       Indexer

	ended []Ending

	observers     map[string]*observer
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	admin         chan adminReq

	stop     chan struct{}
	stopOnce sync.Once
}

type adminReq struct {
	fn   func(s *effects.Scheduler)
	done chan struct{}
}

func New(cfg Config, cat *catalogs.Catalog, world trajectory.World, logger *log.Logger) *Region {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	engine := collision.NewEngine(cat.Policies(), collision.Options{SelfCollision: cfg.SelfCollision})
	return &Region{
		cfg:    cfg,
		cat:    cat,
		world:  world,
		logger: logger,
		engine: engine,
		sched: effects.NewScheduler(effects.Config{
			Region:          cfg.ID,
			PendingCapacity: cfg.PendingCapacity,
		}, engine, logger),
		observers:     map[string]*observer{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		admin:         make(chan adminReq, 16),
		stop:          make(chan struct{}),
	}
}

func (r *Region) SetTickLogger(l TickLogger)   { r.tickLogger = l }
func (r *Region) SetFaultLogger(l FaultLogger) { r.faultLogger = l }
func (r *Region) SetIndexer(ix Indexer)        { r.index = ix }

func (r *Region) ID() string                 { return r.cfg.ID }
func (r *Region) TickRateHz() int            { return r.cfg.TickRateHz }
func (r *Region) Catalog() *catalogs.Catalog { return r.cat }
func (r *Region) CurrentTick() uint64        { return r.tick.Load() }

// Live is the live instance count after the last tick. Safe from any
// goroutine.
func (r *Region) Live() int { return int(r.live.Load()) }

func (r *Region) ObserverJoin() chan<- ObserverJoinRequest           { return r.observerJoin }
func (r *Region) ObserverSubscribe() chan<- ObserverSubscribeRequest { return r.observerSub }
func (r *Region) ObserverLeave() chan<- string                       { return r.observerLeave }

// Spawn queues e for the next tick. Safe from any goroutine.
func (r *Region) Spawn(e effects.Effect) error {
	return r.sched.Spawn(e)
}

func (r *Region) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.observerJoin:
			r.handleObserverJoin(req)
		case req := <-r.observerSub:
			r.handleObserverSubscribe(req)
		case id := <-r.observerLeave:
			r.handleObserverLeave(id)
		case req := <-r.admin:
			req.fn(r.sched)
			close(req.done)
		case <-ticker.C:
			r.step()
		}
	}
}

func (r *Region) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

// Admin runs fn on the loop goroutine between ticks and waits for it.
func (r *Region) Admin(ctx context.Context, fn func(s *effects.Scheduler)) error {
	req := adminReq{fn: fn, done: make(chan struct{})}
	select {
	case r.admin <- req:
	case <-r.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-r.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StepOnce advances a single tick with the same ordering as Run. Callers
// must not run it concurrently with Run.
func (r *Region) StepOnce() TickLogEntry {
	return r.step()
}

// Scheduler exposes the scheduler to code running on the loop goroutine.
func (r *Region) Scheduler() *effects.Scheduler { return r.sched }

func (r *Region) step() TickLogEntry {
	tick := r.tick.Load()
	rep := r.sched.Tick(tick)
	r.live.Store(int64(rep.Live))

	entry := TickLogEntry{
		Tick:        tick,
		Region:      r.cfg.ID,
		Spawned:     rep.Spawned,
		Refused:     rep.Refused,
		Live:        rep.Live,
		Advanced:    rep.Advanced,
		Terminated:  rep.Terminated,
		Faults:      rep.Faults,
		Candidates:  rep.Collisions.Candidates,
		PairsTested: rep.Collisions.Tested,
		Collisions:  rep.Collisions.Hits,
		Ended:       r.ended,
	}
	r.ended = nil

	if r.tickLogger != nil {
		if err := r.tickLogger.WriteTick(entry); err != nil {
			r.logger.Printf("region=%s tick=%d journal: %v", r.cfg.ID, tick, err)
		}
	}
	if r.faultLogger != nil {
		for _, f := range rep.FaultLog {
			if err := r.faultLogger.WriteFault(FaultEntry{Tick: tick, Region: r.cfg.ID, Fault: f}); err != nil {
				r.logger.Printf("region=%s tick=%d fault log: %v", r.cfg.ID, tick, err)
				break
			}
		}
	}
	if r.index != nil {
		_ = r.index.WriteTick(entry)
	}
	r.publish(tick, entry)

	r.tick.Add(1)
	return entry
}

func (r *Region) recordEnd(i *effects.Instance) {
	reason := string(i.Reason())
	switch {
	case reason != "":
	case i.CollisionCount() > 0:
		reason = "COLLISION"
	default:
		reason = "REMOVED"
	}
	r.ended = append(r.ended, Ending{
		Effect: i.ID(),
		Kind:   i.Kind(),
		Owner:  i.Owner(),
		Reason: reason,
		Age:    i.Age(),
	})
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
