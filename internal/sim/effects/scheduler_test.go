package effects

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
)

type fakeEffect struct {
	id        model.EffectID
	kind      model.Kind
	owner     model.ActorID
	region    string
	updates   int
	destroyed int
	status    Status
	err       error
	panicMsg  string
	teardown  string
	changes   []model.ActorID
	collided  []Collision
	colliders []geom.Collider
	onUpdate  func()
}

func newFake(owner model.ActorID, kind model.Kind) *fakeEffect {
	return &fakeEffect{id: model.NewEffectID(), owner: owner, kind: kind}
}

func (f *fakeEffect) ID() model.EffectID         { return f.id }
func (f *fakeEffect) Kind() model.Kind           { return f.kind }
func (f *fakeEffect) Owner() model.ActorID       { return f.owner }
func (f *fakeEffect) Region() string             { return f.region }
func (f *fakeEffect) Colliders() []geom.Collider { return f.colliders }
func (f *fakeEffect) OnCollision(c Collision)    { f.collided = append(f.collided, c) }

func (f *fakeEffect) Update(uint64) (Status, error) {
	f.updates++
	if f.onUpdate != nil {
		f.onUpdate()
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.status, f.err
}

func (f *fakeEffect) OnOwnerChange(_, to model.ActorID) {
	f.owner = to
	f.changes = append(f.changes, to)
}

func (f *fakeEffect) OnDestroy() {
	f.destroyed++
	if f.teardown != "" {
		panic(f.teardown)
	}
}

func spawnAll(t *testing.T, s *Scheduler, es ...*fakeEffect) {
	t.Helper()
	for _, e := range es {
		if err := s.Spawn(e); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
}

func TestTickIsolatesFaults(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(Config{Region: "r1"}, nil, log.New(&buf, "", 0))
	owner := model.NewActorID()
	a, bad, c := newFake(owner, "A"), newFake(owner, "BAD"), newFake(owner, "C")
	bad.panicMsg = "boom"
	spawnAll(t, s, a, bad, c)

	rep := s.Tick(1)
	if rep.Spawned != 3 || rep.Advanced != 3 || rep.Faults != 1 || rep.Terminated != 1 || rep.Live != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if a.updates != 1 || c.updates != 1 {
		t.Fatalf("healthy instances not advanced: a=%d c=%d", a.updates, c.updates)
	}
	if bad.destroyed != 1 {
		t.Fatalf("faulty teardown ran %d times", bad.destroyed)
	}
	if s.HasInstance(bad) {
		t.Fatalf("faulty instance still live")
	}
	if !strings.Contains(buf.String(), "region=r1 tick=1") || !strings.Contains(buf.String(), "kind=BAD") {
		t.Fatalf("log = %q", buf.String())
	}

	s.Tick(2)
	if bad.destroyed != 1 || bad.updates != 1 {
		t.Fatalf("faulty instance touched after removal")
	}
	if a.updates != 2 || c.updates != 2 {
		t.Fatalf("healthy instances stalled")
	}
}

func TestTickTreatsErrorsAsFaults(t *testing.T) {
	s := NewScheduler(Config{}, nil, nil)
	e := newFake(model.NewActorID(), "E")
	e.err = errors.New("bad state")
	spawnAll(t, s, e)
	rep := s.Tick(1)
	if rep.Faults != 1 || rep.Live != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if f := rep.FaultLog[0]; f.Effect != e.ID() || f.Stage != "update" || f.Err != "bad state" {
		t.Fatalf("fault = %+v", f)
	}
	if e.destroyed != 1 {
		t.Fatalf("teardown ran %d times", e.destroyed)
	}
}

func TestTeardownPanicIsContained(t *testing.T) {
	s := NewScheduler(Config{}, nil, nil)
	e := newFake(model.NewActorID(), "E")
	e.status = Remove
	e.teardown = "teardown"
	other := newFake(model.NewActorID(), "F")
	spawnAll(t, s, e, other)
	rep := s.Tick(1)
	if rep.Faults != 1 || rep.Live != 1 || other.updates != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRemovedMidTickIsNotUpdated(t *testing.T) {
	s := NewScheduler(Config{}, nil, nil)
	owner := model.NewActorID()
	killer, victim := newFake(owner, "K"), newFake(owner, "V")
	spawnAll(t, s, killer, victim)
	killer.onUpdate = func() { s.Remove(victim) }

	rep := s.Tick(1)
	if victim.destroyed != 1 || victim.updates != 0 {
		t.Fatalf("victim destroyed=%d updates=%d", victim.destroyed, victim.updates)
	}
	if rep.Advanced != 1 || rep.Live != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestFaultAfterSelfRemovalCountsOnce(t *testing.T) {
	s := NewScheduler(Config{}, nil, nil)
	e := newFake(model.NewActorID(), "E")
	e.err = errors.New("gone")
	e.onUpdate = func() { s.Remove(e) }
	spawnAll(t, s, e)

	rep := s.Tick(1)
	if rep.Faults != 1 || rep.Terminated != 0 || rep.Live != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if e.destroyed != 1 {
		t.Fatalf("teardown ran %d times", e.destroyed)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewScheduler(Config{}, nil, nil)
	e := newFake(model.NewActorID(), "E")
	spawnAll(t, s, e)
	s.Tick(1)
	if !s.Remove(e) {
		t.Fatalf("first Remove should report true")
	}
	if s.Remove(e) {
		t.Fatalf("second Remove should report false")
	}
	if e.destroyed != 1 {
		t.Fatalf("teardown ran %d times", e.destroyed)
	}
}

func TestSpawnFromManyGoroutines(t *testing.T) {
	s := NewScheduler(Config{PendingCapacity: 512}, nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := model.NewActorID()
			for j := 0; j < 32; j++ {
				if err := s.Spawn(newFake(owner, "E")); err != nil {
					t.Errorf("Spawn: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	if s.Size() != 0 {
		t.Fatalf("spawned instances visible before tick")
	}
	if rep := s.Tick(1); rep.Spawned != 256 || rep.Live != 256 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestSpawnRefusals(t *testing.T) {
	s := NewScheduler(Config{Region: "north", PendingCapacity: 1}, nil, nil)
	foreign := newFake(model.NewActorID(), "E")
	foreign.region = "south"
	if err := s.Spawn(foreign); !errors.Is(err, ErrWrongRegion) {
		t.Fatalf("err = %v", err)
	}
	local := newFake(model.NewActorID(), "E")
	local.region = "north"
	if err := s.Spawn(local); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	s.Tick(1)
	anywhere := newFake(model.NewActorID(), "E")
	if err := s.Spawn(anywhere); err != nil {
		t.Fatalf("Spawn without region: %v", err)
	}
	overflow := newFake(model.NewActorID(), "E")
	overflow.region = "north"
	if err := s.Spawn(overflow); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v", err)
	}
	s.Tick(1)
	if err := s.Spawn(local); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if rep := s.Tick(2); rep.Refused != 1 || rep.Live != 2 {
		t.Fatalf("duplicate spawn report = %+v", rep)
	}
}

func TestOwnerCollections(t *testing.T) {
	s := NewScheduler(Config{}, nil, nil)
	alice, bob := model.NewActorID(), model.NewActorID()
	a1, a2, b1 := newFake(alice, "X"), newFake(alice, "Y"), newFake(bob, "X")
	spawnAll(t, s, a1, a2, b1)
	s.Tick(1)

	if got := s.Instances(); len(got) != 3 || got[0] != Effect(a1) || got[2] != Effect(b1) {
		t.Fatalf("instances = %v", got)
	}
	if !s.ChangeOwner(a2, bob) {
		t.Fatalf("ChangeOwner failed")
	}
	if len(a2.changes) != 1 || a2.changes[0] != bob {
		t.Fatalf("owner change not announced: %v", a2.changes)
	}
	if len(s.OwnerInstances(alice)) != 1 || len(s.OwnerInstances(bob)) != 2 {
		t.Fatalf("owner collections not updated")
	}
	if s.ChangeOwner(a2, bob) {
		t.Fatalf("ChangeOwner to the same owner should be a no-op")
	}

	n := s.DestroyOwner(bob, func(e Effect) bool { return e.Kind() == "X" })
	if n != 1 || b1.destroyed != 1 || a2.destroyed != 0 {
		t.Fatalf("DestroyOwner removed %d", n)
	}
	if n := s.DestroyWhere(func(e Effect) bool { return e.Kind() == "Y" }); n != 1 {
		t.Fatalf("DestroyWhere removed %d", n)
	}
	if n := s.DestroyAll(); n != 1 || s.Size() != 0 {
		t.Fatalf("DestroyAll removed %d, size %d", n, s.Size())
	}
	if a1.destroyed != 1 || a2.destroyed != 1 {
		t.Fatalf("teardown counts a1=%d a2=%d", a1.destroyed, a2.destroyed)
	}
}

type recordingResolver struct {
	live []Effect
}

func (r *recordingResolver) Resolve(_ uint64, live []Effect, rm Remover) CollisionReport {
	r.live = live
	if len(live) == 0 {
		return CollisionReport{}
	}
	rm.Remove(live[0])
	return CollisionReport{Candidates: 1, Tested: 1, Hits: []CollisionRecord{{A: live[0].ID(), RemovedA: true}}}
}

func TestResolverSeesSurvivors(t *testing.T) {
	res := &recordingResolver{}
	s := NewScheduler(Config{}, res, nil)
	done, stays := newFake(model.NewActorID(), "X"), newFake(model.NewActorID(), "Y")
	done.status = Remove
	spawnAll(t, s, done, stays)
	rep := s.Tick(1)
	if len(res.live) != 1 || res.live[0] != Effect(stays) {
		t.Fatalf("resolver saw %v", res.live)
	}
	if rep.Terminated != 2 || rep.Live != 0 || stays.destroyed != 1 {
		t.Fatalf("report = %+v", rep)
	}
}
