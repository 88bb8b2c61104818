package movement

import (
	"testing"

	"voxelfx.dev/internal/sim/geom"
)

type solids map[geom.Vec3i]bool

func (s solids) open(v geom.Vec3i) bool { return !s[v] }

func TestResolveDirectPath(t *testing.T) {
	r := Resolver{Valid: solids{}.open}
	origin := geom.Vec3{0.5, 1.5, 0.5}
	res := r.Resolve(origin, geom.Vec3{1, 0, 0})
	if !res.OK || res.Position != (geom.Vec3{1.5, 1.5, 0.5}) || res.Vertical != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestResolveStepsUpOverLedge(t *testing.T) {
	world := solids{{X: 1, Y: 1, Z: 0}: true}
	r := Resolver{Valid: world.open}
	res := r.Resolve(geom.Vec3{0.5, 1.5, 0.5}, geom.Vec3{1, 0, 0})
	if !res.OK || res.Vertical != 1 {
		t.Fatalf("res = %+v", res)
	}
	if res.Position != (geom.Vec3{1.5, 2.5, 0.5}) {
		t.Fatalf("position = %v", res.Position)
	}
}

func TestResolveNeedsHeadroomToStepUp(t *testing.T) {
	world := solids{{X: 1, Y: 1, Z: 0}: true, {X: 0, Y: 2, Z: 0}: true, {X: 1, Y: 0, Z: 0}: true}
	r := Resolver{Valid: world.open}
	res := r.Resolve(geom.Vec3{0.5, 1.5, 0.5}, geom.Vec3{1, 0, 0})
	if res.OK {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Position != (geom.Vec3{0.5, 1.5, 0.5}) || res.Blocked != (geom.Vec3i{X: 1, Y: 1, Z: 0}) {
		t.Fatalf("res = %+v", res)
	}
	if res.Contact != (geom.Vec3{1.5, 1.5, 0.5}) {
		t.Fatalf("contact = %v", res.Contact)
	}
}

func TestResolveStepsDown(t *testing.T) {
	// Valid voxels are the ones resting on a solid floor.
	floor := solids{{X: 0, Y: 0, Z: 0}: true, {X: 1, Y: -1, Z: 0}: true}
	valid := func(v geom.Vec3i) bool { return floor.open(v) && floor[v.Down()] }
	r := Resolver{Valid: valid, Passable: floor.open}
	res := r.Resolve(geom.Vec3{0.5, 1.5, 0.5}, geom.Vec3{1, 0, 0})
	if !res.OK || res.Vertical != -1 || res.Position != (geom.Vec3{1.5, 0.5, 0.5}) {
		t.Fatalf("res = %+v", res)
	}
}

func TestResolveDiagonalCorners(t *testing.T) {
	origin := geom.Vec3{0.5, 1.5, 0.5}
	step := geom.Vec3{1, 0, 1}

	one := solids{{X: 1, Y: 1, Z: 0}: true}
	if res := (Resolver{Valid: one.open}).Resolve(origin, step); !res.OK {
		t.Fatalf("one blocked corner should pass: %+v", res)
	}

	both := solids{{X: 1, Y: 1, Z: 0}: true, {X: 0, Y: 1, Z: 1}: true}
	res := (Resolver{Valid: both.open, NoVertical: true}).Resolve(origin, step)
	if res.OK {
		t.Fatalf("two blocked corners should fail")
	}
	if res.Blocked != (geom.Vec3i{X: 1, Y: 1, Z: 0}) {
		t.Fatalf("blocked = %v", res.Blocked)
	}

	strict := Resolver{Valid: one.open, MaxBlockedCorners: Strict()}
	if res := strict.Resolve(origin, step); res.OK {
		t.Fatalf("strict resolver should fail on one corner")
	}
}

func TestResolveNoVertical(t *testing.T) {
	world := solids{{X: 1, Y: 1, Z: 0}: true}
	r := Resolver{Valid: world.open, NoVertical: true}
	if res := r.Resolve(geom.Vec3{0.5, 1.5, 0.5}, geom.Vec3{1, 0, 0}); res.OK {
		t.Fatalf("expected failure without vertical correction")
	}
}
