package main

import (
	"context"
	"testing"

	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/geom"
	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
	"voxelfx.dev/internal/sim/terrain"
)

func TestDemoTerrain(t *testing.T) {
	w := demoTerrain()
	cases := []struct {
		at   geom.Vec3i
		want terrain.Block
	}{
		{geom.Vec3i{X: 0, Y: 0, Z: 0}, terrain.Solid},
		{geom.Vec3i{X: arenaHalf, Y: 0, Z: -arenaHalf}, terrain.Solid},
		{geom.Vec3i{X: 0, Y: 1, Z: 0}, terrain.Air},
		{geom.Vec3i{X: 0, Y: 1, Z: 5}, terrain.Solid},
		{geom.Vec3i{X: 8, Y: 4, Z: 8}, terrain.Solid},
		{geom.Vec3i{X: 8, Y: 5, Z: 8}, terrain.Air},
		{geom.Vec3i{X: 0, Y: 0, Z: 16}, terrain.Liquid},
	}
	for _, c := range cases {
		if got := w.Block(c.at); got != c.want {
			t.Fatalf("Block(%s) = %d, want %d", c.at, got, c.want)
		}
	}
}

func duelRegion(t *testing.T) (*region.Region, *terrain.World) {
	t.Helper()
	cat, err := catalogs.Parse([]byte(`
kinds:
  - {name: A, pattern: SHOT, speed: 1, range: 30}
  - {name: B, pattern: LINE, speed: 0.5, range: 30}
  - {name: C, pattern: WHEEL, speed: 0.5, range: 30, radius: 1}
  - {name: D, pattern: STREAM, speed: 1, range: 30, max_length: 2}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w := demoTerrain()
	return region.New(region.Config{ID: "r1"}, cat, w, nil), w
}

func TestDuelCastsAreSeeded(t *testing.T) {
	picks := func() []model.Kind {
		r, w := duelRegion(t)
		d := newDuel(r, w, 42, nil)
		var out []model.Kind
		for i := 0; i < 8; i++ {
			_, kind, err := d.castOnce(d.a, d.b)
			if err != nil {
				t.Fatalf("castOnce: %v", err)
			}
			out = append(out, kind)
		}
		return out
	}
	first, second := picks(), picks()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("pick %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestDuelistsAreLivingEntities(t *testing.T) {
	r, w := duelRegion(t)
	d := newDuel(r, w, 1, nil)
	for _, p := range []duelist{d.a, d.b} {
		e, ok := w.Entity(p.id)
		if !ok || !e.Living {
			t.Fatalf("duelist %s missing: %+v %v", p.id, e, ok)
		}
		if !w.IsPassable(geom.Floor(p.eye())) {
			t.Fatalf("eye of %s is inside a block", p.id)
		}
	}

	if _, _, err := d.castOnce(d.a, d.b); err != nil {
		t.Fatalf("castOnce: %v", err)
	}
	rep := r.StepOnce()
	if rep.Spawned != 1 {
		t.Fatalf("spawned = %d", rep.Spawned)
	}
}

func TestStartScenario(t *testing.T) {
	r, w := duelRegion(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, name := range []string{"", "none", "duel"} {
		if err := startScenario(ctx, name, r, w, 1, nil); err != nil {
			t.Fatalf("startScenario(%q): %v", name, err)
		}
	}
	if err := startScenario(ctx, "siege", r, w, 1, nil); err == nil {
		t.Fatalf("unknown scenario accepted")
	}
}
