package collision

import (
	"testing"

	"voxelfx.dev/internal/sim/model"
)

func TestLookupIsOrderNormalized(t *testing.T) {
	table := NewPolicyBuilder().Add([]model.Kind{"X"}, []model.Kind{"Y"}, true, false).Build()
	out, ok := table.Lookup("X", "Y")
	if !ok || out != (Outcome{RemoveA: true}) {
		t.Fatalf("Lookup(X, Y) = %+v %v", out, ok)
	}
	out, ok = table.Lookup("Y", "X")
	if !ok || out != (Outcome{RemoveB: true}) {
		t.Fatalf("Lookup(Y, X) = %+v %v", out, ok)
	}
	if _, ok := table.Lookup("X", "Z"); ok {
		t.Fatalf("unknown pair should have no policy")
	}
}

func TestLayersAndExplicitPrecedence(t *testing.T) {
	table := NewPolicyBuilder().
		Add([]model.Kind{"FIRE_BLAST"}, []model.Kind{"EARTH_SMASH"}, false, false).
		Layer("AIR_SWIPE", "FIRE_BLAST").
		Layer("EARTH_SMASH").
		Build()

	cases := []struct {
		a, b model.Kind
		want Outcome
	}{
		{"AIR_SWIPE", "FIRE_BLAST", Outcome{RemoveA: true, RemoveB: true}},
		{"AIR_SWIPE", "AIR_SWIPE", Outcome{RemoveA: true, RemoveB: true}},
		{"AIR_SWIPE", "EARTH_SMASH", Outcome{RemoveA: true}},
		{"EARTH_SMASH", "AIR_SWIPE", Outcome{RemoveB: true}},
		{"EARTH_SMASH", "EARTH_SMASH", Outcome{RemoveA: true, RemoveB: true}},
		{"FIRE_BLAST", "EARTH_SMASH", Outcome{}},
	}
	for _, c := range cases {
		got, ok := table.Lookup(c.a, c.b)
		if !ok || got != c.want {
			t.Fatalf("Lookup(%s, %s) = %+v %v, want %+v", c.a, c.b, got, ok, c.want)
		}
	}
	if table.Len() != 6 {
		t.Fatalf("Len = %d", table.Len())
	}
	entries := table.Entries()
	if len(entries) != 6 || entries[0].A != "AIR_SWIPE" || entries[0].B != "AIR_SWIPE" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestNilTable(t *testing.T) {
	var table *PolicyTable
	if _, ok := table.Lookup("A", "B"); ok || table.Len() != 0 {
		t.Fatalf("nil table should be empty")
	}
}
