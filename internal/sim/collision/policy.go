package collision

import (
	"sort"

	"voxelfx.dev/internal/sim/model"
)

// Outcome is what happens to each side of a colliding pair, in the order
// the pair was looked up.
type Outcome struct {
	RemoveA bool `json:"remove_a" yaml:"remove_a"`
	RemoveB bool `json:"remove_b" yaml:"remove_b"`
}

type pairKey struct {
	lo, hi model.Kind
}

// rule is stored against the ordered key: removeLo applies to key.lo.
type rule struct {
	removeLo, removeHi bool
}

// PolicyTable maps unordered kind pairs to outcomes. Kinds without an entry
// pass through each other. A table is immutable once built.
type PolicyTable struct {
	rules map[pairKey]rule
}

func key(a, b model.Kind) (pairKey, bool) {
	if b < a {
		return pairKey{lo: b, hi: a}, true
	}
	return pairKey{lo: a, hi: b}, false
}

// Lookup returns the outcome for a pair of kinds, oriented to (a, b).
func (t *PolicyTable) Lookup(a, b model.Kind) (Outcome, bool) {
	if t == nil {
		return Outcome{}, false
	}
	k, swapped := key(a, b)
	r, ok := t.rules[k]
	if !ok {
		return Outcome{}, false
	}
	if swapped {
		return Outcome{RemoveA: r.removeHi, RemoveB: r.removeLo}, true
	}
	return Outcome{RemoveA: r.removeLo, RemoveB: r.removeHi}, true
}

func (t *PolicyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// Entry is one explicit table row.
type Entry struct {
	A, B model.Kind
	Outcome
}

// Entries lists the table in a stable order.
func (t *PolicyTable) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.rules))
	for k, r := range t.rules {
		out = append(out, Entry{A: k.lo, B: k.hi, Outcome: Outcome{RemoveA: r.removeLo, RemoveB: r.removeHi}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// PolicyBuilder collects explicit pairs and layers. Explicit pairs win over
// anything derived from layers; among explicit pairs the first added wins.
type PolicyBuilder struct {
	explicit []Entry
	layers   [][]model.Kind
}

func NewPolicyBuilder() *PolicyBuilder { return &PolicyBuilder{} }

// Add registers the outcome for every combination of firsts and seconds.
func (b *PolicyBuilder) Add(firsts, seconds []model.Kind, removeFirst, removeSecond bool) *PolicyBuilder {
	for _, f := range firsts {
		for _, s := range seconds {
			b.explicit = append(b.explicit, Entry{A: f, B: s, Outcome: Outcome{RemoveA: removeFirst, RemoveB: removeSecond}})
		}
	}
	return b
}

// Layer appends the next layer. Kinds in one layer cancel each other out;
// a kind is removed by any kind in a later layer and survives it.
func (b *PolicyBuilder) Layer(kinds ...model.Kind) *PolicyBuilder {
	b.layers = append(b.layers, append([]model.Kind(nil), kinds...))
	return b
}

func (b *PolicyBuilder) Build() *PolicyTable {
	t := &PolicyTable{rules: map[pairKey]rule{}}
	put := func(e Entry) {
		k, swapped := key(e.A, e.B)
		if _, exists := t.rules[k]; exists {
			return
		}
		r := rule{removeLo: e.RemoveA, removeHi: e.RemoveB}
		if swapped {
			r = rule{removeLo: e.RemoveB, removeHi: e.RemoveA}
		}
		t.rules[k] = r
	}
	for _, e := range b.explicit {
		put(e)
	}
	for i, layer := range b.layers {
		for _, x := range layer {
			for _, y := range layer {
				put(Entry{A: x, B: y, Outcome: Outcome{RemoveA: true, RemoveB: true}})
			}
		}
		for _, higher := range b.layers[i+1:] {
			for _, x := range layer {
				for _, y := range higher {
					put(Entry{A: x, B: y, Outcome: Outcome{RemoveA: true}})
				}
			}
		}
	}
	return t
}
