package main

import (
	"fmt"
	"io"
	"sort"

	"voxelfx.dev/internal/sim/model"
	"voxelfx.dev/internal/sim/region"
)

type endKey struct {
	Kind   model.Kind
	Reason string
}

type pairKey struct {
	A, B model.Kind
}

type pairCount struct {
	hits, removedA, removedB int
}

// summary folds a region journal into totals. Tick numbers restart at zero
// whenever the server restarts, so a step backwards counts as a restart
// rather than an error.
type summary struct {
	from, to uint64

	seen        bool
	first, last uint64
	ticks       int
	gaps        uint64
	restarts    int

	spawned, refused, faults int
	candidates, pairsTested  int
	maxLive                  int

	endings map[endKey]int
	pairs   map[pairKey]*pairCount
}

func newSummary(from, to uint64) *summary {
	return &summary{
		from:    from,
		to:      to,
		endings: map[endKey]int{},
		pairs:   map[pairKey]*pairCount{},
	}
}

// add folds e in. It returns false once e is past the to bound.
func (s *summary) add(e region.TickLogEntry) bool {
	if s.to != 0 && e.Tick > s.to {
		return false
	}
	if e.Tick < s.from {
		return true
	}

	switch {
	case !s.seen:
		s.seen = true
		s.first = e.Tick
	case e.Tick <= s.last:
		s.restarts++
	case e.Tick > s.last+1:
		s.gaps += e.Tick - s.last - 1
	}
	s.last = e.Tick
	s.ticks++

	s.spawned += e.Spawned
	s.refused += e.Refused
	s.faults += e.Faults
	s.candidates += e.Candidates
	s.pairsTested += e.PairsTested
	if e.Live > s.maxLive {
		s.maxLive = e.Live
	}
	for _, end := range e.Ended {
		s.endings[endKey{Kind: end.Kind, Reason: end.Reason}]++
	}
	for _, c := range e.Collisions {
		k := pairKey{A: c.KindA, B: c.KindB}
		p := s.pairs[k]
		if p == nil {
			p = &pairCount{}
			s.pairs[k] = p
		}
		p.hits++
		if c.RemovedA {
			p.removedA++
		}
		if c.RemovedB {
			p.removedB++
		}
	}
	return true
}

type endingRow struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type pairRow struct {
	KindA    string `json:"kind_a"`
	KindB    string `json:"kind_b"`
	Hits     int    `json:"hits"`
	RemovedA int    `json:"removed_a"`
	RemovedB int    `json:"removed_b"`
}

type report struct {
	Ticks       int         `json:"ticks"`
	FirstTick   uint64      `json:"first_tick"`
	LastTick    uint64      `json:"last_tick"`
	MissedTicks uint64      `json:"missed_ticks"`
	Restarts    int         `json:"restarts"`
	Spawned     int         `json:"spawned"`
	Refused     int         `json:"refused"`
	Faults      int         `json:"faults"`
	Candidates  int         `json:"candidates"`
	PairsTested int         `json:"pairs_tested"`
	MaxLive     int         `json:"max_live"`
	Endings     []endingRow `json:"endings"`
	Pairs       []pairRow   `json:"pairs"`
}

func (s *summary) report() report {
	r := report{
		Ticks:       s.ticks,
		FirstTick:   s.first,
		LastTick:    s.last,
		MissedTicks: s.gaps,
		Restarts:    s.restarts,
		Spawned:     s.spawned,
		Refused:     s.refused,
		Faults:      s.faults,
		Candidates:  s.candidates,
		PairsTested: s.pairsTested,
		MaxLive:     s.maxLive,
		Endings:     make([]endingRow, 0, len(s.endings)),
		Pairs:       make([]pairRow, 0, len(s.pairs)),
	}
	for k, n := range s.endings {
		r.Endings = append(r.Endings, endingRow{Kind: string(k.Kind), Reason: k.Reason, Count: n})
	}
	sort.Slice(r.Endings, func(i, j int) bool {
		a, b := r.Endings[i], r.Endings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Reason < b.Reason
	})
	for k, p := range s.pairs {
		r.Pairs = append(r.Pairs, pairRow{KindA: string(k.A), KindB: string(k.B), Hits: p.hits, RemovedA: p.removedA, RemovedB: p.removedB})
	}
	sort.Slice(r.Pairs, func(i, j int) bool {
		a, b := r.Pairs[i], r.Pairs[j]
		if a.Hits != b.Hits {
			return a.Hits > b.Hits
		}
		if a.KindA != b.KindA {
			return a.KindA < b.KindA
		}
		return a.KindB < b.KindB
	})
	return r
}

func (s *summary) print(w io.Writer) {
	r := s.report()
	fmt.Fprintf(w, "ticks=%d first=%d last=%d missed=%d restarts=%d\n", r.Ticks, r.FirstTick, r.LastTick, r.MissedTicks, r.Restarts)
	fmt.Fprintf(w, "spawned=%d refused=%d faults=%d max_live=%d candidates=%d pairs_tested=%d\n",
		r.Spawned, r.Refused, r.Faults, r.MaxLive, r.Candidates, r.PairsTested)

	if len(r.Endings) > 0 {
		fmt.Fprintln(w, "endings:")
		for _, e := range r.Endings {
			fmt.Fprintf(w, "  %-20s %-12s %d\n", e.Kind, e.Reason, e.Count)
		}
	}
	if len(r.Pairs) > 0 {
		fmt.Fprintln(w, "collisions:")
		for _, p := range r.Pairs {
			fmt.Fprintf(w, "  %-20s x %-20s hits=%d removed_a=%d removed_b=%d\n", p.KindA, p.KindB, p.Hits, p.RemovedA, p.RemovedB)
		}
	}
}
