package collision

import (
	"math/bits"
	"sort"

	"voxelfx.dev/internal/sim/geom"
)

// child references either an internal node or a leaf. Leaves are stored as
// ^index so both fit one int32.
type child int32

func leafRef(i int) child    { return child(^int32(i)) }
func (c child) isLeaf() bool { return c < 0 }
func (c child) index() int   { return int(^int32(c)) }
func (c child) node() int    { return int(c) }

type node struct {
	box         geom.AABB
	left, right child
}

// Pair is a broad-phase candidate: indices into the slice of boxes the tree
// was built from, with A < B.
type Pair struct {
	A, B int
}

// BVH is a linear bounding volume hierarchy over Morton-sorted boxes. All
// nodes live in one slice and refer to each other by index, so a tree is
// rebuilt from scratch every tick without per-node allocations.
type BVH struct {
	boxes []geom.AABB
	order []int    // sorted position -> input index
	codes []uint64 // by sorted position
	nodes []node   // n-1 internal nodes, root at 0
}

// Build sorts boxes by the Morton code of their centres and links the
// internal nodes with the split search of Karras (2012).
func Build(boxes []geom.AABB) *BVH {
	n := len(boxes)
	t := &BVH{boxes: boxes, order: make([]int, n), codes: make([]uint64, n)}
	if n == 0 {
		return t
	}

	scene := boxes[0]
	for _, b := range boxes[1:] {
		scene = scene.Union(b)
	}
	q := newQuantizer(scene)
	raw := make([]uint64, n)
	for i, b := range boxes {
		t.order[i] = i
		raw[i] = q.code(b.Center())
	}
	sort.SliceStable(t.order, func(a, b int) bool { return raw[t.order[a]] < raw[t.order[b]] })
	for i, idx := range t.order {
		t.codes[i] = raw[idx]
	}

	if n == 1 {
		return t
	}
	t.nodes = make([]node, n-1)
	for i := 0; i < n-1; i++ {
		t.link(i)
	}
	t.fit(0)
	return t
}

func (t *BVH) Len() int { return len(t.boxes) }

// delta is the length of the common prefix of the codes at sorted positions
// i and j, or -1 when j is out of range. Equal codes fall back to the
// positions themselves so every key is distinct.
func (t *BVH) delta(i, j int) int {
	if j < 0 || j >= len(t.codes) {
		return -1
	}
	a, b := t.codes[i], t.codes[j]
	if a == b {
		return 64 + bits.LeadingZeros64(uint64(i^j))
	}
	return bits.LeadingZeros64(a ^ b)
}

func (t *BVH) link(i int) {
	d := 1
	if t.delta(i, i+1) < t.delta(i, i-1) {
		d = -1
	}

	// Upper bound for the range length, then binary search the far end.
	dmin := t.delta(i, i-d)
	lmax := 2
	for t.delta(i, i+lmax*d) > dmin {
		lmax *= 2
	}
	l := 0
	for step := lmax / 2; step >= 1; step /= 2 {
		if t.delta(i, i+(l+step)*d) > dmin {
			l += step
		}
	}
	j := i + l*d

	// Split position: the last key sharing more than the range's prefix.
	dnode := t.delta(i, j)
	s := 0
	for step := l; step > 1; {
		step = (step + 1) / 2
		if t.delta(i, i+(s+step)*d) > dnode {
			s += step
		}
	}
	gamma := i + s*d
	if d < 0 {
		gamma--
	}

	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}
	n := &t.nodes[i]
	if lo == gamma {
		n.left = leafRef(gamma)
	} else {
		n.left = child(gamma)
	}
	if hi == gamma+1 {
		n.right = leafRef(gamma + 1)
	} else {
		n.right = child(gamma + 1)
	}
}

// fit computes node boxes bottom-up.
func (t *BVH) fit(i int) geom.AABB {
	n := &t.nodes[i]
	n.box = t.childBox(n.left).Union(t.childBox(n.right))
	return n.box
}

func (t *BVH) childBox(c child) geom.AABB {
	if c.isLeaf() {
		return t.boxes[t.order[c.index()]]
	}
	return t.fit(c.node())
}

// SelfQuery returns every pair of input boxes that overlap, each once, in a
// deterministic order.
func (t *BVH) SelfQuery() []Pair {
	n := len(t.boxes)
	if n < 2 {
		return nil
	}
	var pairs []Pair
	stack := make([]child, 0, 64)
	for pos := 0; pos < n; pos++ {
		box := t.boxes[t.order[pos]]
		stack = append(stack[:0], child(0))
		for len(stack) > 0 {
			c := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if c.isLeaf() {
				other := c.index()
				// Only pairs toward higher sorted positions, so each pair
				// shows up once.
				if other > pos && box.Overlaps(t.boxes[t.order[other]]) {
					a, b := t.order[pos], t.order[other]
					if a > b {
						a, b = b, a
					}
					pairs = append(pairs, Pair{A: a, B: b})
				}
				continue
			}
			nd := &t.nodes[c.node()]
			if !box.Overlaps(nd.box) {
				continue
			}
			stack = append(stack, nd.right, nd.left)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// Query calls fn with the input index of every box overlapping box.
func (t *BVH) Query(box geom.AABB, fn func(i int)) {
	n := len(t.boxes)
	if n == 0 {
		return
	}
	if n == 1 {
		if box.Overlaps(t.boxes[0]) {
			fn(0)
		}
		return
	}
	stack := []child{0}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.isLeaf() {
			if idx := t.order[c.index()]; box.Overlaps(t.boxes[idx]) {
				fn(idx)
			}
			continue
		}
		nd := &t.nodes[c.node()]
		if box.Overlaps(nd.box) {
			stack = append(stack, nd.right, nd.left)
		}
	}
}
