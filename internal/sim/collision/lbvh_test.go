package collision

import (
	"math/rand"
	"reflect"
	"testing"

	"voxelfx.dev/internal/sim/geom"
)

func TestMortonInterleave(t *testing.T) {
	cases := []struct {
		x, y, z uint32
		want    uint64
	}{
		{1, 0, 0, 4},
		{0, 1, 0, 2},
		{0, 0, 1, 1},
		{3, 0, 0, 0b100100},
		{1<<21 - 1, 1<<21 - 1, 1<<21 - 1, 1<<63 - 1},
	}
	for _, c := range cases {
		if got := Morton(c.x, c.y, c.z); got != c.want {
			t.Fatalf("Morton(%d,%d,%d) = %b, want %b", c.x, c.y, c.z, got, c.want)
		}
	}
}

func unitBoxAt(x, y, z float64) geom.AABB {
	return geom.BoxAround(geom.Vec3{x, y, z}, geom.Vec3{0.5, 0.5, 0.5})
}

func TestSelfQueryFarApart(t *testing.T) {
	var boxes []geom.AABB
	for i := 0; i < 50; i++ {
		boxes = append(boxes, unitBoxAt(float64(i*10), float64(i%3)*10, 0))
	}
	if pairs := Build(boxes).SelfQuery(); len(pairs) != 0 {
		t.Fatalf("pairs = %v", pairs)
	}
}

func TestSelfQuerySinglePair(t *testing.T) {
	boxes := []geom.AABB{unitBoxAt(0, 0, 0), unitBoxAt(50, 0, 0), unitBoxAt(0.5, 0.2, 0)}
	pairs := Build(boxes).SelfQuery()
	if !reflect.DeepEqual(pairs, []Pair{{A: 0, B: 2}}) {
		t.Fatalf("pairs = %v", pairs)
	}
}

func TestSelfQueryMatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for round := 0; round < 20; round++ {
		n := 1 + r.Intn(120)
		boxes := make([]geom.AABB, n)
		for i := range boxes {
			c := geom.Vec3{r.Float64() * 30, r.Float64() * 10, r.Float64() * 30}
			if i%7 == 0 && i > 0 {
				// Identical centres produce identical Morton codes.
				c = boxes[0].Center()
			}
			boxes[i] = geom.BoxAround(c, geom.Vec3{0.2 + r.Float64()*2, 0.2 + r.Float64()*2, 0.2 + r.Float64()*2})
		}
		var want []Pair
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if boxes[i].Overlaps(boxes[j]) {
					want = append(want, Pair{A: i, B: j})
				}
			}
		}
		got := Build(boxes).SelfQuery()
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round %d (n=%d): got %d pairs, want %d", round, n, len(got), len(want))
		}
	}
}

func TestQueryFindsOverlaps(t *testing.T) {
	boxes := []geom.AABB{unitBoxAt(0, 0, 0), unitBoxAt(5, 0, 0), unitBoxAt(10, 0, 0)}
	tree := Build(boxes)
	var got []int
	tree.Query(geom.AABB{Min: geom.Vec3{4, -1, -1}, Max: geom.Vec3{11, 1, 1}}, func(i int) { got = append(got, i) })
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	single := Build(boxes[:1])
	n := 0
	single.Query(unitBoxAt(0.2, 0, 0), func(int) { n++ })
	if n != 1 || single.SelfQuery() != nil {
		t.Fatalf("single-box tree misbehaved")
	}
}
