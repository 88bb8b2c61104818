package grid

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"voxelfx.dev/internal/sim/geom"
)

func TestIteratorStraightLine(t *testing.T) {
	got := Voxels(geom.Vec3{0.5, 0.5, 0.5}, geom.Vec3{1, 0, 0}, 3)
	want := []geom.Vec3i{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 3, Y: 0, Z: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}
	got = Voxels(geom.Vec3{0.5, 0.5, 0.5}, geom.Vec3{-1, 0, 0}, 2)
	want = []geom.Vec3i{{X: 0, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0}, {X: -2, Y: 0, Z: 0}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("negative walk = %v, want %v", got, want)
	}
}

func TestIteratorQueuesSkippedCorners(t *testing.T) {
	got := Voxels(geom.Vec3{0.5, 0.5, 0.5}, geom.Vec3{1, 1, 0}, 2.9)
	want := []geom.Vec3i{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0}, {X: 2, Y: 1, Z: 0}, {X: 1, Y: 2, Z: 0},
		{X: 2, Y: 2, Z: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}
}

func TestIteratorZeroDirection(t *testing.T) {
	got := Voxels(geom.Vec3{3.2, 1, -0.5}, geom.Vec3{}, 10)
	want := []geom.Vec3i{{X: 3, Y: 1, Z: -1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}
}

func TestIteratorTerminatesOnEndVoxel(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 3000; i++ {
		start := geom.Vec3{r.Float64()*40 - 20, r.Float64()*40 - 20, r.Float64()*40 - 20}
		dir := geom.Vec3{r.Float64()*2 - 1, r.Float64()*2 - 1, r.Float64()*2 - 1}
		if i%5 == 0 {
			dir[r.Intn(3)] = 0
		}
		length := r.Float64() * 30
		it := NewIterator(start, dir, length)
		limit := 4 * (3*int(math.Ceil(length)) + 4)
		var last geom.Vec3i
		n := 0
		for {
			v, ok := it.Next()
			if !ok {
				break
			}
			if n > 0 && chebyshev(v, last) > 1 && chebyshev(v, it.End()) != 0 {
				t.Fatalf("walk jumped from %v to %v", last, v)
			}
			last = v
			n++
			if n > limit {
				t.Fatalf("walk from %v dir %v len %v did not terminate", start, dir, length)
			}
		}
		if last != it.End() {
			t.Fatalf("last voxel %v != end %v", last, it.End())
		}
		if want := geom.Floor(start.Add(geom.Normalize(dir).Mul(length))); it.End() != want {
			t.Fatalf("end = %v, want %v", it.End(), want)
		}
	}
}

func TestCorners(t *testing.T) {
	got := Corners(geom.Vec3{0.9, 0.5, 0.9}, geom.Vec3{0.2, 0, 0.2})
	want := []geom.Vec3i{{X: 1}, {Z: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("corners = %v, want %v", got, want)
	}
	if !Diagonal(geom.Vec3{0.9, 0.5, 0.9}, geom.Vec3{0.2, 0, 0.2}) {
		t.Fatalf("expected diagonal step")
	}
	got = Corners(geom.Vec3{0.2, 0.5, 0.2}, geom.Vec3{0.2, 0, 0.2})
	if !reflect.DeepEqual(got, []geom.Vec3i{{}}) {
		t.Fatalf("in-voxel step corners = %v", got)
	}
	got = Corners(geom.Vec3{0.5, 0.5, 0.5}, geom.Vec3{-3, 0, 0})
	if !reflect.DeepEqual(got, []geom.Vec3i{{X: -1}}) {
		t.Fatalf("long step corners = %v", got)
	}
}

func chebyshev(a, b geom.Vec3i) int {
	d := a.Sub(b)
	return max(abs(d.X), max(abs(d.Y), abs(d.Z)))
}
