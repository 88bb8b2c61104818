// Package grid walks the unit voxels crossed by a segment.
package grid

import (
	"math"

	"voxelfx.dev/internal/sim/geom"
)

const (
	// tieEpsilon is the window in which two axis crossings count as the same
	// step, so the walk passes through an edge or corner.
	tieEpsilon = 1e-10
	bigDelta   = 1e30
)

// Iterator is a 3-D DDA over the segment start + dir*[0, length]. When a
// step crosses an edge or corner, the face neighbours it skipped are queued
// and emitted before the next voxel. The walk is not restartable; build a new
// Iterator instead.
type Iterator struct {
	end       geom.Vec3i
	cur       geom.Vec3i
	step      [3]int
	deltaDist [3]float64
	sideDist  [3]float64
	extra     []geom.Vec3i
	done      bool
	budget    int
}

// NewIterator normalizes dir. A zero direction or length emits only the start
// voxel.
func NewIterator(start, dir geom.Vec3, length float64) *Iterator {
	d := geom.Normalize(dir)
	if length < 0 || math.IsNaN(length) {
		length = 0
	}
	it := &Iterator{
		end: geom.Floor(start.Add(d.Mul(length))),
		cur: geom.Floor(start),
	}
	origin := [3]int{it.cur.X, it.cur.Y, it.cur.Z}
	for i := 0; i < 3; i++ {
		switch {
		case d[i] > 0:
			it.step[i] = 1
		case d[i] < 0:
			it.step[i] = -1
		}
		if d[i] == 0 {
			it.deltaDist[i] = bigDelta
		} else {
			it.deltaDist[i] = math.Abs(1 / d[i])
		}
		if d[i] < 0 {
			it.sideDist[i] = (start[i] - float64(origin[i])) * it.deltaDist[i]
		} else {
			it.sideDist[i] = (float64(origin[i]) + 1 - start[i]) * it.deltaDist[i]
		}
	}
	// Every main step moves at least one axis one voxel closer to the end,
	// so the Manhattan distance bounds the walk.
	diff := it.end.Sub(it.cur)
	it.budget = abs(diff.X) + abs(diff.Y) + abs(diff.Z) + 1
	return it
}

// End is the voxel the walk finishes on: floor(start + dir*length).
func (it *Iterator) End() geom.Vec3i { return it.end }

func (it *Iterator) HasNext() bool { return !it.done }

// Next returns the next voxel, or false once the end voxel has been emitted.
func (it *Iterator) Next() (geom.Vec3i, bool) {
	if it.done {
		return geom.Vec3i{}, false
	}
	if len(it.extra) > 0 {
		v := it.extra[0]
		it.extra = it.extra[1:]
		if v == it.end {
			it.finish()
		}
		return v, true
	}
	current := it.cur
	if current == it.end || it.budget <= 0 {
		it.finish()
		return it.end, true
	}
	it.budget--

	closest := math.Min(it.sideDist[0], math.Min(it.sideDist[1], it.sideDist[2]))
	var tied [3]bool
	ties := 0
	for i := 0; i < 3; i++ {
		if it.sideDist[i]-closest < tieEpsilon {
			tied[i] = true
			ties++
		}
	}
	// Advance Z, then X, then Y.
	for _, axis := range [3]int{2, 0, 1} {
		if !tied[axis] {
			continue
		}
		it.sideDist[axis] += it.deltaDist[axis]
		it.cur = offset(it.cur, axis, it.step[axis])
	}
	if ties > 1 {
		for _, axis := range [3]int{2, 0, 1} {
			if tied[axis] && it.step[axis] != 0 {
				it.extra = append(it.extra, offset(current, axis, it.step[axis]))
			}
		}
	}
	return current, true
}

func (it *Iterator) finish() {
	it.done = true
	it.extra = nil
}

// Walk calls fn for every voxel on the segment until fn returns false.
func Walk(start, dir geom.Vec3, length float64, fn func(geom.Vec3i) bool) {
	it := NewIterator(start, dir, length)
	for {
		v, ok := it.Next()
		if !ok || !fn(v) {
			return
		}
	}
}

// Voxels collects the full walk.
func Voxels(start, dir geom.Vec3, length float64) []geom.Vec3i {
	var out []geom.Vec3i
	Walk(start, dir, length, func(v geom.Vec3i) bool {
		out = append(out, v)
		return true
	})
	return out
}

func offset(v geom.Vec3i, axis, d int) geom.Vec3i {
	switch axis {
	case 0:
		v.X += d
	case 1:
		v.Y += d
	default:
		v.Z += d
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
