// Package cluster merges overlapping candidate rectangles that describe the
// same object into one representative rectangle.
package cluster

import (
	"image"
	"math"
)

// Options configures Candidates.
type Options struct {
	// GroupThreshold is the minimum corroboration for a cluster.
	GroupThreshold int
	// Epsilon is the relative edge tolerance used to decide whether two
	// rectangles belong together.
	Epsilon float64
	// Duplicate inserts every rectangle twice and applies Group's strict
	// "more than GroupThreshold members" rule, reproducing the output of
	// cv2.groupRectangles callers that duplicate their input. When false a
	// cluster survives with at least max(GroupThreshold, 1) members.
	Duplicate bool
}

// Candidates expands top-left points into size-sized rectangles and groups
// them. The result order follows the first member of every cluster.
func Candidates(points []image.Point, size image.Point, opts Options) []image.Rectangle {
	if len(points) == 0 {
		return nil
	}
	n := len(points)
	if opts.Duplicate {
		n *= 2
	}
	rects := make([]image.Rectangle, 0, n)
	for _, p := range points {
		r := image.Rectangle{Min: p, Max: p.Add(size)}
		rects = append(rects, r)
		if opts.Duplicate {
			rects = append(rects, r)
		}
	}
	if opts.Duplicate {
		return Group(rects, opts.GroupThreshold, opts.Epsilon)
	}
	return group(rects, max(opts.GroupThreshold, 1), opts.Epsilon)
}

// Group clusters rects the way cv2.groupRectangles does: rectangles are
// partitioned by Similar, each class is averaged, classes with at most
// groupThreshold members are dropped, and an averaged rectangle lying inside a
// stronger one is dropped too. groupThreshold <= 0 returns rects unchanged.
func Group(rects []image.Rectangle, groupThreshold int, eps float64) []image.Rectangle {
	if groupThreshold <= 0 || len(rects) == 0 {
		out := make([]image.Rectangle, len(rects))
		copy(out, rects)
		return out
	}
	return group(rects, groupThreshold+1, eps)
}

// group keeps classes with at least minMembers rectangles.
func group(rects []image.Rectangle, minMembers int, eps float64) []image.Rectangle {
	labels, nclasses := partition(rects, eps)

	type acc struct{ x, y, w, h, n int }
	sums := make([]acc, nclasses)
	for i, r := range rects {
		a := &sums[labels[i]]
		a.x += r.Min.X
		a.y += r.Min.Y
		a.w += r.Dx()
		a.h += r.Dy()
		a.n++
	}
	avg := make([]image.Rectangle, nclasses)
	for i, a := range sums {
		s := 1 / float64(a.n)
		x := round(float64(a.x) * s)
		y := round(float64(a.y) * s)
		avg[i] = image.Rect(x, y, x+round(float64(a.w)*s), y+round(float64(a.h)*s))
	}

	out := make([]image.Rectangle, 0, nclasses)
	for i, r1 := range avg {
		n1 := sums[i].n
		if n1 < minMembers {
			continue
		}
		nested := false
		for j, r2 := range avg {
			n2 := sums[j].n
			if j == i || n2 < minMembers {
				continue
			}
			dx := round(float64(r2.Dx()) * eps)
			dy := round(float64(r2.Dy()) * eps)
			if r1.Min.X >= r2.Min.X-dx && r1.Min.Y >= r2.Min.Y-dy &&
				r1.Max.X <= r2.Max.X+dx && r1.Max.Y <= r2.Max.Y+dy &&
				(n2 > max(3, n1) || n1 < 3) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, r1)
		}
	}
	return out
}

// Similar reports whether every edge of a and b differs by at most
// eps * (min width + min height) / 2.
func Similar(a, b image.Rectangle, eps float64) bool {
	delta := eps * float64(min(a.Dx(), b.Dx())+min(a.Dy(), b.Dy())) * 0.5
	return math.Abs(float64(a.Min.X-b.Min.X)) <= delta &&
		math.Abs(float64(a.Min.Y-b.Min.Y)) <= delta &&
		math.Abs(float64(a.Max.X-b.Max.X)) <= delta &&
		math.Abs(float64(a.Max.Y-b.Max.Y)) <= delta
}

// partition labels rects with the transitive closure of Similar. Class ids
// are assigned in order of each class's first member.
func partition(rects []image.Rectangle, eps float64) ([]int, int) {
	parent := make([]int, len(rects))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if !Similar(rects[i], rects[j], eps) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			if ri < rj {
				parent[rj] = ri
			} else {
				parent[ri] = rj
			}
		}
	}
	labels := make([]int, len(rects))
	ids := map[int]int{}
	for i := range rects {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}

// round matches OpenCV's saturate_cast rounding (half to even).
func round(v float64) int { return int(math.RoundToEven(v)) }
