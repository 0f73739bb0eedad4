package cluster

import (
	"image"
	"testing"
)

var iconSize = image.Pt(20, 10)

func TestCandidates_Empty(t *testing.T) {
	for _, dup := range []bool{false, true} {
		if got := Candidates(nil, iconSize, Options{GroupThreshold: 1, Epsilon: 0.2, Duplicate: dup}); len(got) != 0 {
			t.Fatalf("duplicate=%v: expected no clusters, got %v", dup, got)
		}
	}
}

func TestCandidates_SingleDetectionSurvives(t *testing.T) {
	want := image.Rect(50, 50, 70, 60)
	for _, dup := range []bool{false, true} {
		got := Candidates([]image.Point{{50, 50}}, iconSize, Options{GroupThreshold: 1, Epsilon: 0.2, Duplicate: dup})
		if len(got) != 1 || got[0] != want {
			t.Fatalf("duplicate=%v: expected [%v], got %v", dup, want, got)
		}
	}
}

func TestGroup_DropsUncorroboratedRectangle(t *testing.T) {
	// A lone rectangle is noise to groupRectangles; this is why callers duplicate.
	got := Group([]image.Rectangle{image.Rect(5, 5, 25, 15)}, 1, 0.2)
	if len(got) != 0 {
		t.Fatalf("expected lone rectangle dropped, got %v", got)
	}
}

func TestGroup_NonPositiveThresholdPassesThrough(t *testing.T) {
	in := []image.Rectangle{image.Rect(0, 0, 4, 4), image.Rect(1, 0, 5, 4)}
	got := Group(in, 0, 0.2)
	if len(got) != 2 || got[0] != in[0] || got[1] != in[1] {
		t.Fatalf("expected input unchanged, got %v", got)
	}
}

func TestCandidates_NeighboursCollapse(t *testing.T) {
	pts := []image.Point{{50, 50}, {51, 50}, {50, 51}}
	for _, dup := range []bool{false, true} {
		got := Candidates(pts, iconSize, Options{GroupThreshold: 1, Epsilon: 0.2, Duplicate: dup})
		if len(got) != 1 {
			t.Fatalf("duplicate=%v: expected 1 cluster, got %v", dup, got)
		}
		if got[0] != image.Rect(50, 50, 70, 60) {
			t.Fatalf("duplicate=%v: unexpected representative %v", dup, got[0])
		}
	}
}

func TestCandidates_DuplicatePointsCollapse(t *testing.T) {
	got := Candidates([]image.Point{{10, 10}, {10, 10}}, iconSize, Options{GroupThreshold: 1, Epsilon: 0.2})
	if len(got) != 1 || got[0].Min != image.Pt(10, 10) {
		t.Fatalf("expected one cluster at (10,10), got %v", got)
	}
}

func TestCandidates_SeparatedObjectsStayApart(t *testing.T) {
	pts := []image.Point{{10, 10}, {11, 10}, {120, 80}, {120, 81}}
	got := Candidates(pts, iconSize, Options{GroupThreshold: 1, Epsilon: 0.2})
	if len(got) != 2 {
		t.Fatalf("expected 2 clusters, got %v", got)
	}
	if got[0].Min.X > 12 || got[1].Min.X != 120 {
		t.Fatalf("clusters out of order or misplaced: %v", got)
	}
}

func TestCandidates_GroupThresholdTwo(t *testing.T) {
	opts := Options{GroupThreshold: 2, Epsilon: 0.2}
	if got := Candidates([]image.Point{{0, 0}}, iconSize, opts); len(got) != 0 {
		t.Fatalf("single candidate should not satisfy threshold 2, got %v", got)
	}
	if got := Candidates([]image.Point{{0, 0}, {1, 0}}, iconSize, opts); len(got) != 1 {
		t.Fatalf("two candidates should satisfy threshold 2, got %v", got)
	}
}

func TestSimilar(t *testing.T) {
	a := image.Rect(0, 0, 20, 10)
	// delta = 0.2 * (20 + 10) / 2 = 3
	if !Similar(a, a.Add(image.Pt(3, 0)), 0.2) {
		t.Fatalf("shift of 3 should be similar")
	}
	if Similar(a, a.Add(image.Pt(4, 0)), 0.2) {
		t.Fatalf("shift of 4 should not be similar")
	}
	if Similar(a, a.Add(image.Pt(1, 1)), 0) {
		t.Fatalf("eps 0 only matches identical rectangles")
	}
}

func TestGroup_TransitiveChainMerges(t *testing.T) {
	// 0 and 6 are not similar directly but are linked through 3.
	var rects []image.Rectangle
	for _, x := range []int{0, 3, 6} {
		r := image.Rect(x, 0, x+20, 10)
		rects = append(rects, r, r)
	}
	got := Group(rects, 1, 0.2)
	if len(got) != 1 || got[0] != image.Rect(3, 0, 23, 10) {
		t.Fatalf("expected one averaged rect at x=3, got %v", got)
	}
}
