package model

import (
	"image"
	"math"
	"testing"
	"time"

	"github.com/soocke/templateplay-go/domain/catalog"
	"github.com/soocke/templateplay-go/domain/match"
)

func det(name string, x, y int) match.Detection {
	img := catalog.NewTemplateImage(name+"/a.png", image.NewRGBA(image.Rect(0, 0, 10, 5)), 0.6)
	return match.Detection{Image: img, Template: name, X: x, Y: y}
}

func TestScanModel_StatusAndCounts(t *testing.T) {
	m := NewScanModel()
	if got := m.Status(); got != "waiting for frames" {
		t.Fatalf("unexpected initial status %q", got)
	}
	base := time.Unix(0, 0)
	m.OnFrame([]match.Detection{det("button", 1, 2), det("enemy", 30, 30), det("button", 50, 2)}, base)
	if got := m.Status(); got != "frame 1 | button x2, enemy x1" {
		t.Fatalf("unexpected status %q", got)
	}
	focus, ok := m.Focus()
	if !ok || focus != image.Rect(1, 2, 11, 7) {
		t.Fatalf("expected focus on first detection, got %v ok=%v", focus, ok)
	}

	m.OnFrame(nil, base.Add(100*time.Millisecond))
	if got := m.Status(); got != "frame 2 | no detections | 10.0 fps" {
		t.Fatalf("unexpected status %q", got)
	}
	if _, ok := m.Focus(); ok {
		t.Fatalf("focus should reset when nothing is detected")
	}
}

func TestScanModel_FPSSmoothing(t *testing.T) {
	m := NewScanModel()
	base := time.Unix(0, 0)
	now := base
	for i := 0; i < 50; i++ {
		m.OnFrame(nil, now)
		now = now.Add(50 * time.Millisecond)
	}
	if fps := m.FPS(); math.Abs(fps-20) > 0.01 {
		t.Fatalf("expected ~20 fps, got %v", fps)
	}
}

func TestScanModel_NilSafe(t *testing.T) {
	var m *ScanModel
	m.OnFrame(nil, time.Now())
	if m.FPS() != 0 || m.Status() == "" {
		t.Fatalf("nil model should be inert")
	}
}
