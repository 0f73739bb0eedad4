//go:build windows

package capture

import (
	"image"
	"testing"

	"golang.org/x/sys/windows"
)

var procGetGuiResources = user32.NewProc("GetGuiResources")

const grGDIObjects = 0

func gdiObjects() int {
	n, _, _ := procGetGuiResources.Call(uintptr(windows.CurrentProcess()), grGDIObjects)
	return int(n)
}

func TestBitBlt_ReleasesGDIObjects(t *testing.T) {
	r := image.Rect(0, 0, 64, 64)
	if _, err := bitBlt(0, r); err != nil {
		t.Skipf("no desktop to capture: %v", err)
	}
	before := gdiObjects()
	for i := 0; i < 200; i++ {
		if _, err := bitBlt(0, r); err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
	}
	if after := gdiObjects(); after > before+5 {
		t.Fatalf("GDI objects grew from %d to %d over 200 captures", before, after)
	}
}

func TestWindow_ScreenPositionFollowsRegion(t *testing.T) {
	w, err := NewWindow("", image.Rect(10, 20, 74, 84))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.CaptureFrame(t.Context()); err != nil {
		t.Skipf("no desktop to capture: %v", err)
	}
	if got := w.ScreenPosition(image.Pt(1, 2)); got != image.Pt(11, 22) {
		t.Fatalf("unexpected screen position %v", got)
	}
}
