package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeFrame(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), 7, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFile_CaptureReturnsFreshCopies(t *testing.T) {
	src, err := NewFile(writeFrame(t, 40, 30), image.Rectangle{})
	if err != nil {
		t.Fatalf("new file: %v", err)
	}
	a, err := src.CaptureFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a.Bounds() != image.Rect(0, 0, 40, 30) {
		t.Fatalf("unexpected bounds %v", a.Bounds())
	}
	a.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	b, _ := src.CaptureFrame(context.Background())
	if b.RGBAAt(0, 0) == a.RGBAAt(0, 0) {
		t.Fatalf("frames must not share pixels")
	}
}

func TestFile_Region(t *testing.T) {
	src, err := NewFile(writeFrame(t, 40, 30), image.Rect(10, 5, 20, 25))
	if err != nil {
		t.Fatalf("new file: %v", err)
	}
	img, _ := src.CaptureFrame(context.Background())
	if img.Bounds() != image.Rect(0, 0, 10, 20) {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	if c := img.RGBAAt(0, 0); c.R != 10 || c.G != 5 {
		t.Fatalf("region origin not applied: %v", c)
	}

	_, err = NewFile(writeFrame(t, 40, 30), image.Rect(100, 100, 120, 120))
	if !errors.Is(err, ErrEmptyRegion) {
		t.Fatalf("expected ErrEmptyRegion, got %v", err)
	}
}

func TestFile_MissingIsCaptureError(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "none.png"), image.Rectangle{})
	var ce *CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
}

func TestFile_CancelledContext(t *testing.T) {
	src, err := NewFile(writeFrame(t, 8, 8), image.Rectangle{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.CaptureFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpaque(t *testing.T) {
	img := image.NewRGBA(image.Rect(2, 2, 6, 6))
	sub := img.SubImage(image.Rect(3, 3, 5, 5)).(*image.RGBA)
	opaque(sub)
	if img.RGBAAt(3, 3).A != 0xff || img.RGBAAt(4, 4).A != 0xff {
		t.Fatalf("sub-image pixels should be opaque")
	}
	if img.RGBAAt(2, 2).A != 0 || img.RGBAAt(5, 5).A != 0 {
		t.Fatalf("pixels outside the sub-image must be untouched")
	}
}

func TestScreen_ScreenPosition(t *testing.T) {
	var loc Locator = &Screen{}
	if got := loc.ScreenPosition(image.Pt(3, 4)); got != image.Pt(3, 4) {
		t.Fatalf("full screen should not offset, got %v", got)
	}
	loc = &Screen{Region: image.Rect(100, 50, 300, 250)}
	if got := loc.ScreenPosition(image.Pt(3, 4)); got != image.Pt(103, 54) {
		t.Fatalf("unexpected screen position %v", got)
	}
}
