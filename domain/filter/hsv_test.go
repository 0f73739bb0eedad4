package filter

import (
	"image"
	"image/color"
	"testing"
)

func TestRGBToHSV_Primaries(t *testing.T) {
	cases := []struct {
		name    string
		r, g, b uint8
		h, s, v uint8
	}{
		{"red", 255, 0, 0, 0, 255, 255},
		{"green", 0, 255, 0, 60, 255, 255},
		{"blue", 0, 0, 255, 120, 255, 255},
		{"black", 0, 0, 0, 0, 0, 0},
		{"gray", 128, 128, 128, 0, 0, 128},
	}
	for _, tc := range cases {
		h, s, v := RGBToHSV(tc.r, tc.g, tc.b)
		if h != tc.h || s != tc.s || v != tc.v {
			t.Fatalf("%s: got (%d,%d,%d) want (%d,%d,%d)", tc.name, h, s, v, tc.h, tc.s, tc.v)
		}
		back := HSVToRGB(h, s, v)
		if back.R != tc.r || back.G != tc.g || back.B != tc.b {
			t.Fatalf("%s: round trip got %v", tc.name, back)
		}
	}
}

func TestHueColor(t *testing.T) {
	if c := HueColor(0); c != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("hue 0: %v", c)
	}
	if c := HueColor(120); c != (color.RGBA{0, 255, 0, 255}) {
		t.Fatalf("hue 120: %v", c)
	}
	if c := HueColor(480); c != (color.RGBA{0, 255, 0, 255}) {
		t.Fatalf("hue 480 should wrap to 120: %v", c)
	}
}

func TestShift_Saturates(t *testing.T) {
	if got := shift(250, 10); got != 255 {
		t.Fatalf("expected 255, got %d", got)
	}
	if got := shift(100, 10); got != 110 {
		t.Fatalf("expected 110, got %d", got)
	}
	if got := shift(5, -10); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := shift(100, -10); got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}
}

func TestApply_MasksOutOfRangeHue(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 0, 255, 255})
	f := PassThrough()
	f.HMin, f.HMax = 100, 140 // blue only
	out := f.Apply(img)
	if c := out.RGBAAt(0, 0); c != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("red should be masked, got %v", c)
	}
	if c := out.RGBAAt(1, 0); c != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("blue should pass, got %v", c)
	}
}

func TestIdentity(t *testing.T) {
	if !PassThrough().Identity() || !(HSV{}).Identity() {
		t.Fatalf("pass-through filters should be identity")
	}
	if (HSV{VSub: 3}).Identity() {
		t.Fatalf("shifting filter is not identity")
	}
}
