// Package render draws detections onto frames and hands them to display
// surfaces.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/soocke/templateplay-go/domain/match"
)

// Options tunes Annotate.
type Options struct {
	// Labels writes the template name next to every box.
	Labels bool
	// Thickness overrides the detection thickness when > 0.
	Thickness int
}

// Annotate draws an outline for every detection directly into dst. The stroke
// grows inward from the box edges and is clipped to dst.
func Annotate(dst draw.Image, dets []match.Detection, opts Options) {
	bounds := dst.Bounds()
	for _, d := range dets {
		t := d.Thickness
		if opts.Thickness > 0 {
			t = opts.Thickness
		}
		if t <= 0 {
			t = 1
		}
		r := d.Rect()
		src := image.NewUniform(d.Color)
		for _, band := range outline(r, t) {
			band = band.Intersect(bounds)
			if !band.Empty() {
				draw.Draw(dst, band, src, image.Point{}, draw.Src)
			}
		}
		if opts.Labels {
			label(dst, r, d.Template, d.Color)
		}
	}
}

// outline returns the four edge bands of r with thickness t.
func outline(r image.Rectangle, t int) [4]image.Rectangle {
	t = min(t, (r.Dx()+1)/2, (r.Dy()+1)/2)
	return [4]image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+t, r.Min.X+t, r.Max.Y-t),
		image.Rect(r.Max.X-t, r.Min.Y+t, r.Max.X, r.Max.Y-t),
	}
}

func label(dst draw.Image, r image.Rectangle, text string, c color.RGBA) {
	face := basicfont.Face7x13
	// Baseline above the box, or just inside its top edge when there is no room.
	y := r.Min.Y - face.Descent - 1
	if y-face.Ascent < dst.Bounds().Min.Y {
		y = r.Min.Y + face.Ascent + 1
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(r.Min.X, y),
	}
	d.DrawString(text)
}
