// Package capture produces RGBA frames from the screen, a window or a file.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/disintegration/imaging"
)

// Source produces frames. Returned frames are owned by the caller.
type Source interface {
	CaptureFrame(ctx context.Context) (*image.RGBA, error)
}

// Locator is implemented by sources that know where their frames sit on the
// screen.
type Locator interface {
	// ScreenPosition maps a point of the last captured frame to screen
	// coordinates.
	ScreenPosition(p image.Point) image.Point
}

// CaptureError reports a failed capture for a named source.
type CaptureError struct {
	Source string
	Err    error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture %s: %v", e.Source, e.Err) }

func (e *CaptureError) Unwrap() error { return e.Err }

// ErrEmptyRegion means the requested region does not overlap the source.
var ErrEmptyRegion = errors.New("empty capture region")

// Screen captures the whole primary screen or Region when it is not empty.
type Screen struct {
	Region image.Rectangle
}

func (s *Screen) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := grabScreen(s.Region)
	if err != nil {
		return nil, &CaptureError{Source: "screen", Err: err}
	}
	return opaque(img), nil
}

// ScreenPosition offsets p by the capture region.
func (s *Screen) ScreenPosition(p image.Point) image.Point {
	if s.Region.Empty() {
		return p
	}
	return p.Add(s.Region.Min)
}

// File replays a single image. Every call returns a fresh copy so callers may
// draw on it.
type File struct {
	Path   string
	Region image.Rectangle

	once sync.Once
	img  *image.RGBA
	err  error
}

// NewFile decodes path eagerly so a bad file is reported at startup.
func NewFile(path string, region image.Rectangle) (*File, error) {
	f := &File{Path: path, Region: region}
	if _, err := f.CaptureFrame(context.Background()); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.once.Do(func() {
		src, err := imaging.Open(f.Path)
		if err != nil {
			f.err = err
			return
		}
		r := src.Bounds()
		if !f.Region.Empty() {
			r = f.Region.Add(r.Min).Intersect(r)
			if r.Empty() {
				f.err = ErrEmptyRegion
				return
			}
		}
		img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(img, img.Bounds(), src, r.Min, draw.Src)
		f.img = opaque(img)
	})
	if f.err != nil {
		return nil, &CaptureError{Source: "file " + f.Path, Err: f.err}
	}
	out := image.NewRGBA(f.img.Rect)
	copy(out.Pix, f.img.Pix)
	return out, nil
}

// opaque forces alpha to 0xff; some capture APIs leave it undefined.
func opaque(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			row[x*4+3] = 0xff
		}
	}
	return img
}
