// Package match locates catalog templates in captured frames.
package match

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/soocke/templateplay-go/domain/catalog"
)

// ErrNilFrame is returned when a nil frame is passed to a correlator.
var ErrNilFrame = errors.New("nil frame")

// Detection is one located object. X and Y are the top-left corner in frame
// coordinates; the box spans the source image's width and height.
type Detection struct {
	Image     *catalog.TemplateImage
	Template  string
	X, Y      int
	Color     color.RGBA
	Thickness int
}

// Start is the top-left corner of the box.
func (d Detection) Start() image.Point { return image.Pt(d.X, d.Y) }

// End is the exclusive bottom-right corner of the box.
func (d Detection) End() image.Point {
	return image.Pt(d.X+d.Image.Width(), d.Y+d.Image.Height())
}

func (d Detection) Rect() image.Rectangle { return image.Rectangle{Min: d.Start(), Max: d.End()} }

func (d Detection) String() string {
	return fmt.Sprintf("%s@%v", d.Template, d.Rect())
}

// Surface is a frame prepared for correlation against any number of
// templates. Implementations must allow concurrent Candidates calls.
type Surface interface {
	Bounds() image.Rectangle
	// Candidates returns the top-left positions where img scores at least
	// img.Threshold.
	Candidates(ctx context.Context, img *catalog.TemplateImage) ([]image.Point, error)
	Close()
}

// Correlator prepares frames for matching.
type Correlator interface {
	Prepare(frame *image.RGBA) (Surface, error)
}

// MatchError reports a single failed (template, image) task.
type MatchError struct {
	Template string
	Path     string
	Err      error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("match %s (%s): %v", e.Template, e.Path, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }
