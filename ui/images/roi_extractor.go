package images

import (
	"errors"
	"image"
	"image/draw"
)

// ExtractROI returns a copy of r grown by pad pixels on every side and
// clamped to the frame. It is used for the zoomed detection preview.
func ExtractROI(frame *image.RGBA, r image.Rectangle, pad int) (*image.RGBA, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, errors.New("nil frame")
	}
	if pad < 0 {
		pad = 0
	}
	roi := r.Inset(-pad).Intersect(frame.Bounds())
	if roi.Empty() {
		return nil, roi, errors.New("roi outside frame")
	}
	out := image.NewRGBA(image.Rect(0, 0, roi.Dx(), roi.Dy()))
	draw.Draw(out, out.Bounds(), frame, roi.Min, draw.Src)
	return out, roi, nil
}
