package view

import (
	"image"

	"github.com/soocke/templateplay-go/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// capturePreview owns the annotated frame label and the zoomed detection
// label. It must only be used on the Tk goroutine.
type capturePreview struct {
	captureLabel   *LabelWidget
	detectionLabel *LabelWidget
	maxW, maxH     int
	capturePhoto   *Img
	detectionPhoto *Img
}

const zoomSize = 160

func newCapturePreview(row, maxW, maxH int) *capturePreview {
	placeholder := images.EncodePNG(image.NewRGBA(image.Rect(0, 0, 200, 120)))
	v := &capturePreview{maxW: max(maxW, 50), maxH: max(maxH, 50)}
	v.capturePhoto = NewPhoto(Data(placeholder))
	v.detectionPhoto = NewPhoto(Data(placeholder))
	v.captureLabel = Label(Image(v.capturePhoto), Borderwidth(1), Relief("sunken"))
	v.detectionLabel = Label(Image(v.detectionPhoto), Borderwidth(1), Relief("sunken"))
	Grid(v.captureLabel, Row(row), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	Grid(v.detectionLabel, Row(row), Column(4), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	return v
}

func (v *capturePreview) updateCapture(img image.Image) {
	if img == nil {
		return
	}
	png := images.EncodePNG(images.ScaleToFit(img, v.maxW, v.maxH))
	// Replace the previous photo so obsolete pixel buffers are released.
	v.capturePhoto.Delete()
	v.capturePhoto = NewPhoto(Data(png))
	v.captureLabel.Configure(Image(v.capturePhoto))
}

func (v *capturePreview) updateDetection(frame *image.RGBA, r image.Rectangle, ok bool) {
	var img image.Image = image.NewRGBA(image.Rect(0, 0, 1, 1))
	if ok {
		if roi, _, err := images.ExtractROI(frame, r, 8); err == nil {
			img = images.ScaleToFit(roi, zoomSize, zoomSize)
		}
	}
	v.detectionPhoto.Delete()
	v.detectionPhoto = NewPhoto(Data(images.EncodePNG(img)))
	v.detectionLabel.Configure(Image(v.detectionPhoto))
}
