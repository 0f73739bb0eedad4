//go:build !windows

package capture

import (
	"context"
	"errors"
	"image"

	"github.com/vova616/screenshot"
)

func grabScreen(region image.Rectangle) (*image.RGBA, error) {
	if region.Empty() {
		return screenshot.CaptureScreen()
	}
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, err
	}
	r := region.Intersect(screen)
	if r.Empty() {
		return nil, ErrEmptyRegion
	}
	return screenshot.CaptureRect(r)
}

// Window captures a named window. Only supported on Windows.
type Window struct {
	Title  string
	Region image.Rectangle
}

var errWindowUnsupported = errors.New("window capture is only supported on windows")

// NewWindow always fails on this platform.
func NewWindow(title string, region image.Rectangle) (*Window, error) {
	return nil, &CaptureError{Source: "window " + title, Err: errWindowUnsupported}
}

func (w *Window) CaptureFrame(context.Context) (*image.RGBA, error) {
	return nil, &CaptureError{Source: "window " + w.Title, Err: errWindowUnsupported}
}

// ScreenPosition is the identity on this platform.
func (w *Window) ScreenPosition(p image.Point) image.Point { return p }
