//go:build gocv

package render

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/soocke/templateplay-go/domain/match"
)

// HighGUI shows frames in an OpenCV window. Pressing q stops the loop.
type HighGUI struct {
	win     *gocv.Window
	Options Options
}

// NewHighGUI opens a named window. It must be used from the main goroutine
// on platforms where highgui requires it.
func NewHighGUI(title string) *HighGUI {
	return &HighGUI{win: gocv.NewWindow(title)}
}

func (h *HighGUI) Show(ctx context.Context, frame *image.RGBA, dets []match.Detection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	Annotate(frame, dets, h.Options)
	m, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("frame to mat: %w", err)
	}
	defer m.Close()
	h.win.IMShow(m)
	if h.win.WaitKey(1) == 'q' {
		return ErrStop
	}
	return nil
}

func (h *HighGUI) Close() error { return h.win.Close() }
