// Package view is the Tk preview window for annotated frames.
package view

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/templateplay-go/domain/match"
	"github.com/soocke/templateplay-go/domain/render"
	"github.com/soocke/templateplay-go/ui/model"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const tick = 30 * time.Millisecond

type frameUpdate struct {
	frame *image.RGBA
	dets  []match.Detection
}

// Viewer is a render.Sink showing frames in a Tk window. Show may be called
// from any goroutine; Run must be called on the main goroutine. Pressing q or
// Escape, or closing the window, makes Show return render.ErrStop.
type Viewer struct {
	logger  *slog.Logger
	opts    render.Options
	frames  chan frameUpdate
	stopped atomic.Bool
	quit    atomic.Bool
	done    chan struct{}
	once    sync.Once

	// Tk state, main goroutine only.
	preview *capturePreview
	status  *LabelWidget
	model   *model.ScanModel
	afterID string
}

// NewViewer builds the window layout. Call it on the main goroutine.
func NewViewer(title string, maxW, maxH int, opts render.Options, logger *slog.Logger) *Viewer {
	v := &Viewer{
		logger: logger,
		opts:   opts,
		frames: make(chan frameUpdate, 1),
		done:   make(chan struct{}),
		model:  model.NewScanModel(),
	}
	App.WmTitle(title)
	v.status = Label(Txt(v.model.Status()), Borderwidth(1), Relief("ridge"))
	Grid(v.status, Row(0), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	Grid(Button(Txt("Exit"), Command(v.close)), Row(0), Column(4), Sticky("e"), Padx("0.4m"), Pady("0.3m"))
	v.preview = newCapturePreview(1, maxW, maxH)

	Bind(App, "<KeyPress-q>", Command(v.close))
	Bind(App, "<Escape>", Command(v.close))
	WmProtocol(App, "WM_DELETE_WINDOW", v.close)
	return v
}

// Show annotates frame and queues it for display, dropping it when the
// window is still busy with the previous one.
func (v *Viewer) Show(ctx context.Context, frame *image.RGBA, dets []match.Detection) error {
	if v.stopped.Load() {
		return render.ErrStop
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	render.Annotate(frame, dets, v.opts)
	select {
	case v.frames <- frameUpdate{frame: frame, dets: dets}:
	default:
	}
	return nil
}

// Run starts the Tk event loop and returns when the window is closed.
func (v *Viewer) Run() {
	v.schedule()
	App.Wait()
	v.stopped.Store(true)
	v.once.Do(func() { close(v.done) })
}

// Done is closed once the window is gone.
func (v *Viewer) Done() <-chan struct{} { return v.done }

// Quit asks the Tk goroutine to close the window. Safe from any goroutine.
func (v *Viewer) Quit() { v.quit.Store(true) }

func (v *Viewer) schedule() {
	v.afterID = TclAfter(tick, v.update)
}

func (v *Viewer) update() {
	if v.quit.Load() {
		v.close()
		return
	}
	select {
	case u := <-v.frames:
		v.model.OnFrame(u.dets, time.Now())
		v.preview.updateCapture(u.frame)
		focus, ok := v.model.Focus()
		v.preview.updateDetection(u.frame, focus, ok)
		v.status.Configure(Txt(v.model.Status()))
	default:
	}
	v.schedule()
}

func (v *Viewer) close() {
	if v.stopped.Swap(true) {
		return
	}
	if v.logger != nil {
		v.logger.Info("viewer closed", "status", v.model.Status())
	}
	if v.afterID != "" {
		TclAfterCancel(v.afterID)
	}
	Destroy(App)
}
