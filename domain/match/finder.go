package match

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/templateplay-go/domain/catalog"
	"github.com/soocke/templateplay-go/domain/cluster"
)

// Options configures a Finder.
type Options struct {
	GroupThreshold int
	Epsilon        float64
	// Duplicate selects cv2-compatible clustering; see cluster.Options.
	Duplicate bool
	// Workers bounds concurrent (template, image) tasks. <= 0 means 10.
	Workers int
	// TaskTimeout cancels a single task that runs longer. 0 disables it.
	TaskTimeout time.Duration
	// Thickness is copied onto every Detection.
	Thickness int
}

// DefaultTaskTimeout bounds one (template, image) task under DefaultOptions.
const DefaultTaskTimeout = 2 * time.Second

// DefaultOptions returns the stock matcher settings.
func DefaultOptions() Options {
	return Options{GroupThreshold: 1, Epsilon: 0.2, Workers: 10, TaskTimeout: DefaultTaskTimeout, Thickness: 2}
}

// Finder runs every template image of a catalog against a frame on a bounded
// worker pool and clusters the candidates of each task.
type Finder struct {
	corr   Correlator
	opts   Options
	logger *slog.Logger
}

// NewFinder returns a Finder using corr. A nil logger disables logging.
func NewFinder(corr Correlator, opts Options, logger *slog.Logger) *Finder {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	return &Finder{corr: corr, opts: opts, logger: logger}
}

type task struct {
	tmpl *catalog.Template
	img  *catalog.TemplateImage
}

// Find matches all templates of cat against frame. Detections are returned in
// catalog order (template, then image, then cluster). A failing task yields a
// *MatchError in the joined error while detections of the other tasks are
// still returned. Once ctx is done no new tasks are started.
func (f *Finder) Find(ctx context.Context, frame *image.RGBA, cat *catalog.Catalog) ([]Detection, error) {
	if frame == nil {
		return nil, ErrNilFrame
	}
	if cat == nil || cat.ImageCount() == 0 {
		return nil, nil
	}
	start := time.Now()
	surface, err := f.corr.Prepare(frame)
	if err != nil {
		return nil, fmt.Errorf("prepare frame: %w", err)
	}
	defer surface.Close()

	var tasks []task
	for _, tmpl := range cat.Templates() {
		for _, img := range tmpl.Images {
			tasks = append(tasks, task{tmpl: tmpl, img: img})
		}
	}

	results := make([][]Detection, len(tasks))
	errs := make([]error, len(tasks))
	sem := make(chan struct{}, f.opts.Workers)
	var wg sync.WaitGroup
dispatch:
	for i, t := range tasks {
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = f.run(ctx, surface, t)
		}(i, t)
	}
	wg.Wait()

	var out []Detection
	for _, dets := range results {
		out = append(out, dets...)
	}
	err = errors.Join(errs...)
	if f.logger != nil {
		f.logger.Debug("frame matched",
			"tasks", len(tasks),
			"detections", len(out),
			"duration_ms", time.Since(start).Milliseconds(),
			"failed", err != nil)
	}
	return out, err
}

func (f *Finder) run(ctx context.Context, s Surface, t task) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets = nil
			err = &MatchError{Template: t.tmpl.Name, Path: t.img.Path, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil && f.logger != nil {
			f.logger.Warn("match task failed", "template", t.tmpl.Name, "path", t.img.Path, "error", err)
		}
	}()
	if f.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.TaskTimeout)
		defer cancel()
	}
	pts, err := s.Candidates(ctx, t.img)
	if err != nil {
		return nil, &MatchError{Template: t.tmpl.Name, Path: t.img.Path, Err: err}
	}
	rects := cluster.Candidates(pts, image.Pt(t.img.Width(), t.img.Height()), cluster.Options{
		GroupThreshold: f.opts.GroupThreshold,
		Epsilon:        f.opts.Epsilon,
		Duplicate:      f.opts.Duplicate,
	})
	bounds := s.Bounds()
	for _, r := range rects {
		if !r.In(bounds) {
			continue
		}
		dets = append(dets, Detection{
			Image:     t.img,
			Template:  t.tmpl.Name,
			X:         r.Min.X,
			Y:         r.Min.Y,
			Color:     t.tmpl.Color,
			Thickness: f.opts.Thickness,
		})
	}
	return dets, nil
}
