package app

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/soocke/templateplay-go/domain/capture"
	"github.com/soocke/templateplay-go/domain/catalog"
	"github.com/soocke/templateplay-go/domain/filter"
	"github.com/soocke/templateplay-go/domain/match"
	"github.com/soocke/templateplay-go/domain/render"
)

const scanStatsLogInterval = 5 * time.Second

// Matcher finds catalog templates in a frame.
type Matcher interface {
	Find(ctx context.Context, frame *image.RGBA, cat *catalog.Catalog) ([]match.Detection, error)
}

// Scanner runs capture -> filter -> match -> display cycles.
type Scanner struct {
	source  capture.Source
	catalog *catalog.Catalog
	matcher Matcher
	sink    render.Sink
	filter  *filter.HSV
	logger  *slog.Logger

	cycles        atomic.Uint64
	captureErrors atomic.Uint64
	matchErrors   atomic.Uint64
	detections    atomic.Uint64
	matchNanos    atomic.Uint64
	last          atomic.Int64
}

// ScanStats summarises scanner behaviour for instrumentation.
type ScanStats struct {
	Cycles         uint64
	CaptureErrors  uint64
	MatchErrors    uint64
	Detections     uint64
	AvgMatch       time.Duration
	LastDetections int
}

// NewScanner wires a scan cycle. hsv may be nil; logger may be nil.
func NewScanner(src capture.Source, cat *catalog.Catalog, m Matcher, sink render.Sink, hsv *filter.HSV, logger *slog.Logger) *Scanner {
	if hsv != nil && hsv.Identity() {
		hsv = nil
	}
	return &Scanner{source: src, catalog: cat, matcher: m, sink: sink, filter: hsv, logger: logger}
}

// Cycle performs one scan and returns the number of detections shown. A
// capture failure is returned as *capture.CaptureError without matching.
// Match task failures are logged and the partial result is still shown.
// render.ErrStop from the sink is passed through.
func (s *Scanner) Cycle(ctx context.Context) (int, error) {
	s.cycles.Add(1)
	frame, err := s.source.CaptureFrame(ctx)
	if err != nil {
		s.captureErrors.Add(1)
		var ce *capture.CaptureError
		if !errors.As(err, &ce) && ctx.Err() == nil {
			err = &capture.CaptureError{Source: "source", Err: err}
		}
		return 0, err
	}

	search := frame
	if s.filter != nil {
		search = s.filter.Apply(frame)
	}

	start := time.Now()
	dets, err := s.matcher.Find(ctx, search, s.catalog)
	s.matchNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		s.matchErrors.Add(1)
		if s.logger != nil {
			s.logger.Warn("scan matched with failures", "detections", len(dets), "error", err)
		}
	}
	s.detections.Add(uint64(len(dets)))
	s.last.Store(int64(len(dets)))
	s.logDetections(ctx, dets)

	if err := s.sink.Show(ctx, frame, dets); err != nil {
		return len(dets), err
	}
	return len(dets), nil
}

// Run repeats Cycle every interval until ctx is cancelled or the sink returns
// render.ErrStop, in which case Run returns nil. Capture failures are logged
// and retried on the next tick; other sink errors end the loop.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(scanStatsLogInterval)
	defer statsTicker.Stop()

	for {
		_, err := s.Cycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, render.ErrStop):
			if s.logger != nil {
				s.logger.Info("scan stopped by sink")
			}
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			var ce *capture.CaptureError
			if !errors.As(err, &ce) {
				return err
			}
			if s.logger != nil {
				s.logger.Error("capture failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-statsTicker.C:
			s.logStats()
		case <-ticker.C:
		}
	}
}

// logDetections writes one debug record per detection, with screen
// coordinates when the source can map them.
func (s *Scanner) logDetections(ctx context.Context, dets []match.Detection) {
	if s.logger == nil || len(dets) == 0 || !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	loc, _ := s.source.(capture.Locator)
	for _, d := range dets {
		attrs := []any{"template", d.Template, "x", d.X, "y", d.Y}
		if loc != nil {
			p := loc.ScreenPosition(d.Start())
			attrs = append(attrs, "screen_x", p.X, "screen_y", p.Y)
		}
		s.logger.Debug("detection", attrs...)
	}
}

func (s *Scanner) Stats() ScanStats {
	cycles := s.cycles.Load()
	matched := cycles - s.captureErrors.Load()
	var avg time.Duration
	if matched > 0 {
		avg = time.Duration(s.matchNanos.Load() / matched)
	}
	return ScanStats{
		Cycles:         cycles,
		CaptureErrors:  s.captureErrors.Load(),
		MatchErrors:    s.matchErrors.Load(),
		Detections:     s.detections.Load(),
		AvgMatch:       avg,
		LastDetections: int(s.last.Load()),
	}
}

func (s *Scanner) logStats() {
	if s.logger == nil {
		return
	}
	st := s.Stats()
	s.logger.Debug("scan.stats",
		"cycles", st.Cycles,
		"capture_errors", st.CaptureErrors,
		"match_errors", st.MatchErrors,
		"detections", st.Detections,
		"avg_match", st.AvgMatch,
		"last_detections", st.LastDetections,
	)
}
