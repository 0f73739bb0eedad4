package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/soocke/templateplay-go/domain/match"
)

// ErrStop is returned by a Sink when the user asked to stop the display loop.
var ErrStop = errors.New("stop requested")

// Sink displays annotated frames.
type Sink interface {
	Show(ctx context.Context, frame *image.RGBA, dets []match.Detection) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, frame *image.RGBA, dets []match.Detection) error

func (f SinkFunc) Show(ctx context.Context, frame *image.RGBA, dets []match.Detection) error {
	return f(ctx, frame, dets)
}

// FileSink writes every shown frame as a numbered PNG into Dir.
type FileSink struct {
	Dir string
	// MaxFrames stops the loop after that many frames when > 0.
	MaxFrames int
	// Annotate draws detections before saving.
	Annotate bool
	Options  Options
	Logger   *slog.Logger

	mu    sync.Mutex
	count int
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string, maxFrames int, logger *slog.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{Dir: dir, MaxFrames: maxFrames, Annotate: true, Logger: logger}, nil
}

func (s *FileSink) Show(ctx context.Context, frame *image.RGBA, dets []match.Detection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MaxFrames > 0 && s.count >= s.MaxFrames {
		return ErrStop
	}
	if s.Annotate {
		Annotate(frame, dets, s.Options)
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("frame_%05d.png", s.count))
	if err := imaging.Save(frame, path); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	s.count++
	if s.Logger != nil {
		s.Logger.Debug("frame saved", "path", path, "detections", len(dets))
	}
	if s.MaxFrames > 0 && s.count >= s.MaxFrames {
		return ErrStop
	}
	return nil
}

// Frames reports how many frames were written.
func (s *FileSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
