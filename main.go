package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/templateplay-go/app"
	"github.com/soocke/templateplay-go/assets"
	"github.com/soocke/templateplay-go/config"
	"github.com/soocke/templateplay-go/debug"
	"github.com/soocke/templateplay-go/domain/render"
	"github.com/soocke/templateplay-go/ui/view"
)

// mainThreadSink is a sink that must be driven from the main goroutine.
type mainThreadSink interface {
	render.Sink
	Close() error
}

// sinkFactories holds sinks that only exist in some builds (see sink_gocv.go).
var sinkFactories = map[string]func(cfg *config.Config) (mainThreadSink, error){}

func main() {
	cfgPath := flag.String("config", "templateplay.yaml", "config file (.yaml, .yml or .json)")
	writeConfig := flag.String("write-config", "", "write an example config to this path and exit")
	templates := flag.String("templates", "", "template directory")
	threshold := flag.Float64("threshold", 0, "default match threshold")
	source := flag.String("source", "", "frame source: screen, window or file")
	frame := flag.String("frame", "", "image file for -source file")
	window := flag.String("window", "", "window title for -source window")
	sink := flag.String("sink", "", "display: window, files or opencv")
	out := flag.String("out", "", "output directory for -sink files")
	frames := flag.Int("frames", 0, "stop after this many frames (files sink)")
	backend := flag.String("backend", "", "correlation backend: ncc or opencv")
	workers := flag.Int("workers", 0, "concurrent match tasks")
	parity := flag.Bool("parity", false, "cv2.groupRectangles compatible clustering")
	grayscale := flag.Bool("grayscale", false, "match on luminance only")
	labels := flag.Bool("labels", false, "draw template names")
	debugFlag := flag.Bool("debug", false, "debug logging and runtime stats")
	flag.Parse()

	if *writeConfig != "" {
		if err := assets.WriteExampleConfig(*writeConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, cfgErr := config.Load(*cfgPath)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "templates":
			cfg.TemplateDir = *templates
		case "threshold":
			cfg.Threshold = *threshold
		case "source":
			cfg.Source = *source
		case "frame":
			cfg.FramePath = *frame
		case "window":
			cfg.WindowName = *window
		case "sink":
			cfg.Sink = *sink
		case "out":
			cfg.OutputDir = *out
		case "frames":
			cfg.MaxFrames = *frames
		case "backend":
			cfg.Backend = *backend
		case "workers":
			cfg.Workers = *workers
		case "parity":
			cfg.Parity = *parity
		case "grayscale":
			cfg.Grayscale = *grayscale
		case "labels":
			cfg.Labels = *labels
		case "debug":
			cfg.Debug = *debugFlag
		}
	})
	_ = cfg.Validate()

	logger := NewLogger(os.Stdout, cfg.Debug)
	if cfgErr != nil {
		logger.Warn("config load failed, using defaults", "path", *cfgPath, "error", cfgErr)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("templateplay failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := app.BuildContainer(cfg, logger)
	if err != nil {
		return err
	}
	opts := render.Options{Labels: cfg.Labels}

	switch cfg.Sink {
	case "files":
		files, err := render.NewFileSink(cfg.OutputDir, cfg.MaxFrames, logger)
		if err != nil {
			return err
		}
		files.Options = opts
		return scan(ctx, c, files)

	case "window":
		v := view.NewViewer("templateplay", cfg.PreviewMaxW, cfg.PreviewMaxH, opts, logger)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		errc := make(chan error, 1)
		go func() {
			errc <- scan(ctx, c, v)
			v.Quit()
		}()
		go func() {
			select {
			case <-v.Done():
			case <-ctx.Done():
				v.Quit()
			}
			cancel()
		}()
		// Tk must own the main goroutine.
		v.Run()
		cancel()
		return <-errc
	}

	factory, ok := sinkFactories[cfg.Sink]
	if !ok {
		return fmt.Errorf("sink %q is not available in this build", cfg.Sink)
	}
	s, err := factory(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return scan(ctx, c, s)
}

func scan(ctx context.Context, c *app.Container, sink render.Sink) error {
	s := c.NewScanner(sink)
	if c.Config.Debug {
		debug.StartRuntimeLogger(ctx, 0, c.Logger, func() []slog.Attr {
			st := s.Stats()
			return []slog.Attr{
				slog.Uint64("cycles", st.Cycles),
				slog.Uint64("detections", st.Detections),
				slog.Duration("avg_match", st.AvgMatch),
			}
		})
	}
	err := s.Run(ctx, c.Config.Interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
