// Package app assembles the scan pipeline and drives it.
package app

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/soocke/templateplay-go/config"
	"github.com/soocke/templateplay-go/domain/capture"
	"github.com/soocke/templateplay-go/domain/catalog"
	"github.com/soocke/templateplay-go/domain/filter"
	"github.com/soocke/templateplay-go/domain/match"
	"github.com/soocke/templateplay-go/domain/render"
)

// Container holds the components built from a Config.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Catalog *catalog.Catalog
	Filter  *filter.HSV
	Finder  *match.Finder
	Source  capture.Source
}

// BuildContainer loads the template catalog and constructs the matcher and
// frame source described by cfg. The sink is chosen by the caller since
// display surfaces may need the main goroutine.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	if f := cfg.Filter; f != nil {
		c.Filter = &filter.HSV{
			HMin: f.HMin, SMin: f.SMin, VMin: f.VMin,
			HMax: f.HMax, SMax: f.SMax, VMax: f.VMax,
			SAdd: f.SAdd, SSub: f.SSub, VAdd: f.VAdd, VSub: f.VSub,
		}
		if c.Filter.Identity() {
			c.Filter = nil
		}
	}

	opts := catalog.LoadOptions{
		Threshold:   cfg.ThresholdFor,
		SkipInvalid: cfg.SkipInvalid,
		Logger:      logger,
	}
	if c.Filter != nil {
		opts.Preprocess = c.Filter.Apply
	}
	cat, err := catalog.Load(cfg.TemplateDir, opts)
	if err != nil {
		return nil, err
	}
	if cat.ImageCount() == 0 && logger != nil {
		logger.Warn("no template images found", "dir", cfg.TemplateDir)
	}
	c.Catalog = cat

	corr, err := match.NewCorrelator(cfg.Backend, cfg.Grayscale)
	if err != nil {
		return nil, err
	}
	c.Finder = match.NewFinder(corr, match.Options{
		GroupThreshold: cfg.GroupThreshold,
		Epsilon:        cfg.Epsilon,
		Duplicate:      cfg.Parity,
		Workers:        cfg.Workers,
		TaskTimeout:    cfg.TaskTimeout,
		Thickness:      cfg.Thickness,
	}, logger)

	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}
	c.Source = src
	return c, nil
}

// Region returns the configured capture region; empty means everything.
func Region(cfg *config.Config) image.Rectangle {
	if cfg.RegionW <= 0 || cfg.RegionH <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(cfg.RegionX, cfg.RegionY, cfg.RegionX+cfg.RegionW, cfg.RegionY+cfg.RegionH)
}

// NewSource constructs the frame source named by cfg.Source.
func NewSource(cfg *config.Config) (capture.Source, error) {
	region := Region(cfg)
	switch cfg.Source {
	case "", "screen":
		return &capture.Screen{Region: region}, nil
	case "window":
		return capture.NewWindow(cfg.WindowName, region)
	case "file":
		return capture.NewFile(cfg.FramePath, region)
	}
	return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
}

// NewScanner returns a Scanner showing results on sink.
func (c *Container) NewScanner(sink render.Sink) *Scanner {
	return NewScanner(c.Source, c.Catalog, c.Finder, sink, c.Filter, c.Logger)
}
