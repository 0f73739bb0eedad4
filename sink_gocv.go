//go:build gocv

package main

import (
	"github.com/soocke/templateplay-go/config"
	"github.com/soocke/templateplay-go/domain/render"
)

func init() {
	sinkFactories["opencv"] = func(cfg *config.Config) (mainThreadSink, error) {
		h := render.NewHighGUI("templateplay")
		h.Options = render.Options{Labels: cfg.Labels}
		return h, nil
	}
}
