package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for template matching and the scan loop.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Template catalog
	TemplateDir string             `json:"template_dir" yaml:"template_dir"`
	Threshold   float64            `json:"threshold" yaml:"threshold"`
	Thresholds  map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"` // per template name
	SkipInvalid bool               `json:"skip_invalid" yaml:"skip_invalid"`

	// Matching / clustering
	GroupThreshold int           `json:"group_threshold" yaml:"group_threshold"`
	Epsilon        float64       `json:"epsilon" yaml:"epsilon"`
	Parity         bool          `json:"parity" yaml:"parity"` // duplicate candidates like cv2.groupRectangles callers do
	Grayscale      bool          `json:"grayscale" yaml:"grayscale"`
	Backend        string        `json:"backend" yaml:"backend"` // "ncc" or "opencv"
	Workers        int           `json:"workers" yaml:"workers"`
	// TaskTimeout and Interval read as "2s"/"50ms" in YAML and JSON; JSON also
	// accepts integer nanoseconds.
	TaskTimeout    time.Duration `json:"task_timeout" yaml:"task_timeout"`

	// Capture
	Source     string `json:"source" yaml:"source"` // "screen", "window" or "file"
	WindowName string `json:"window_name,omitempty" yaml:"window_name,omitempty"`
	FramePath  string `json:"frame_path,omitempty" yaml:"frame_path,omitempty"`
	RegionX    int    `json:"region_x" yaml:"region_x"`
	RegionY    int    `json:"region_y" yaml:"region_y"`
	RegionW    int    `json:"region_w" yaml:"region_w"`
	RegionH    int    `json:"region_h" yaml:"region_h"`

	// Rendering
	Sink        string        `json:"sink" yaml:"sink"` // "window", "files" or "opencv"
	OutputDir   string        `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	MaxFrames   int           `json:"max_frames" yaml:"max_frames"`
	Thickness   int           `json:"thickness" yaml:"thickness"`
	Labels      bool          `json:"labels" yaml:"labels"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
	PreviewMaxW int           `json:"preview_max_w" yaml:"preview_max_w"`
	PreviewMaxH int           `json:"preview_max_h" yaml:"preview_max_h"`

	// Optional HSV pre-filter applied to frames and templates.
	Filter *HSVFilter `json:"filter,omitempty" yaml:"filter,omitempty"`
}

// HSVFilter mirrors filter.HSV using OpenCV 8-bit HSV ranges (H 0-179, S/V 0-255).
// Fields left out of a config file keep their DefaultHSVFilter values.
type HSVFilter struct {
	HMin int `json:"h_min" yaml:"h_min"`
	SMin int `json:"s_min" yaml:"s_min"`
	VMin int `json:"v_min" yaml:"v_min"`
	HMax int `json:"h_max" yaml:"h_max"`
	SMax int `json:"s_max" yaml:"s_max"`
	VMax int `json:"v_max" yaml:"v_max"`
	SAdd int `json:"s_add" yaml:"s_add"`
	SSub int `json:"s_sub" yaml:"s_sub"`
	VAdd int `json:"v_add" yaml:"v_add"`
	VSub int `json:"v_sub" yaml:"v_sub"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		TemplateDir:    "templates",
		Threshold:      0.6,
		GroupThreshold: 1,
		Epsilon:        0.2,
		Backend:        "ncc",
		Workers:        10,
		TaskTimeout:    2 * time.Second,
		Source:         "screen",
		Sink:           "window",
		OutputDir:      "frames",
		Thickness:      2,
		Interval:       50 * time.Millisecond,
		PreviewMaxW:    960,
		PreviewMaxH:    540,
	}
}

// DefaultHSVFilter returns a pass-through filter (full ranges, no shifting).
func DefaultHSVFilter() *HSVFilter {
	return &HSVFilter{HMax: 179, SMax: 255, VMax: 255}
}

func (f *HSVFilter) UnmarshalYAML(value *yaml.Node) error {
	type plain HSVFilter
	p := plain(*DefaultHSVFilter())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*f = HSVFilter(p)
	return nil
}

func (f *HSVFilter) UnmarshalJSON(data []byte) error {
	type plain HSVFilter
	p := plain(*DefaultHSVFilter())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = HSVFilter(p)
	return nil
}

// jsonDuration encodes as a time.Duration string and decodes either a string
// or integer nanoseconds.
type jsonDuration time.Duration

func (d jsonDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = jsonDuration(parsed)
	case float64:
		*d = jsonDuration(v)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

type plainConfig Config

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		plainConfig
		TaskTimeout jsonDuration `json:"task_timeout"`
		Interval    jsonDuration `json:"interval"`
	}{plainConfig(c), jsonDuration(c.TaskTimeout), jsonDuration(c.Interval)})
}

func (c *Config) UnmarshalJSON(data []byte) error {
	aux := struct {
		*plainConfig
		TaskTimeout jsonDuration `json:"task_timeout"`
		Interval    jsonDuration `json:"interval"`
	}{(*plainConfig)(c), jsonDuration(c.TaskTimeout), jsonDuration(c.Interval)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.TaskTimeout, c.Interval = time.Duration(aux.TaskTimeout), time.Duration(aux.Interval)
	return nil
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = 0.6
	}
	for name, th := range c.Thresholds {
		if th <= 0 || th > 1 {
			delete(c.Thresholds, name)
		}
	}
	if c.GroupThreshold < 0 {
		c.GroupThreshold = 1
	}
	if c.Epsilon < 0 {
		c.Epsilon = 0.2
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.TaskTimeout < 0 {
		c.TaskTimeout = 0
	}
	if c.RegionW < 0 || c.RegionH < 0 {
		c.RegionW, c.RegionH = 0, 0
	}
	if c.Thickness <= 0 {
		c.Thickness = 2
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	if c.MaxFrames < 0 {
		c.MaxFrames = 0
	}
	if c.PreviewMaxW < 50 {
		c.PreviewMaxW = 50
	}
	if c.PreviewMaxH < 50 {
		c.PreviewMaxH = 50
	}
	switch c.Backend {
	case "ncc", "opencv":
	default:
		c.Backend = "ncc"
	}
	switch c.Source {
	case "screen", "window", "file":
	default:
		c.Source = "screen"
	}
	switch c.Sink {
	case "window", "files", "opencv":
	default:
		c.Sink = "window"
	}
	if f := c.Filter; f != nil {
		f.HMin, f.HMax = clamp(f.HMin, 0, 179), clamp(f.HMax, 0, 179)
		f.SMin, f.SMax = clamp(f.SMin, 0, 255), clamp(f.SMax, 0, 255)
		f.VMin, f.VMax = clamp(f.VMin, 0, 255), clamp(f.VMax, 0, 255)
		f.SAdd, f.SSub = clamp(f.SAdd, 0, 255), clamp(f.SSub, 0, 255)
		f.VAdd, f.VSub = clamp(f.VAdd, 0, 255), clamp(f.VSub, 0, 255)
	}
	return nil
}

// ThresholdFor returns the match threshold for images of the named template.
func (c *Config) ThresholdFor(template string) float64 {
	if th, ok := c.Thresholds[template]; ok {
		return th
	}
	return c.Threshold
}

// Load attempts to read configuration from the given file path. If the file does not
// exist it returns DefaultConfig(). On decode error it returns defaults with the error.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	if isYAML(path) {
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return DefaultConfig(), err
		}
	} else {
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return DefaultConfig(), err
		}
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path, using YAML or JSON by extension.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
