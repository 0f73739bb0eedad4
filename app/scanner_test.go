package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soocke/templateplay-go/config"
	"github.com/soocke/templateplay-go/domain/capture"
	"github.com/soocke/templateplay-go/domain/catalog"
	"github.com/soocke/templateplay-go/domain/match"
	"github.com/soocke/templateplay-go/domain/render"
)

// synthFrame creates an RGBA frame of size w x h with a uniform base luminance
// and pastes icon at pos when icon is not nil.
func synthFrame(w, h int, base byte, icon *image.RGBA, pos image.Point) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = base
		img.Pix[i+1] = base
		img.Pix[i+2] = base
		img.Pix[i+3] = 255
	}
	if icon != nil {
		b := icon.Bounds()
		for y := 0; y < b.Dy(); y++ {
			copy(img.Pix[img.PixOffset(pos.X, pos.Y+y):], icon.Pix[icon.PixOffset(0, y):icon.PixOffset(b.Dx(), y)])
		}
	}
	return img
}

// noiseIcon returns a deterministic pseudo-random icon.
func noiseIcon(w, h int) *image.RGBA {
	r := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255
	}
	return img
}

type frameSource struct {
	frame *image.RGBA
	err   error
	calls int
}

func (s *frameSource) CaptureFrame(ctx context.Context) (*image.RGBA, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := image.NewRGBA(s.frame.Rect)
	copy(out.Pix, s.frame.Pix)
	return out, nil
}

// offsetSource places its frames at a fixed screen offset.
type offsetSource struct {
	frameSource
	offset image.Point
}

func (s *offsetSource) ScreenPosition(p image.Point) image.Point { return p.Add(s.offset) }

type recordingSink struct {
	mu     sync.Mutex
	shown  [][]match.Detection
	stopAt int
}

func (s *recordingSink) Show(_ context.Context, _ *image.RGBA, dets []match.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, dets)
	if s.stopAt > 0 && len(s.shown) >= s.stopAt {
		return render.ErrStop
	}
	return nil
}

type countingMatcher struct{ calls int }

func (m *countingMatcher) Find(context.Context, *image.RGBA, *catalog.Catalog) ([]match.Detection, error) {
	m.calls++
	return nil, nil
}

func buttonCatalog(icon *image.RGBA) *catalog.Catalog {
	b := catalog.NewBuilder()
	b.Add("button", catalog.NewTemplateImage("button/idle.png", icon, 0.6))
	return b.Build()
}

func TestScanner_CycleFindsIcon(t *testing.T) {
	icon := noiseIcon(20, 10)
	src := &frameSource{frame: synthFrame(200, 200, 128, icon, image.Pt(50, 50))}
	sink := &recordingSink{}
	finder := match.NewFinder(match.NewNCC(false), match.DefaultOptions(), nil)
	s := NewScanner(src, buttonCatalog(icon), finder, sink, nil, nil)

	n, err := s.Cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if n != 1 || len(sink.shown) != 1 || sink.shown[0][0].Rect() != image.Rect(50, 50, 70, 60) {
		t.Fatalf("unexpected result n=%d shown=%v", n, sink.shown)
	}
	if st := s.Stats(); st.Cycles != 1 || st.Detections != 1 || st.LastDetections != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestScanner_CaptureFailureSkipsMatcher(t *testing.T) {
	src := &frameSource{err: errors.New("display gone")}
	m := &countingMatcher{}
	sink := &recordingSink{}
	s := NewScanner(src, buttonCatalog(noiseIcon(4, 4)), m, sink, nil, nil)

	_, err := s.Cycle(context.Background())
	var ce *capture.CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
	if m.calls != 0 || len(sink.shown) != 0 {
		t.Fatalf("matcher/sink must not run after a capture failure (matcher=%d sink=%d)", m.calls, len(sink.shown))
	}
	if st := s.Stats(); st.CaptureErrors != 1 {
		t.Fatalf("expected one capture error, got %+v", st)
	}
}

func TestScanner_RunStopsOnErrStop(t *testing.T) {
	src := &frameSource{frame: synthFrame(32, 32, 10, nil, image.Point{})}
	sink := &recordingSink{stopAt: 3}
	s := NewScanner(src, buttonCatalog(noiseIcon(4, 4)), &countingMatcher{}, sink, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.shown) != 3 {
		t.Fatalf("expected 3 frames shown, got %d", len(sink.shown))
	}
}

func TestScanner_RunRetriesCaptureErrorsUntilCancelled(t *testing.T) {
	src := &frameSource{err: &capture.CaptureError{Source: "test", Err: errors.New("busy")}}
	s := NewScanner(src, buttonCatalog(noiseIcon(4, 4)), &countingMatcher{}, &recordingSink{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if src.calls < 2 {
		t.Fatalf("expected capture to be retried, got %d calls", src.calls)
	}
}

func TestBuildContainer_FileSource(t *testing.T) {
	dir := t.TempDir()
	icon := noiseIcon(20, 10)
	writePNG(t, filepath.Join(dir, "templates", "button", "idle.png"), icon)
	framePath := filepath.Join(dir, "frame.png")
	writePNG(t, framePath, synthFrame(200, 200, 128, icon, image.Pt(50, 50)))

	cfg := config.DefaultConfig()
	cfg.TemplateDir = filepath.Join(dir, "templates")
	cfg.Source = "file"
	cfg.FramePath = framePath
	c, err := BuildContainer(cfg, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sink := &recordingSink{}
	if n, err := c.NewScanner(sink).Cycle(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected one detection, got n=%d err=%v", n, err)
	}
}

func TestBuildContainer_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TemplateDir = t.TempDir()
	cfg.Backend = "nope"
	if _, err := BuildContainer(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestRegion(t *testing.T) {
	cfg := config.DefaultConfig()
	if !Region(cfg).Empty() {
		t.Fatalf("default region should be empty")
	}
	cfg.RegionX, cfg.RegionY, cfg.RegionW, cfg.RegionH = 10, 20, 30, 40
	if got := Region(cfg); got != image.Rect(10, 20, 40, 60) {
		t.Fatalf("unexpected region %v", got)
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestScanner_LogsDetectionsInScreenCoordinates(t *testing.T) {
	icon := noiseIcon(20, 10)
	src := &offsetSource{frameSource: frameSource{frame: synthFrame(200, 200, 128, icon, image.Pt(50, 50))}, offset: image.Pt(100, 200)}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	finder := match.NewFinder(match.NewNCC(false), match.DefaultOptions(), nil)
	s := NewScanner(src, buttonCatalog(icon), finder, &recordingSink{}, nil, logger)

	if n, err := s.Cycle(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected one detection, got n=%d err=%v", n, err)
	}
	var rec struct {
		Msg      string `json:"msg"`
		Template string `json:"template"`
		X        int    `json:"x"`
		ScreenX  int    `json:"screen_x"`
		ScreenY  int    `json:"screen_y"`
	}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if err := json.Unmarshal(line, &rec); err == nil && rec.Msg == "detection" {
			break
		}
		rec.Msg = ""
	}
	if rec.Msg != "detection" || rec.Template != "button" || rec.X != 50 || rec.ScreenX != 150 || rec.ScreenY != 250 {
		t.Fatalf("missing detection record in log output: %s", buf.String())
	}
}
