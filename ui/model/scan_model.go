package model

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/soocke/templateplay-go/domain/match"
)

// ScanModel summarises the frames shown in the preview. It is decoupled from
// the UI; the viewer feeds it frames and polls Status(). The zero value is
// ready to use. It is not safe for concurrent use.
type ScanModel struct {
	frames   uint64
	last     time.Time
	interval time.Duration // smoothed time between frames
	counts   []templateCount
	focus    image.Rectangle
}

type templateCount struct {
	name string
	n    int
}

// NewScanModel returns a pointer to a ready-to-use ScanModel.
func NewScanModel() *ScanModel { return &ScanModel{} }

// OnFrame records the detections of a frame shown at now.
func (m *ScanModel) OnFrame(dets []match.Detection, now time.Time) {
	if m == nil {
		return
	}
	if !m.last.IsZero() {
		d := now.Sub(m.last)
		if m.interval == 0 {
			m.interval = d
		} else {
			m.interval = (m.interval*7 + d) / 8
		}
	}
	m.last = now
	m.frames++

	m.counts = m.counts[:0]
	m.focus = image.Rectangle{}
	for _, d := range dets {
		if m.focus.Empty() {
			m.focus = d.Rect()
		}
		found := false
		for i := range m.counts {
			if m.counts[i].name == d.Template {
				m.counts[i].n++
				found = true
				break
			}
		}
		if !found {
			m.counts = append(m.counts, templateCount{name: d.Template, n: 1})
		}
	}
}

// FPS is the smoothed frame rate.
func (m *ScanModel) FPS() float64 {
	if m == nil || m.interval <= 0 {
		return 0
	}
	return float64(time.Second) / float64(m.interval)
}

// Focus is the box of the first detection of the last frame, if any.
func (m *ScanModel) Focus() (image.Rectangle, bool) {
	if m == nil {
		return image.Rectangle{}, false
	}
	return m.focus, !m.focus.Empty()
}

// Status renders a one-line summary such as "frame 12 | button x2, enemy x1 | 9.8 fps".
func (m *ScanModel) Status() string {
	if m == nil || m.frames == 0 {
		return "waiting for frames"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "frame %d | ", m.frames)
	if len(m.counts) == 0 {
		b.WriteString("no detections")
	}
	for i, c := range m.counts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s x%d", c.name, c.n)
	}
	if fps := m.FPS(); fps > 0 {
		fmt.Fprintf(&b, " | %.1f fps", fps)
	}
	return b.String()
}
