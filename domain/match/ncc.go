package match

import (
	"context"
	"errors"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/soocke/templateplay-go/domain/catalog"
)

// flatEpsilon mirrors OpenCV's noise floor for window variance (10 * FLT_EPSILON).
const flatEpsilon = 10 * 1.1920929e-07

// NCC computes the normalized correlation coefficient (TM_CCOEFF_NORMED) in
// pure Go. Frames are reduced to summed-area tables once per Prepare so each
// window's mean and variance cost O(1); the cross term is a direct product.
type NCC struct {
	// Grayscale matches on luminance instead of the three color channels.
	Grayscale bool

	stats sync.Map // *catalog.TemplateImage -> *templateStats
}

// NewNCC returns a correlator matching on color or luminance.
func NewNCC(grayscale bool) *NCC { return &NCC{Grayscale: grayscale} }

func (n *NCC) channels() int {
	if n.Grayscale {
		return 1
	}
	return 3
}

// surface holds per-frame samples and their summed-area tables. Samples are
// interleaved per pixel; tables have one zero row and column of padding.
type surface struct {
	owner  *NCC
	w, h   int
	ch     int
	origin image.Point
	pix    []float32
	sum    []float64
	sq     []float64
}

// templateStats caches a template's mean-centered samples and norm.
type templateStats struct {
	w, h, ch int
	centered []float32
	mean     []float64
	// restNorm[r] and restSum[r*ch+c] cover centered rows r.. of the template.
	restNorm []float64
	restSum  []float64
	norm     float64
}

// Prepare computes the frame tables. The returned Surface is safe for
// concurrent use.
func (n *NCC) Prepare(frame *image.RGBA) (Surface, error) {
	if frame == nil {
		return nil, ErrNilFrame
	}
	b := frame.Bounds()
	ch := n.channels()
	s := &surface{owner: n, w: b.Dx(), h: b.Dy(), ch: ch, origin: b.Min}
	s.pix = samples(frame, ch)
	stride := (s.w + 1) * ch
	s.sum = make([]float64, stride*(s.h+1))
	s.sq = make([]float64, stride*(s.h+1))
	rowSum := make([]float64, ch)
	rowSq := make([]float64, ch)
	for y := 0; y < s.h; y++ {
		for c := range rowSum {
			rowSum[c], rowSq[c] = 0, 0
		}
		src := y * s.w * ch
		above := y * stride
		cur := (y + 1) * stride
		for x := 0; x < s.w; x++ {
			for c := 0; c < ch; c++ {
				v := float64(s.pix[src+x*ch+c])
				rowSum[c] += v
				rowSq[c] += v * v
				off := (x+1)*ch + c
				s.sum[cur+off] = s.sum[above+off] + rowSum[c]
				s.sq[cur+off] = s.sq[above+off] + rowSq[c]
			}
		}
	}
	return s, nil
}

func (s *surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.w, s.h).Add(s.origin)
}

func (s *surface) Close() {}

// minBandRows is the fewest window rows handed to one Candidates goroutine.
const minBandRows = 32

// Candidates returns every top-left position scoring at least img.Threshold,
// in row-major order. A template larger than the frame yields no candidates.
// Rows are scanned in bands on up to GOMAXPROCS goroutines.
func (s *surface) Candidates(ctx context.Context, img *catalog.TemplateImage) ([]image.Point, error) {
	if img == nil || img.Image() == nil {
		return nil, errors.New("nil template image")
	}
	st := s.owner.templateStats(img)
	if st.w == 0 || st.h == 0 || st.w > s.w || st.h > s.h {
		return nil, nil
	}
	rows := s.h - st.h + 1
	bands := min(runtime.GOMAXPROCS(0), (rows+minBandRows-1)/minBandRows)
	if bands <= 1 {
		return s.scanRows(ctx, st, img.Threshold, 0, rows)
	}

	parts := make([][]image.Point, bands)
	errs := make([]error, bands)
	panics := make([]any, bands)
	per := (rows + bands - 1) / bands
	var wg sync.WaitGroup
	for b := 0; b < bands; b++ {
		lo, hi := b*per, min((b+1)*per, rows)
		wg.Add(1)
		go func(b, lo, hi int) {
			defer wg.Done()
			defer func() { panics[b] = recover() }()
			parts[b], errs[b] = s.scanRows(ctx, st, img.Threshold, lo, hi)
		}(b, lo, hi)
	}
	wg.Wait()
	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
	var out []image.Point
	for b := range parts {
		if errs[b] != nil {
			return nil, errs[b]
		}
		out = append(out, parts[b]...)
	}
	return out, nil
}

// scanRows collects candidates with top edge in [lo, hi).
func (s *surface) scanRows(ctx context.Context, st *templateStats, threshold float64, lo, hi int) ([]image.Point, error) {
	var out []image.Point
	for y := lo; y < hi; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x <= s.w-st.w; x++ {
			if s.score(st, x, y, threshold) >= threshold {
				out = append(out, image.Pt(x, y).Add(s.origin))
			}
		}
	}
	return out, nil
}

// score is the correlation coefficient of st against the window at (x, y).
// With cutoff > 0 a window whose score provably stays below cutoff is given
// up early and reported as 0.
func (s *surface) score(st *templateStats, x, y int, cutoff float64) float64 {
	ch := s.ch
	n := float64(st.w * st.h)
	stride := (s.w + 1) * ch
	x0, y0, x1, y1 := x*ch, y*stride, (x+st.w)*ch, (y+st.h)*stride
	var wndSq, diff2 float64
	var wndMean [3]float64
	flatMatch := true
	for c := 0; c < ch; c++ {
		sum := s.sum[y1+x1+c] - s.sum[y0+x1+c] - s.sum[y1+x0+c] + s.sum[y0+x0+c]
		sq := s.sq[y1+x1+c] - s.sq[y0+x1+c] - s.sq[y1+x0+c] + s.sq[y0+x0+c]
		wndSq += sq
		diff2 += sq - sum*sum/n
		wndMean[c] = sum / n
		if math.Abs(wndMean[c]-st.mean[c]) > 1e-6 {
			flatMatch = false
		}
	}
	flatWindow := diff2 <= math.Min(0.5, flatEpsilon*wndSq)

	if st.norm == 0 {
		// A constant template only correlates with an identical constant window.
		if flatWindow && flatMatch {
			return 1
		}
		return 0
	}
	if flatWindow {
		return 0
	}

	wndNorm := math.Sqrt(diff2)
	denom := wndNorm * st.norm
	// The rows not yet summed contribute at most
	// sum_c mean_c*restSum_c + restNorm*wndNorm (Cauchy-Schwarz on the
	// mean-centered window), so stop once that cannot lift num to the cutoff.
	prune := cutoff > pruneSlack
	need := (cutoff - pruneSlack) * denom

	var num float64
	rowLen := st.w * ch
	for ty := 0; ty < st.h; ty++ {
		f := s.pix[((y+ty)*s.w+x)*ch:]
		f = f[:rowLen]
		t := st.centered[ty*rowLen : (ty+1)*rowLen]
		var acc float32
		for i, tv := range t {
			acc += tv * f[i]
		}
		num += float64(acc)
		if prune {
			rest := st.restNorm[ty+1] * wndNorm
			for c := 0; c < ch; c++ {
				rest += wndMean[c] * st.restSum[(ty+1)*ch+c]
			}
			if num+rest < need {
				return 0
			}
		}
	}
	switch {
	case math.Abs(num) < denom:
		return num / denom
	case math.Abs(num) < denom*1.125:
		if num > 0 {
			return 1
		}
		return -1
	}
	return 0
}

// pruneSlack absorbs float32 rounding in the early-exit bound.
const pruneSlack = 1e-3

func (n *NCC) templateStats(img *catalog.TemplateImage) *templateStats {
	if v, ok := n.stats.Load(img); ok {
		return v.(*templateStats)
	}
	ch := n.channels()
	src := img.Image()
	st := &templateStats{w: img.Width(), h: img.Height(), ch: ch, mean: make([]float64, ch)}
	st.centered = samples(src, ch)
	st.restNorm = make([]float64, st.h+1)
	st.restSum = make([]float64, (st.h+1)*ch)
	count := float64(st.w * st.h)
	if count > 0 {
		for i, v := range st.centered {
			st.mean[i%ch] += float64(v)
		}
		for c := range st.mean {
			st.mean[c] /= count
		}
		var norm2 float64
		for i, v := range st.centered {
			d := float64(v) - st.mean[i%ch]
			st.centered[i] = float32(d)
			norm2 += d * d
		}
		if norm2 > 1e-9 {
			st.norm = math.Sqrt(norm2)
		}
		rowLen := st.w * ch
		var sq float64
		for ty := st.h - 1; ty >= 0; ty-- {
			for c := 0; c < ch; c++ {
				st.restSum[ty*ch+c] = st.restSum[(ty+1)*ch+c]
			}
			for i, v := range st.centered[ty*rowLen : (ty+1)*rowLen] {
				st.restSum[ty*ch+i%ch] += float64(v)
				sq += float64(v) * float64(v)
			}
			st.restNorm[ty] = math.Sqrt(sq)
		}
	}
	actual, _ := n.stats.LoadOrStore(img, st)
	return actual.(*templateStats)
}

// samples flattens img into interleaved R,G,B (ch == 3) or luminance
// (ch == 1) values. Alpha is ignored.
func samples(img *image.RGBA, ch int) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, w*h*ch)
	i := 0
	for y := 0; y < h; y++ {
		p := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			r, g, bl := img.Pix[p], img.Pix[p+1], img.Pix[p+2]
			if ch == 1 {
				out[i] = float32(0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bl))
			} else {
				out[i], out[i+1], out[i+2] = float32(r), float32(g), float32(bl)
			}
			i += ch
			p += 4
		}
	}
	return out
}
