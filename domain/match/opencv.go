//go:build gocv

package match

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/soocke/templateplay-go/domain/catalog"
)

func init() {
	Register("opencv", func(grayscale bool) (Correlator, error) { return NewOpenCV(grayscale), nil })
}

// OpenCV correlates with cv::matchTemplate (TM_CCOEFF_NORMED).
type OpenCV struct {
	Grayscale bool

	mats sync.Map // *catalog.TemplateImage -> gocv.Mat
}

func NewOpenCV(grayscale bool) *OpenCV { return &OpenCV{Grayscale: grayscale} }

func (o *OpenCV) toMat(img image.Image) (gocv.Mat, error) {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	if !o.Grayscale {
		return m, nil
	}
	gray := gocv.NewMat()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	m.Close()
	return gray, nil
}

func (o *OpenCV) Prepare(frame *image.RGBA) (Surface, error) {
	if frame == nil {
		return nil, ErrNilFrame
	}
	m, err := o.toMat(frame)
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	return &cvSurface{owner: o, frame: m, bounds: frame.Bounds()}, nil
}

func (o *OpenCV) template(img *catalog.TemplateImage) (gocv.Mat, error) {
	if v, ok := o.mats.Load(img); ok {
		return v.(gocv.Mat), nil
	}
	m, err := o.toMat(img.Image())
	if err != nil {
		return m, err
	}
	actual, loaded := o.mats.LoadOrStore(img, m)
	if loaded {
		m.Close()
	}
	return actual.(gocv.Mat), nil
}

// Close releases cached template mats.
func (o *OpenCV) Close() {
	o.mats.Range(func(k, v any) bool {
		m := v.(gocv.Mat)
		m.Close()
		o.mats.Delete(k)
		return true
	})
}

type cvSurface struct {
	owner  *OpenCV
	frame  gocv.Mat
	bounds image.Rectangle
}

func (s *cvSurface) Bounds() image.Rectangle { return s.bounds }

func (s *cvSurface) Close() { s.frame.Close() }

func (s *cvSurface) Candidates(ctx context.Context, img *catalog.TemplateImage) ([]image.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Width() > s.bounds.Dx() || img.Height() > s.bounds.Dy() {
		return nil, nil
	}
	tmpl, err := s.owner.template(img)
	if err != nil {
		return nil, fmt.Errorf("template to mat: %w", err)
	}
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(s.frame, tmpl, &result, gocv.TmCcoeffNormed, mask)

	th := float32(img.Threshold)
	var out []image.Point
	for y := 0; y < result.Rows(); y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < result.Cols(); x++ {
			if result.GetFloatAt(y, x) >= th {
				out = append(out, image.Pt(x, y).Add(s.bounds.Min))
			}
		}
	}
	return out, nil
}
