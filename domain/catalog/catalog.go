// Package catalog holds the named groups of reference images searched for in
// captured frames.
package catalog

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/soocke/templateplay-go/domain/filter"
)

const (
	// DefaultThreshold is the match threshold used when none is configured.
	DefaultThreshold = 0.6
	// HueStep is the hue distance in degrees between colors of successive templates.
	HueStep = 51
)

// TemplateImage is one immutable reference bitmap plus its match threshold.
type TemplateImage struct {
	Path      string
	Threshold float64
	img       *image.RGBA
}

// NewTemplateImage wraps src (copied to an RGBA buffer with origin 0,0).
func NewTemplateImage(path string, src image.Image, threshold float64) *TemplateImage {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &TemplateImage{Path: path, Threshold: threshold, img: toRGBA(src)}
}

// Image returns the pixels. Callers must not modify them.
func (t *TemplateImage) Image() *image.RGBA { return t.img }

// Width is the column count of the image.
func (t *TemplateImage) Width() int { return t.img.Rect.Dx() }

// Height is the row count of the image.
func (t *TemplateImage) Height() int { return t.img.Rect.Dy() }

func (t *TemplateImage) String() string {
	return fmt.Sprintf("%s (%dx%d)", t.Path, t.Width(), t.Height())
}

// Template is a named group of reference images plus its display color.
type Template struct {
	Name   string
	Index  int
	Color  color.RGBA
	Images []*TemplateImage
}

// ColorFor returns the display color of the template loaded at position index.
func ColorFor(index int) color.RGBA {
	return filter.HueColor(float64((index * HueStep) % 360))
}

// Catalog maps template names to templates. It is read-only once built.
type Catalog struct {
	byName map[string]*Template
	order  []string
}

// Builder assembles a Catalog, assigning colors in insertion order.
type Builder struct {
	cat *Catalog
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{cat: &Catalog{byName: map[string]*Template{}}}
}

// Add appends img to the named template, creating the template (and its color)
// on first use.
func (b *Builder) Add(name string, img *TemplateImage) *Template {
	t, ok := b.cat.byName[name]
	if !ok {
		idx := len(b.cat.order)
		t = &Template{Name: name, Index: idx, Color: ColorFor(idx)}
		b.cat.byName[name] = t
		b.cat.order = append(b.cat.order, name)
	}
	if img != nil {
		t.Images = append(t.Images, img)
	}
	return t
}

// Build returns the catalog. The builder must not be used afterwards.
func (b *Builder) Build() *Catalog {
	c := b.cat
	b.cat = nil
	return c
}

// Get returns the named template.
func (c *Catalog) Get(name string) (*Template, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names returns template names in load order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Templates returns templates in load order.
func (c *Catalog) Templates() []*Template {
	out := make([]*Template, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int { return len(c.order) }

// ImageCount returns the number of template images across all templates.
func (c *Catalog) ImageCount() int {
	n := 0
	for _, t := range c.byName {
		n += len(t.Images)
	}
	return n
}

func toRGBA(src image.Image) *image.RGBA {
	if src == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
