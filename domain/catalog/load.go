package catalog

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // webp decoder
)

// LoadError reports a template file that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load template %s: %v", e.Path, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// ErrEmptyImage is wrapped by LoadError for images with no pixels.
var ErrEmptyImage = errors.New("empty image")

// LoadOptions tunes Load. The zero value aborts on the first bad file and uses
// DefaultThreshold for every image.
type LoadOptions struct {
	// Threshold returns the match threshold for images of a template. Nil means DefaultThreshold.
	Threshold func(template string) float64
	// SkipInvalid logs and skips undecodable files instead of aborting.
	SkipInvalid bool
	// Preprocess, when set, transforms each decoded image before it is stored.
	Preprocess func(*image.RGBA) *image.RGBA
	Logger     *slog.Logger
}

// Load walks dir recursively. Every directory holding files becomes a Template
// named after its last path segment and each regular file inside it becomes one
// TemplateImage. Hidden files and directories are ignored.
func Load(dir string, opts LoadOptions) (*Catalog, error) {
	b := NewBuilder()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &LoadError{Path: path, Err: err}
		}
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := filepath.Base(filepath.Dir(path))
		threshold := DefaultThreshold
		if opts.Threshold != nil {
			threshold = opts.Threshold(name)
		}
		img, err := LoadImage(path, threshold)
		if err != nil {
			if opts.SkipInvalid {
				if opts.Logger != nil {
					opts.Logger.Warn("template skipped", "path", path, "error", err)
				}
				return nil
			}
			return err
		}
		if opts.Preprocess != nil {
			img = &TemplateImage{Path: img.Path, Threshold: img.Threshold, img: opts.Preprocess(img.img)}
		}
		b.Add(name, img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	cat := b.Build()
	if opts.Logger != nil {
		for _, pair := range FindDuplicates(cat) {
			opts.Logger.Warn("duplicate template images", "first", pair[0], "second", pair[1])
		}
		opts.Logger.Info("templates loaded", "dir", dir, "templates", cat.Len(), "images", cat.ImageCount())
	}
	return cat, nil
}

// LoadImage decodes a single template file.
func LoadImage(path string, threshold float64) (*TemplateImage, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if src.Bounds().Empty() {
		return nil, &LoadError{Path: path, Err: ErrEmptyImage}
	}
	return NewTemplateImage(path, src, threshold), nil
}

// FindDuplicates returns pairs of image paths whose pixels hash identically
// and whose sizes match. Duplicates produce repeated detections of one object.
func FindDuplicates(cat *Catalog) [][2]string {
	type key struct {
		hash uint64
		w, h int
	}
	seen := map[key]string{}
	var out [][2]string
	for _, t := range cat.Templates() {
		for _, img := range t.Images {
			hash, err := goimagehash.DifferenceHash(img.Image())
			if err != nil {
				continue
			}
			k := key{hash: hash.GetHash(), w: img.Width(), h: img.Height()}
			if first, ok := seen[k]; ok {
				out = append(out, [2]string{first, img.Path})
				continue
			}
			seen[k] = img.Path
		}
	}
	return out
}
