package images

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// EncodePNG encodes an image to PNG bytes. Errors are ignored and may return an empty slice.
func EncodePNG(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	_ = enc.Encode(&buf, img)
	return buf.Bytes()
}

// ScaleToFit shrinks src so that it fits within maxW x maxH preserving aspect
// ratio. Sources that already fit are returned unchanged; images are never
// enlarged.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	return imaging.Fit(src, max(maxW, 1), max(maxH, 1), imaging.Box)
}
