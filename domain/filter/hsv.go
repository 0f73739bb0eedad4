// Package filter implements the optional HSV pre-filter applied to frames and
// templates before matching. Values follow the OpenCV 8-bit HSV convention:
// hue 0-179 (degrees/2), saturation and value 0-255.
package filter

import (
	"image"
	"image/color"
	"math"
)

// HSV masks pixels outside [Min, Max] per channel and shifts saturation and
// value before masking. A zero Max on any channel is treated as "full range".
type HSV struct {
	HMin, SMin, VMin int
	HMax, SMax, VMax int
	SAdd, SSub       int
	VAdd, VSub       int
}

// PassThrough returns a filter that leaves every pixel unchanged.
func PassThrough() HSV { return HSV{HMax: 179, SMax: 255, VMax: 255} }

// Apply returns a filtered copy of src with origin (0,0). Masked pixels become
// opaque black.
func (f HSV) Apply(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	hMax, sMax, vMax := f.HMax, f.SMax, f.VMax
	if hMax == 0 {
		hMax = 179
	}
	if sMax == 0 {
		sMax = 255
	}
	if vMax == 0 {
		vMax = 255
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < w; x++ {
			hh, s, v := RGBToHSV(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
			s = shift(s, f.SAdd)
			s = shift(s, -f.SSub)
			v = shift(v, f.VAdd)
			v = shift(v, -f.VSub)
			if int(hh) >= f.HMin && int(hh) <= hMax &&
				int(s) >= f.SMin && int(s) <= sMax &&
				int(v) >= f.VMin && int(v) <= vMax {
				c := HSVToRGB(hh, s, v)
				dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2] = c.R, c.G, c.B
			}
			dst.Pix[di+3] = 0xFF
			si += 4
			di += 4
		}
	}
	return dst
}

// Identity reports whether Apply would only copy the image.
func (f HSV) Identity() bool {
	full := f.HMin == 0 && f.SMin == 0 && f.VMin == 0 &&
		(f.HMax == 0 || f.HMax >= 179) && (f.SMax == 0 || f.SMax >= 255) && (f.VMax == 0 || f.VMax >= 255)
	return full && f.SAdd == 0 && f.SSub == 0 && f.VAdd == 0 && f.VSub == 0
}

// shift adds amount to c, saturating to 255 above and 0 below.
func shift(c uint8, amount int) uint8 {
	switch {
	case amount > 0:
		if int(c) >= 255-amount {
			return 255
		}
		return uint8(int(c) + amount)
	case amount < 0:
		amount = -amount
		if int(c) <= amount {
			return 0
		}
		return uint8(int(c) - amount)
	}
	return c
}

// RGBToHSV converts 8-bit RGB to 8-bit HSV (hue 0-179).
func RGBToHSV(r, g, b uint8) (h, s, v uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	diff := maxC - minC
	var sf, hf float64
	if maxC > 0 {
		sf = diff * 255 / maxC
	}
	if diff > 0 {
		switch maxC {
		case rf:
			hf = 60 * (gf - bf) / diff
		case gf:
			hf = 120 + 60*(bf-rf)/diff
		default:
			hf = 240 + 60*(rf-gf)/diff
		}
		if hf < 0 {
			hf += 360
		}
	}
	hh := math.Round(hf / 2)
	if hh >= 180 {
		hh -= 180
	}
	return uint8(hh), uint8(math.Round(sf)), uint8(maxC)
}

// HSVToRGB converts 8-bit HSV (hue 0-179) back to an opaque RGBA color.
func HSVToRGB(h, s, v uint8) color.RGBA {
	return hsvColor(float64(h)*2, float64(s)/255, float64(v)/255)
}

// HueColor returns the fully saturated, full value color for a hue in degrees.
func HueColor(degrees float64) color.RGBA {
	return hsvColor(math.Mod(degrees, 360), 1, 1)
}

func hsvColor(hdeg, s, v float64) color.RGBA {
	if hdeg < 0 {
		hdeg += 360
	}
	c := v * s
	hp := hdeg / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := v - c
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 0xFF,
	}
}
