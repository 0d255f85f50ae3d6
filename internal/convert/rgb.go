package convert

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ToRGB returns an opaque copy of img anchored at the origin. With a nil
// background the alpha channel is simply dropped and the straight color
// values are kept; otherwise img is composited over the background first.
func ToRGB(img image.Image, background *color.NRGBA) *image.RGBA {
	src := imaging.Clone(img)
	if background != nil {
		b := src.Bounds()
		canvas := imaging.New(b.Dx(), b.Dy(), *background)
		src = imaging.Overlay(canvas, src, image.Pt(0, 0), 1.0)
	}

	dst := image.NewRGBA(src.Rect)
	for i := 0; i+3 < len(src.Pix); i += 4 {
		dst.Pix[i+0] = src.Pix[i+0]
		dst.Pix[i+1] = src.Pix[i+1]
		dst.Pix[i+2] = src.Pix[i+2]
		dst.Pix[i+3] = 0xff
	}
	return dst
}

// HasAlpha reports whether img has any non-opaque pixel.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// ParseColor parses "#rgb", "#rrggbb" or the same without '#'.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want #rgb or #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
