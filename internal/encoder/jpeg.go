package encoder

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/jpegli"
)

// DefaultQuality is used when a caller passes a quality outside 1-100.
const DefaultQuality = 90

// ParseSubsampling maps "444", "422" or "420" (colons allowed, e.g.
// "4:4:4") to a chroma subsampling ratio.
func ParseSubsampling(s string) (image.YCbCrSubsampleRatio, error) {
	switch strings.ReplaceAll(strings.TrimSpace(s), ":", "") {
	case "444", "0":
		return image.YCbCrSubsampleRatio444, nil
	case "422", "1":
		return image.YCbCrSubsampleRatio422, nil
	case "420", "2":
		return image.YCbCrSubsampleRatio420, nil
	}
	return 0, fmt.Errorf("unsupported chroma subsampling %q (want 444, 422 or 420)", s)
}

// SubsamplingName returns the short name of a ratio ("444", "422", "420").
func SubsamplingName(r image.YCbCrSubsampleRatio) string {
	switch r {
	case image.YCbCrSubsampleRatio444:
		return "444"
	case image.YCbCrSubsampleRatio422:
		return "422"
	case image.YCbCrSubsampleRatio420:
		return "420"
	}
	return r.String()
}

// JPEGEncoder encodes images to JPEG with jpegli. Unlike image/jpeg it
// honours the requested chroma subsampling, so 4:4:4 output is possible.
type JPEGEncoder struct {
	Subsampling image.YCbCrSubsampleRatio
}

func (e *JPEGEncoder) Format() string    { return "jpeg" }
func (e *JPEGEncoder) Extension() string { return "jpg" }
func (e *JPEGEncoder) Available() bool   { return true }

func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	b := img.Bounds()
	buf.Grow(b.Dx() * b.Dy()) // roughly one byte per pixel at q90 4:4:4

	err := jpegli.Encode(&buf, img, &jpegli.EncodingOptions{
		Quality:           quality,
		ChromaSubsampling: e.Subsampling,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
