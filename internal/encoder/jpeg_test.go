package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	return img
}

func TestJPEGEncoder_Subsampling(t *testing.T) {
	for _, ratio := range []image.YCbCrSubsampleRatio{
		image.YCbCrSubsampleRatio444,
		image.YCbCrSubsampleRatio420,
	} {
		enc := &JPEGEncoder{Subsampling: ratio}
		data, err := enc.Encode(testImage(48, 32), 90)
		if err != nil {
			t.Fatalf("%s: encode: %v", ratio, err)
		}

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: decode: %v", ratio, err)
		}
		ycc, ok := img.(*image.YCbCr)
		if !ok {
			t.Fatalf("%s: decoded %T, want *image.YCbCr", ratio, img)
		}
		if ycc.SubsampleRatio != ratio {
			t.Errorf("subsampling: got %s, want %s", ycc.SubsampleRatio, ratio)
		}
		if ycc.Bounds().Dx() != 48 || ycc.Bounds().Dy() != 32 {
			t.Errorf("size: got %v", ycc.Bounds())
		}
	}
}

func TestJPEGEncoder_QualityFallback(t *testing.T) {
	enc := &JPEGEncoder{}
	for _, q := range []int{0, -5, 101} {
		data, err := enc.Encode(testImage(8, 8), q)
		if err != nil {
			t.Fatalf("quality %d: %v", q, err)
		}
		if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
			t.Errorf("quality %d: output is not a JPEG stream", q)
		}
	}
}

func TestJPEGEncoder_Interface(t *testing.T) {
	var enc Encoder = &JPEGEncoder{}
	if enc.Format() != "jpeg" || enc.Extension() != "jpg" || !enc.Available() {
		t.Errorf("unexpected encoder metadata: %s/%s/%v", enc.Format(), enc.Extension(), enc.Available())
	}
}

func TestParseSubsampling(t *testing.T) {
	tests := []struct {
		in      string
		want    image.YCbCrSubsampleRatio
		wantErr bool
	}{
		{"444", image.YCbCrSubsampleRatio444, false},
		{"4:4:4", image.YCbCrSubsampleRatio444, false},
		{"0", image.YCbCrSubsampleRatio444, false},
		{"422", image.YCbCrSubsampleRatio422, false},
		{" 420 ", image.YCbCrSubsampleRatio420, false},
		{"2", image.YCbCrSubsampleRatio420, false},
		{"411", 0, true},
		{"", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseSubsampling(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSubsampling(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseSubsampling(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSubsamplingName_RoundTrip(t *testing.T) {
	for _, name := range []string{"444", "422", "420"} {
		r, err := ParseSubsampling(name)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if got := SubsamplingName(r); got != name {
			t.Errorf("SubsamplingName(%s) = %q, want %q", r, got, name)
		}
	}
}
