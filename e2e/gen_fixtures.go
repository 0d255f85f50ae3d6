//go:build ignore

// gen_fixtures creates damaged and healthy PNGs for the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	os.MkdirAll(filepath.Join(dir, "cards"), 0o755)

	// Healthy banner (RGB, 400x225)
	banner := encode(gradient(400, 225), png.DefaultCompression)
	write(filepath.Join(dir, "banner.png"), banner)

	// Cards (200x150 each), the second one truncated mid-stream
	for i := 1; i <= 3; i++ {
		data := encode(solidWithBorder(200, 150, uint8(i*60)), png.NoCompression)
		if i == 2 {
			data = data[:len(data)*2/3]
		}
		write(filepath.Join(dir, "cards", fmt.Sprintf("card-%d.png", i)), data)
	}

	// Alpha logo with a broken IEND checksum
	logo := encode(alphaGradient(100, 100), png.DefaultCompression)
	logo[len(logo)-1] ^= 0xff
	write(filepath.Join(dir, "logo.png"), logo)

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 5 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func encode(img image.Image, level png.CompressionLevel) []byte {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		panic(err)
	}
}
