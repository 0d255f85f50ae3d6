// Package convert turns a single image file into a JPEG: decode (leniently
// for PNG), flatten to RGB, encode, write.
package convert

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/pngrepair/internal/encoder"
	"github.com/AnyUserName/pngrepair/internal/hasher"
	"github.com/AnyUserName/pngrepair/internal/pngread"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Options controls a conversion. The zero value gives quality 90, 4:4:4
// chroma, truncation tolerance on and alpha dropped.
type Options struct {
	Quality     int // 1-100; 0 means encoder.DefaultQuality
	Subsampling image.YCbCrSubsampleRatio
	// Strict disables tolerance of truncated or checksum-damaged PNGs.
	Strict bool
	// Background, when set, is composited under transparent pixels
	// instead of dropping alpha.
	Background *color.NRGBA
	// Encoder overrides the output encoder. Nil means JPEG with
	// Subsampling.
	Encoder encoder.Encoder
}

// OutputEncoder returns the encoder a conversion with o writes with.
func (o Options) OutputEncoder() encoder.Encoder {
	if o.Encoder != nil {
		return o.Encoder
	}
	return &encoder.JPEGEncoder{Subsampling: o.Subsampling}
}

// Decoded is a source image read from disk.
type Decoded struct {
	Image     image.Image
	Format    string
	Size      int64
	Truncated bool
	CRCErrors int
}

// Result describes a finished conversion.
type Result struct {
	Input        string
	Output       string
	Format       string // source format
	OutputFormat string
	Width        int
	Height       int
	HadAlpha     bool
	Truncated    bool
	CRCErrors    int
	InputSize    int64
	OutputSize   int64
	Hash         string // xxhash64 of the encoded bytes, 16 hex chars
}

// OutputPath returns in with its extension replaced by ".jpg". Leading dots
// of the base name are not an extension: ".hidden" becomes ".hidden.jpg".
func OutputPath(in string) string {
	return OutputPathFor(in, (&encoder.JPEGEncoder{}).Extension())
}

// OutputPathFor is OutputPath for an arbitrary extension (without dot).
func OutputPathFor(in, ext string) string {
	base := filepath.Base(in)
	old := filepath.Ext(strings.TrimLeft(base, "."))
	return strings.TrimSuffix(in, old) + "." + ext
}

// Decode reads an image file. PNG input goes through pngread so damaged
// files can still be recovered; other formats use the image registry.
func Decode(path string, strict bool) (*Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := &Decoded{}
	if st, err := f.Stat(); err == nil {
		d.Size = st.Size()
	}

	br := bufio.NewReader(f)
	head, _ := br.Peek(8)
	if pngread.IsPNG(head) {
		img, info, err := pngread.Decoder{AllowTruncated: !strict}.Decode(br)
		if err != nil {
			return nil, err
		}
		d.Image = img
		d.Format = "png"
		d.Truncated = info.Truncated
		d.CRCErrors = info.CRCErrors
		return d, nil
	}

	img, format, err := image.Decode(br)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%s: unsupported image format", path)
		}
		return nil, err
	}
	d.Image = img
	d.Format = format
	return d, nil
}

// File converts in to a JPEG (or opts.Encoder's format) at out. An empty
// out means in with the encoder's extension. Errors are *StageError.
func File(in, out string, opts Options) (*Result, error) {
	enc := opts.OutputEncoder()
	if out == "" {
		out = OutputPathFor(in, enc.Extension())
	}
	if !enc.Available() {
		return nil, &StageError{Stage: StageEncode, Path: in, Err: fmt.Errorf("%s encoder not available", enc.Format())}
	}

	src, err := Decode(in, opts.Strict)
	if err != nil {
		return nil, &StageError{Stage: StageDecode, Path: in, Err: err}
	}

	b := src.Image.Bounds()
	if b.Empty() {
		return nil, &StageError{Stage: StageConvert, Path: in, Err: fmt.Errorf("%s: empty image", in)}
	}
	hadAlpha := HasAlpha(src.Image)
	rgb := ToRGB(src.Image, opts.Background)

	data, err := enc.Encode(rgb, opts.Quality)
	if err != nil {
		return nil, &StageError{Stage: StageEncode, Path: in, Err: fmt.Errorf("%s: %w", in, err)}
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, &StageError{Stage: StageWrite, Path: out, Err: err}
	}

	return &Result{
		Input:        in,
		Output:       out,
		Format:       src.Format,
		OutputFormat: enc.Format(),
		Width:        b.Dx(),
		Height:       b.Dy(),
		HadAlpha:     hadAlpha,
		Truncated:    src.Truncated,
		CRCErrors:    src.CRCErrors,
		InputSize:    src.Size,
		OutputSize:   int64(len(data)),
		Hash:         hasher.ContentHash(data, 16),
	}, nil
}
