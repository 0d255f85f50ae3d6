// Package pngread decodes PNG files. Unlike image/png it can be told to
// accept damaged input: truncated streams, short chunks and checksum
// mismatches are tolerated, and whatever pixel rows could be recovered are
// returned. Rows that were never reached stay zero.
package pngread

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"io"
)

const signature = "\x89PNG\r\n\x1a\n"

// maxPixels caps width*height so a forged header cannot force a huge
// allocation (1<<28 pixels is 1 GiB of NRGBA).
const maxPixels = 1 << 28

// ColorType is the IHDR color type field.
type ColorType uint8

const (
	ColorGray      ColorType = 0
	ColorRGB       ColorType = 2
	ColorPalette   ColorType = 3
	ColorGrayAlpha ColorType = 4
	ColorRGBA      ColorType = 6
)

func (c ColorType) String() string {
	switch c {
	case ColorGray:
		return "gray"
	case ColorRGB:
		return "rgb"
	case ColorPalette:
		return "palette"
	case ColorGrayAlpha:
		return "gray+alpha"
	case ColorRGBA:
		return "rgba"
	}
	return fmt.Sprintf("colortype(%d)", uint8(c))
}

// channels returns the number of samples per pixel.
func (c ColorType) channels() int {
	switch c {
	case ColorRGB:
		return 3
	case ColorGrayAlpha:
		return 2
	case ColorRGBA:
		return 4
	}
	return 1
}

// Info describes a decoded PNG and how complete the decode was.
type Info struct {
	Width      int
	Height     int
	BitDepth   int
	ColorType  ColorType
	Interlaced bool
	// Transparency is set when a tRNS chunk was present.
	Transparency bool
	// Truncated is set when the file ended early or the pixel stream could
	// not be read to the end. Only possible with AllowTruncated.
	Truncated bool
	// CRCErrors counts chunks whose checksum did not match.
	CRCErrors int
}

var (
	// ErrNotPNG is returned when the input does not start with the PNG signature.
	ErrNotPNG = errors.New("pngread: not a PNG file")
	// ErrTruncated is returned in strict mode when the input ends early.
	ErrTruncated = errors.New("pngread: truncated PNG stream")
)

// FormatError reports malformed PNG structure.
type FormatError string

func (e FormatError) Error() string { return "pngread: invalid format: " + string(e) }

// IsPNG reports whether b starts with the PNG signature.
func IsPNG(b []byte) bool {
	return len(b) >= len(signature) && string(b[:len(signature)]) == signature
}

// Decoder decodes PNG images. The zero value is strict.
type Decoder struct {
	// AllowTruncated accepts truncated streams, short chunks and checksum
	// mismatches instead of failing.
	AllowTruncated bool
}

// Decode reads a PNG from r. The returned image always has the full
// dimensions from the header; in lenient mode parts of it may be empty.
func (d Decoder) Decode(r io.Reader) (*image.NRGBA, Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Info{}, err
	}
	return d.DecodeBytes(data)
}

// DecodeBytes decodes a PNG held in memory.
func (d Decoder) DecodeBytes(data []byte) (*image.NRGBA, Info, error) {
	var info Info
	if !IsPNG(data) {
		return nil, info, ErrNotPNG
	}

	var (
		haveHeader bool
		palette    []color.NRGBA
		trns       []byte
		idat       bytes.Buffer
	)

	off := len(signature)
	for {
		c, next, err := readChunk(data, off)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Ran out of input without an IEND.
			if !d.AllowTruncated {
				return nil, info, ErrTruncated
			}
			info.Truncated = true
			break
		}
		if err != nil {
			return nil, info, err
		}
		off = next

		if c.short {
			if !d.AllowTruncated {
				return nil, info, ErrTruncated
			}
			info.Truncated = true
		} else if !c.crcOK {
			info.CRCErrors++
			if !d.AllowTruncated {
				return nil, info, FormatError("invalid checksum in " + c.typ + " chunk")
			}
		}

		if !haveHeader && c.typ != "IHDR" {
			return nil, info, FormatError("first chunk is " + c.typ + ", want IHDR")
		}

		switch c.typ {
		case "IHDR":
			if haveHeader {
				return nil, info, FormatError("duplicate IHDR")
			}
			if c.short {
				return nil, info, FormatError("incomplete IHDR")
			}
			if err := parseIHDR(c.data, &info); err != nil {
				return nil, info, err
			}
			haveHeader = true
		case "PLTE":
			p, err := parsePLTE(c.data, d.AllowTruncated)
			if err != nil {
				return nil, info, err
			}
			palette = p
		case "tRNS":
			trns = append([]byte(nil), c.data...)
			info.Transparency = true
		case "IDAT":
			idat.Write(c.data)
		}

		if c.short || c.typ == "IEND" {
			break
		}
	}

	if !haveHeader {
		return nil, info, FormatError("missing IHDR")
	}
	if info.ColorType == ColorPalette && len(palette) == 0 {
		return nil, info, FormatError("missing PLTE")
	}
	applyTRNS(palette, trns)

	img := image.NewNRGBA(image.Rect(0, 0, info.Width, info.Height))
	px := &pixelDecoder{
		info:    &info,
		palette: palette,
		trns:    trnsKey(info, trns),
	}

	z, err := zlib.NewReader(bytes.NewReader(idat.Bytes()))
	if err != nil {
		if !d.AllowTruncated {
			return nil, info, fmt.Errorf("pngread: pixel stream: %w", err)
		}
		info.Truncated = true
		return img, info, nil
	}
	defer z.Close()

	if err := px.decode(img, z); err != nil {
		if !d.AllowTruncated {
			return nil, info, fmt.Errorf("pngread: pixel stream: %w", err)
		}
		info.Truncated = true
		return img, info, nil
	}

	if !d.AllowTruncated {
		// Drain to the end so the adler32 trailer is verified.
		if _, err := io.Copy(io.Discard, z); err != nil {
			return nil, info, fmt.Errorf("pngread: pixel stream: %w", err)
		}
	}
	return img, info, nil
}

type chunk struct {
	typ   string
	data  []byte
	short bool // input ended before the chunk's declared length and CRC
	crcOK bool
}

// readChunk parses the chunk starting at data[off:] and returns the offset
// of the following chunk. A short chunk consumes the rest of data.
func readChunk(data []byte, off int) (chunk, int, error) {
	rest := data[off:]
	if len(rest) == 0 {
		return chunk{}, off, io.EOF
	}
	if len(rest) < 8 {
		return chunk{}, off, io.ErrUnexpectedEOF
	}
	n := binary.BigEndian.Uint32(rest[:4])
	if n > 0x7fffffff {
		return chunk{}, off, FormatError("chunk length too large")
	}
	c := chunk{typ: string(rest[4:8])}
	body := rest[8:]
	if uint64(len(body)) < uint64(n)+4 {
		if uint64(len(body)) > uint64(n) {
			body = body[:n]
		}
		c.data = body
		c.short = true
		return c, len(data), nil
	}
	c.data = body[:n]
	crc := crc32.NewIEEE()
	crc.Write(rest[4:8])
	crc.Write(c.data)
	c.crcOK = crc.Sum32() == binary.BigEndian.Uint32(body[n:n+4])
	return c, off + 12 + int(n), nil
}

func parseIHDR(b []byte, info *Info) error {
	if len(b) != 13 {
		return FormatError("bad IHDR length")
	}
	w := binary.BigEndian.Uint32(b[0:4])
	h := binary.BigEndian.Uint32(b[4:8])
	if w == 0 || h == 0 || w > 0x7fffffff || h > 0x7fffffff {
		return FormatError("invalid dimensions")
	}
	if uint64(w)*uint64(h) > maxPixels {
		return FormatError(fmt.Sprintf("dimensions %dx%d too large", w, h))
	}
	if b[10] != 0 {
		return FormatError("unsupported compression method")
	}
	if b[11] != 0 {
		return FormatError("unsupported filter method")
	}
	if b[12] > 1 {
		return FormatError("unsupported interlace method")
	}

	depth := int(b[8])
	ct := ColorType(b[9])
	if !validDepth(ct, depth) {
		return FormatError(fmt.Sprintf("bit depth %d not allowed for %s", depth, ct))
	}

	info.Width = int(w)
	info.Height = int(h)
	info.BitDepth = depth
	info.ColorType = ct
	info.Interlaced = b[12] == 1
	return nil
}

func validDepth(ct ColorType, depth int) bool {
	switch ct {
	case ColorGray:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case ColorPalette:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case ColorRGB, ColorGrayAlpha, ColorRGBA:
		return depth == 8 || depth == 16
	}
	return false
}

// parsePLTE reads palette entries. A short palette is cut to whole entries
// when lenient.
func parsePLTE(b []byte, lenient bool) ([]color.NRGBA, error) {
	if len(b)%3 != 0 {
		if !lenient {
			return nil, FormatError("bad PLTE length")
		}
		b = b[:len(b)-len(b)%3]
	}
	n := len(b) / 3
	if n > 256 {
		if !lenient {
			return nil, FormatError("too many PLTE entries")
		}
		n = 256
	}
	p := make([]color.NRGBA, n)
	for i := range p {
		p[i] = color.NRGBA{R: b[3*i], G: b[3*i+1], B: b[3*i+2], A: 0xff}
	}
	return p, nil
}

// applyTRNS sets palette alpha from a tRNS chunk. Extra tRNS entries are
// ignored.
func applyTRNS(palette []color.NRGBA, trns []byte) {
	for i := 0; i < len(trns) && i < len(palette); i++ {
		palette[i].A = trns[i]
	}
}

// trnsKey returns the transparent sample values for gray or RGB images,
// or nil when there are none.
func trnsKey(info Info, trns []byte) []uint16 {
	var n int
	switch info.ColorType {
	case ColorGray:
		n = 1
	case ColorRGB:
		n = 3
	default:
		return nil
	}
	if len(trns) < 2*n {
		return nil
	}
	key := make([]uint16, n)
	for i := range key {
		key[i] = binary.BigEndian.Uint16(trns[2*i:])
	}
	return key
}
