package pngread

import (
	"image"
	"image/color"
	"io"
)

// Row filter types.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
)

// interlacePass is one of the seven Adam7 passes.
type interlacePass struct {
	xOff, yOff, xStep, yStep int
}

var adam7 = [7]interlacePass{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

type pixelDecoder struct {
	info    *Info
	palette []color.NRGBA
	trns    []uint16
}

// decode reads filtered scanlines from r into img. It returns the first
// read or filter error; rows written before the error are kept.
func (p *pixelDecoder) decode(img *image.NRGBA, r io.Reader) error {
	if !p.info.Interlaced {
		return p.decodePass(img, r, interlacePass{0, 0, 1, 1})
	}
	for _, pass := range adam7 {
		if err := p.decodePass(img, r, pass); err != nil {
			return err
		}
	}
	return nil
}

func (p *pixelDecoder) decodePass(img *image.NRGBA, r io.Reader, pass interlacePass) error {
	w := (p.info.Width - pass.xOff + pass.xStep - 1) / pass.xStep
	h := (p.info.Height - pass.yOff + pass.yStep - 1) / pass.yStep
	if w <= 0 || h <= 0 {
		return nil
	}

	channels := p.info.ColorType.channels()
	bitsPerPixel := p.info.BitDepth * channels
	bpp := (bitsPerPixel + 7) / 8
	rowBytes := 1 + (w*bitsPerPixel+7)/8

	cur := make([]byte, rowBytes)
	prev := make([]byte, rowBytes)

	for row := 0; row < h; row++ {
		if _, err := io.ReadFull(r, cur); err != nil {
			return err
		}
		if err := unfilter(cur, prev, bpp); err != nil {
			return err
		}

		y := pass.yOff + row*pass.yStep
		samples := cur[1:]
		for col := 0; col < w; col++ {
			x := pass.xOff + col*pass.xStep
			c := p.pixel(samples, col, channels)
			off := img.PixOffset(x, y)
			img.Pix[off+0] = c.R
			img.Pix[off+1] = c.G
			img.Pix[off+2] = c.B
			img.Pix[off+3] = c.A
		}
		prev, cur = cur, prev
	}
	return nil
}

// pixel converts the col-th pixel of an unfiltered scanline to 8-bit NRGBA.
func (p *pixelDecoder) pixel(row []byte, col, channels int) color.NRGBA {
	depth := p.info.BitDepth
	base := col * channels

	switch p.info.ColorType {
	case ColorGray:
		v := sample(row, base, depth)
		g := scale8(v, depth)
		a := uint8(0xff)
		if p.trns != nil && v == p.trns[0] {
			a = 0
		}
		return color.NRGBA{R: g, G: g, B: g, A: a}

	case ColorRGB:
		r := sample(row, base, depth)
		g := sample(row, base+1, depth)
		b := sample(row, base+2, depth)
		a := uint8(0xff)
		if p.trns != nil && r == p.trns[0] && g == p.trns[1] && b == p.trns[2] {
			a = 0
		}
		return color.NRGBA{R: scale8(r, depth), G: scale8(g, depth), B: scale8(b, depth), A: a}

	case ColorPalette:
		idx := int(sample(row, base, depth))
		if idx < len(p.palette) {
			return p.palette[idx]
		}
		// Out-of-range indices decode as opaque black, as libpng does.
		return color.NRGBA{A: 0xff}

	case ColorGrayAlpha:
		g := scale8(sample(row, base, depth), depth)
		return color.NRGBA{R: g, G: g, B: g, A: scale8(sample(row, base+1, depth), depth)}

	case ColorRGBA:
		return color.NRGBA{
			R: scale8(sample(row, base, depth), depth),
			G: scale8(sample(row, base+1, depth), depth),
			B: scale8(sample(row, base+2, depth), depth),
			A: scale8(sample(row, base+3, depth), depth),
		}
	}
	return color.NRGBA{}
}

// sample returns the i-th sample of a scanline at its native bit depth.
func sample(row []byte, i, depth int) uint16 {
	switch depth {
	case 8:
		return uint16(row[i])
	case 16:
		return uint16(row[2*i])<<8 | uint16(row[2*i+1])
	}
	bit := i * depth
	shift := 8 - depth - bit%8
	return uint16(row[bit/8]>>uint(shift)) & (1<<uint(depth) - 1)
}

// scale8 maps a sample of the given depth onto 0..255.
func scale8(v uint16, depth int) uint8 {
	switch depth {
	case 16:
		return uint8(v >> 8)
	case 8:
		return uint8(v)
	}
	return uint8(uint32(v) * 0xff / (1<<uint(depth) - 1))
}

// unfilter reverses the row filter in place. cur and prev include the
// leading filter-type byte; prev is all zero for the first row of a pass.
func unfilter(cur, prev []byte, bpp int) error {
	cdat := cur[1:]
	pdat := prev[1:]

	switch cur[0] {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += cdat[i-bpp]
		}
	case ftUp:
		for i, v := range pdat {
			cdat[i] += v
		}
	case ftAverage:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bpp]) + int(pdat[i])) / 2)
		}
	case ftPaeth:
		for i := range cdat {
			var a, c uint8
			if i >= bpp {
				a = cdat[i-bpp]
				c = pdat[i-bpp]
			}
			cdat[i] += paeth(a, pdat[i], c)
		}
	default:
		return FormatError("bad filter type")
	}
	return nil
}

func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = abs(pa + pb)
	pa = abs(pa)
	pb = abs(pb)
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
