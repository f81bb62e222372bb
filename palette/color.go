// Package palette holds the 8-bit RGB color type shared by the quantizer
// packages, the finalized Palette they produce, and RIFF PAL file support.
package palette

import (
	"image/color"
	"math"
)

// Color is an opaque 8-bit per channel RGB triple.
type Color struct {
	R, G, B uint8
}

var _ color.Color = Color{}

func (c Color) RGBA() (uint32, uint32, uint32, uint32) {
	r := uint32(c.R)
	g := uint32(c.G)
	b := uint32(c.B)
	return r | r<<8, g | g<<8, b | b<<8, 0xffff
}

// Model converts any color to Color, dropping alpha after un-premultiplying.
var Model = color.ModelFunc(convert)

func convert(c color.Color) color.Color {
	return FromColor(c)
}

// FromColor converts c to Color.
func FromColor(c color.Color) Color {
	if col, ok := c.(Color); ok {
		return col
	}

	r, g, b, a := c.RGBA()
	switch a {
	case 0xffff:
		return Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
	case 0:
		return Color{}
	}

	return Color{
		R: uint8(r * 0xff / a),
		G: uint8(g * 0xff / a),
		B: uint8(b * 0xff / a),
	}
}

// Distance returns the squared euclidean distance between two colors.
func Distance(a, b Color) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// Palette is an ordered list of representative colors. Once produced it is
// never modified.
type Palette []Color

// Index returns the index of the palette entry closest to c. The lowest index
// wins ties. It returns -1 for an empty palette.
func (p Palette) Index(c Color) int {
	ret, best := -1, math.MaxInt
	for i, v := range p {
		d := Distance(c, v)
		if d < best {
			if d == 0 {
				return i
			}
			ret, best = i, d
		}
	}
	return ret
}

// Convert returns the palette entry closest to c.
func (p Palette) Convert(c color.Color) color.Color {
	if len(p) == 0 {
		return nil
	}
	return p[p.Index(FromColor(c))]
}

// ColorPalette returns p as a standard library palette.
func (p Palette) ColorPalette() color.Palette {
	pal := make(color.Palette, len(p))
	for i, c := range p {
		pal[i] = c
	}
	return pal
}

// From converts a standard library palette.
func From(pal color.Palette) Palette {
	p := make(Palette, len(pal))
	for i, c := range pal {
		p[i] = FromColor(c)
	}
	return p
}
