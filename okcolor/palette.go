package okcolor

import (
	"math"

	"picquant/palette"
)

// Palette searches a palette for perceptually nearest colors. Its Index
// method returns indices into the palette it was built from.
type Palette []Lab

// NewPalette converts every color of pal to Lab once.
func NewPalette(pal palette.Palette) Palette {
	p := make(Palette, len(pal))
	for i, c := range pal {
		p[i] = FromColor(c)
	}
	return p
}

// Index returns the index of the palette color closest to c in OKLab, the
// lowest one on ties, or -1 for an empty palette.
func (p Palette) Index(c palette.Color) int {
	return p.IndexLab(FromColor(c))
}

func (p Palette) IndexLab(lc Lab) int {
	ret, bestSum := -1, math.MaxFloat64
	for i, v := range p {
		sum := Distance(lc, v)
		if sum < bestSum {
			if sum == 0 {
				return i
			}
			ret, bestSum = i, sum
		}
	}
	return ret
}
