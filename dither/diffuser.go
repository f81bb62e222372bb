// Package dither maps full color pixels onto a reduced palette while
// diffusing the quantization error to neighboring pixels that have not been
// processed yet.
//
// Errors are carried in fixed point with 5 fractional bits and spread in
// sixteenths according to a Kernel. Propagation never reaches further than
// one row ahead, so only two rows of error state are kept.
package dither

import (
	"errors"
	"fmt"

	"picquant/palette"
)

var (
	ErrEmptyPalette  = errors.New("dither: empty palette")
	ErrInvalidKernel = errors.New("dither: invalid kernel")
	ErrDimensions    = errors.New("dither: invalid dimensions")
)

// Kernel holds the share of the error, in sixteenths, that each neighbor
// receives.
type Kernel struct {
	Right      int32
	BelowLeft  int32
	Below      int32
	BelowRight int32
}

var (
	// DefaultKernel is the weighting used by the bitmap reduction code.
	DefaultKernel = Kernel{Right: 1, BelowLeft: 3, Below: 5, BelowRight: 7}
	// FloydSteinberg is the classic Floyd-Steinberg assignment.
	FloydSteinberg = Kernel{Right: 7, BelowLeft: 3, Below: 5, BelowRight: 1}
)

// Validate reports ErrInvalidKernel for negative weights or weights that
// spread more than the whole error.
func (k Kernel) Validate() error {
	if k.Right < 0 || k.BelowLeft < 0 || k.Below < 0 || k.BelowRight < 0 {
		return fmt.Errorf("%w: negative weight in %+v", ErrInvalidKernel, k)
	}
	if sum := k.Right + k.BelowLeft + k.Below + k.BelowRight; sum > 16 {
		return fmt.Errorf("%w: weights add up to %d/16", ErrInvalidKernel, sum)
	}
	return nil
}

// Indexer finds the palette index to use for a color.
type Indexer interface {
	Index(palette.Color) int
}

// Diffuser quantizes a raster of the given width row by row.
type Diffuser struct {
	width   int
	palette palette.Palette
	indexer Indexer
	kernel  Kernel

	// cur receives error for the row being quantized, next for the row below.
	cur, next []ErrorQuad
	last      bool
}

// NewDiffuser creates a diffuser for rows of width pixels. The indexer must
// return indices into pal.
func NewDiffuser(width int, pal palette.Palette, idx Indexer, k Kernel) (*Diffuser, error) {
	if width < 1 {
		return nil, fmt.Errorf("%w: width %d", ErrDimensions, width)
	}
	if len(pal) == 0 {
		return nil, ErrEmptyPalette
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if idx == nil {
		idx = pal
	}

	return &Diffuser{
		width:   width,
		palette: pal,
		indexer: idx,
		kernel:  k,
		cur:     make([]ErrorQuad, width),
		next:    make([]ErrorQuad, width),
	}, nil
}

// QuantizePixel picks the palette entry for orig once the error acc carried
// into it has been added, and returns that index with the remaining residual.
func (d *Diffuser) QuantizePixel(orig palette.Color, acc ErrorQuad) (int, ErrorQuad) {
	effective := FromColor(orig).Add(acc).Color()
	idx := d.indexer.Index(effective)
	if idx < 0 || idx >= len(d.palette) {
		panic(fmt.Sprintf("dither: index %d outside palette of %d colors", idx, len(d.palette)))
	}

	return idx, FromColor(effective).Sub(d.palette[idx])
}

// PropagateError spreads the residual of the pixel at column x of the
// current row to its unprocessed neighbors. Neighbors outside the raster are
// skipped.
func (d *Diffuser) PropagateError(x int, residual ErrorQuad) {
	if x+1 < d.width {
		d.cur[x+1].AddWeighted(residual, d.kernel.Right)
	}
	if d.last {
		return
	}

	if x > 0 {
		d.next[x-1].AddWeighted(residual, d.kernel.BelowLeft)
	}
	d.next[x].AddWeighted(residual, d.kernel.Below)
	if x+1 < d.width {
		d.next[x+1].AddWeighted(residual, d.kernel.BelowRight)
	}
}

// Row quantizes one row of src into dst, left to right, then moves on to the
// next row. last marks the final row of the raster.
func (d *Diffuser) Row(src []palette.Color, dst []uint8, last bool) {
	if len(src) != d.width || len(dst) != d.width {
		panic(fmt.Sprintf("dither: row of %d/%d pixels for width %d", len(src), len(dst), d.width))
	}

	d.last = last
	for x, c := range src {
		idx, residual := d.QuantizePixel(c, d.cur[x])
		dst[x] = uint8(idx)
		d.PropagateError(x, residual)
	}

	d.cur, d.next = d.next, d.cur
	clear(d.next)
}

// Diffuse quantizes a whole raster stored in row-major order and returns one
// palette index per pixel.
func Diffuse(pixels []palette.Color, width, height int, pal palette.Palette, idx Indexer, k Kernel) ([]uint8, error) {
	if height < 0 || width*height != len(pixels) {
		return nil, fmt.Errorf("%w: %dx%d for %d pixels", ErrDimensions, width, height, len(pixels))
	}
	if len(pal) > maxColors {
		return nil, fmt.Errorf("dither: palette of %d colors does not fit byte indices", len(pal))
	}

	res := make([]uint8, len(pixels))
	if len(pixels) == 0 {
		return res, nil
	}

	d, err := NewDiffuser(width, pal, idx, k)
	if err != nil {
		return nil, err
	}

	for y := range height {
		row := y * width
		d.Row(pixels[row:row+width], res[row:row+width], y == height-1)
	}
	return res, nil
}
