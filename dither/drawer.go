package dither

import (
	"image"

	"golang.org/x/image/draw"

	"picquant/palette"
)

// Drawer dithers onto paletted images with the error diffuser. Other
// destination types, empty palettes and invalid kernels are drawn without
// dithering. Only the first 256 colors of a destination palette can be
// addressed by its byte indices, so longer palettes are searched up to there.
type Drawer struct {
	Kernel Kernel
	// Indexer overrides the nearest color search over the destination palette.
	// It must return indices below 256.
	Indexer Indexer
}

var _ draw.Drawer = Drawer{}

// maxColors is the number of palette entries a byte index can address.
const maxColors = 256

func (dr Drawer) Draw(dst draw.Image, r image.Rectangle, src image.Image, sp image.Point) {
	pd, ok := dst.(*image.Paletted)
	if !ok {
		draw.Draw(dst, r, src, sp, draw.Src)
		return
	}

	r = r.Intersect(pd.Bounds())
	sr := r.Add(sp.Sub(r.Min)).Intersect(src.Bounds())
	r = sr.Add(r.Min.Sub(sp))
	if r.Empty() {
		return
	}

	pal := palette.From(pd.Palette)
	if len(pal) > maxColors {
		pal = pal[:maxColors]
	}
	k := dr.Kernel
	if k == (Kernel{}) {
		k = DefaultKernel
	}

	d, err := NewDiffuser(r.Dx(), pal, dr.Indexer, k)
	if err != nil {
		draw.Draw(dst, r, src, sr.Min, draw.Src)
		return
	}

	row := make([]palette.Color, r.Dx())
	idx := make([]uint8, r.Dx())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		sy := y - r.Min.Y + sr.Min.Y
		for x := range row {
			row[x] = palette.FromColor(src.At(sr.Min.X+x, sy))
		}

		d.Row(row, idx, y == r.Max.Y-1)

		off := pd.PixOffset(r.Min.X, y)
		copy(pd.Pix[off:off+len(idx)], idx)
	}
}
