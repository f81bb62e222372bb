package quantize

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Quantizer builds octree palettes for image/gif and x/image/draw users.
type Quantizer struct {
	Options
}

var _ draw.Quantizer = Quantizer{}

// Quantize appends up to MaxColors-len(p) octree colors for m to p. Options
// that are out of range leave p untouched.
func (q Quantizer) Quantize(p color.Palette, m image.Image) color.Palette {
	opts := q.Options
	if opts.MaxColors == 0 {
		opts.MaxColors = cap(p)
	}
	opts.MaxColors = min(opts.MaxColors, MaxColors) - len(p)
	if opts.MaxColors < 1 {
		return p
	}

	tree, err := BuildPalette(ImagePixels(m), opts)
	if err != nil {
		opts.logger().Error("could not build palette", "error", err)
		return p
	}

	for _, c := range tree.Finalize() {
		p = append(p, c)
	}
	return p
}
