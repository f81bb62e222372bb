// Package quantize reduces true color pixels to a palette of at most 256
// colors. The palette is built with an octree and pixels are mapped either
// straight through the tree or through the error diffuser.
package quantize

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"picquant/dither"
	"picquant/octree"
	"picquant/palette"
)

// MaxColors is the largest palette that fits byte sized indices.
const MaxColors = 256

var (
	ErrInvalidMaxColors = errors.New("quantize: max colors out of range")
	ErrDimensions       = errors.New("quantize: invalid dimensions")
)

type Options struct {
	MaxColors int
	Dither    bool
	// Kernel defaults to dither.DefaultKernel.
	Kernel dither.Kernel
	Logger *slog.Logger
}

func (o Options) validate() error {
	if o.MaxColors < 1 || o.MaxColors > MaxColors {
		return fmt.Errorf("%w: %d", ErrInvalidMaxColors, o.MaxColors)
	}
	if o.Dither {
		if err := o.Kernel.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o Options) kernel() dither.Kernel {
	if o.Kernel == (dither.Kernel{}) {
		return dither.DefaultKernel
	}
	return o.Kernel
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Result is a quantized raster: one palette index per pixel in row-major
// order.
type Result struct {
	Palette palette.Palette
	Indices []uint8
	Width   int
	Height  int
}

// At returns the palette color of the pixel at (x, y), relative to the
// origin.
func (r *Result) At(x, y int) palette.Color {
	return r.Palette[r.Indices[y*r.Width+x]]
}

// Paletted copies the result into a paletted image with origin at (0, 0).
func (r *Result) Paletted() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, r.Width, r.Height), r.Palette.ColorPalette())
	copy(img.Pix, r.Indices)
	return img
}

// BuildPalette runs the octree over pixels and returns the finalized tree.
func BuildPalette(pixels []palette.Color, opts Options) (*octree.Tree, error) {
	if opts.MaxColors < 1 || opts.MaxColors > MaxColors {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxColors, opts.MaxColors)
	}

	tree, err := octree.New(opts.MaxColors)
	if err != nil {
		return nil, err
	}
	tree.SetLogger(opts.logger())

	for _, c := range pixels {
		tree.Insert(c)
	}
	tree.Finalize()

	return tree, nil
}

// Pixels quantizes a width x height raster given in row-major order.
func Pixels(pixels []palette.Color, width, height int, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if width < 0 || height < 0 || width*height != len(pixels) {
		return nil, fmt.Errorf("%w: %dx%d for %d pixels", ErrDimensions, width, height, len(pixels))
	}

	logger := opts.logger()
	tree, err := BuildPalette(pixels, opts)
	if err != nil {
		return nil, err
	}
	pal := tree.Finalize()
	logger.Debug("built palette", "colors", len(pal), "tree", tree)

	res := &Result{
		Palette: pal,
		Width:   width,
		Height:  height,
	}

	if opts.Dither && len(pixels) > 0 {
		res.Indices, err = dither.Diffuse(pixels, width, height, pal, tree, opts.kernel())
		if err != nil {
			return nil, fmt.Errorf("could not dither: %w", err)
		}
		return res, nil
	}

	res.Indices = make([]uint8, len(pixels))
	for i, c := range pixels {
		res.Indices[i] = uint8(tree.Lookup(c))
	}
	return res, nil
}

// Image quantizes img into a paletted image with the same bounds.
func Image(img image.Image, opts Options) (*image.Paletted, error) {
	b := img.Bounds()
	res, err := Pixels(ImagePixels(img), b.Dx(), b.Dy(), opts)
	if err != nil {
		return nil, err
	}

	pi := res.Paletted()
	pi.Rect = b
	return pi, nil
}

// ImagePixels returns the pixels of img in row-major order.
func ImagePixels(img image.Image) []palette.Color {
	b := img.Bounds()
	pixels := make([]palette.Color, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pixels = append(pixels, palette.FromColor(img.At(x, y)))
		}
	}
	return pixels
}
