package reduce

import (
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"picquant/dither"
	"picquant/palette"
)

// applyPalette maps img onto a fixed palette, picking colors with idx.
func applyPalette(logger *slog.Logger, img image.Image, pal palette.Palette, idx dither.Indexer, dith bool, k dither.Kernel) *image.Paletted {
	logger.Info("applying palette", "colors", len(pal), "dither", dith)
	sr := img.Bounds()
	dr := image.Rect(0, 0, sr.Dx(), sr.Dy())
	dest := image.NewPaletted(dr, pal.ColorPalette())

	_, rgb := idx.(palette.Palette)
	switch {
	case dith:
		dither.Drawer{Kernel: k, Indexer: idx}.Draw(dest, dr, img, sr.Min)
	case rgb:
		draw.Draw(dest, dr, img, sr.Min, draw.Src)
	default:
		for y := range dr.Dy() {
			for x := range dr.Dx() {
				c := palette.FromColor(img.At(sr.Min.X+x, sr.Min.Y+y))
				dest.SetColorIndex(x, y, uint8(idx.Index(c)))
			}
		}
	}
	return dest
}
