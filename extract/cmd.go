// Package extract implements the command that builds an octree palette from
// an image and saves it as a RIFF PAL file.
package extract

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"picquant/palette"
	"picquant/quantize"
)

type CLICmd struct {
	Image  string `arg:"" help:"Image to build the palette from" type:"existingfile"`
	Output string `help:"Destination PAL file. Defaults to the image name with a .pal extension" short:"o"`
	Colors int    `help:"Maximum number of palette colors (1-256)" default:"256"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	if c.Colors < 1 || c.Colors > quantize.MaxColors {
		return fmt.Errorf("invalid number of colors: %d", c.Colors)
	}
	if c.Output == "" {
		c.Output = strings.TrimSuffix(c.Image, filepath.Ext(c.Image)) + ".pal"
	}
	return nil
}

func (c *CLICmd) Run() error {
	logger := slog.Default().With("file", c.Image)

	imgFile, err := os.Open(c.Image)
	if err != nil {
		return fmt.Errorf("could not open image %q: %w", c.Image, err)
	}
	img, _, err := image.Decode(imgFile)
	if closeErr := imgFile.Close(); closeErr != nil {
		logger.Error("could not close image", "error", closeErr)
	}
	if err != nil {
		return fmt.Errorf("could not decode image %q: %w", c.Image, err)
	}

	tree, err := quantize.BuildPalette(quantize.ImagePixels(img), quantize.Options{
		MaxColors: c.Colors,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not build palette: %w", err)
	}
	pal := tree.Finalize()

	outFile, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", c.Output, err)
	}
	n, err := palette.WriteTo(outFile, pal)
	if closeErr := outFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("could not write palette to %q: %w", c.Output, err)
	}

	logger.Info("saved palette", "dest", c.Output, "colors", len(pal), "bytes", n)
	return nil
}
