// Package reduce implements the command that converts a folder of images to
// paletted images.
package reduce

import (
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alecthomas/kong"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"picquant/dither"
	"picquant/okcolor"
	"picquant/palette"
	"picquant/parallel"
	"picquant/quantize"
)

var kernels = map[string]dither.Kernel{
	"default":         dither.DefaultKernel,
	"floyd-steinberg": dither.FloydSteinberg,
}

type CLICmd struct {
	Scan        string          `help:"Source folder to scan" default:"."`
	Dest        string          `help:"Destination folder for reduced pictures. Relative to scan dir if not absolute." default:"reduced"`
	Colors      int             `help:"Maximum number of palette colors (1-256)" default:"256" group:"palette"`
	Palette     string          `help:"PAL file in RIFF format to apply instead of building a palette per image" type:"existingfile" group:"palette"`
	Metric      string          `help:"Color distance used to match pixels to the --palette colors" enum:"rgb,oklab" default:"rgb" group:"palette"`
	SavePalette bool            `help:"Save the palette of every image next to it as a RIFF PAL file" default:"false" group:"palette"`
	Dither      bool            `help:"Apply error diffusion dithering" default:"false" group:"dither"`
	Kernel      string          `help:"Error diffusion weights" enum:"default,floyd-steinberg" default:"default" group:"dither"`
	Format      string          `help:"Output format of reduced images. 'same' keeps the source format when it can hold a palette, PNG otherwise" enum:"same,gif,png,bmp,tiff" default:"png"`
	FixedPal    palette.Palette `kong:"-"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	scanDir, err := filepath.Abs(c.Scan)
	var info os.FileInfo
	if err == nil {
		if info, err = os.Stat(scanDir); err == nil && !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
	}
	if err != nil {
		return fmt.Errorf("invalid scan path %q: %w", c.Scan, err)
	}
	c.Scan = scanDir

	if !filepath.IsAbs(c.Dest) {
		c.Dest = filepath.Join(scanDir, c.Dest)
	}

	if c.Colors < 1 || c.Colors > quantize.MaxColors {
		return fmt.Errorf("invalid number of colors: %d", c.Colors)
	}

	if c.Palette != "" {
		if c.FixedPal, err = loadPalette(c.Palette); err != nil {
			return err
		}
		if len(c.FixedPal) > quantize.MaxColors {
			return fmt.Errorf("palette %q has too many colors: %d", c.Palette, len(c.FixedPal))
		}
	}

	return nil
}

func loadPalette(name string) (palette.Palette, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open palette %q: %w", name, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("could not close palette file", "name", name, "error", closeErr)
		}
	}()

	pal, err := palette.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("could not read palette %q: %w", name, err)
	}
	return pal, nil
}

// indexer returns the nearest color search over the fixed palette.
func (c *CLICmd) indexer() dither.Indexer {
	if c.Metric == "oklab" {
		return okcolor.NewPalette(c.FixedPal)
	}
	return c.FixedPal
}

func (c *CLICmd) options(logger *slog.Logger) quantize.Options {
	return quantize.Options{
		MaxColors: c.Colors,
		Dither:    c.Dither,
		Kernel:    kernels[c.Kernel],
		Logger:    logger,
	}
}

func (c *CLICmd) Run(worker parallel.WorkerFunc, wait parallel.WaitFunc) error {
	if err := os.MkdirAll(c.Dest, 0o755); err != nil {
		return fmt.Errorf("unable to create destination folder %q: %w", c.Dest, err)
	}

	files, err := os.ReadDir(c.Scan)
	if err != nil {
		return fmt.Errorf("unable to read folder %q: %w", c.Scan, err)
	}

	var processedCount, errCount atomic.Uint64
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		worker(func(fileName string) func() {
			return func() {
				logger := slog.Default().With("file", filepath.Join(c.Scan, fileName))
				if err := c.process(logger, fileName); err != nil {
					errCount.Add(1)
					logger.Error("could not reduce image", "error", err)
					return
				}
				processedCount.Add(1)
			}
		}(file.Name()))
	}

	wait(true)

	processed := processedCount.Load()
	errors := errCount.Load()
	slog.Info("stats", "processed", processed, "errors", errors,
		"total", processed+errors)

	if errors > 0 {
		return fmt.Errorf("error processing %d files", errors)
	}
	return nil
}

func (c *CLICmd) process(logger *slog.Logger, fileName string) error {
	filePath := filepath.Join(c.Scan, fileName)
	imgFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("could not open image: %w", err)
	}
	img, imgType, err := image.Decode(imgFile)
	if closeErr := imgFile.Close(); closeErr != nil {
		logger.Error("could not close image", "error", closeErr)
	}
	if err != nil {
		return fmt.Errorf("could not decode image: %w", err)
	}

	var pi *image.Paletted
	if c.FixedPal != nil {
		pi = applyPalette(logger.With("palette", c.Palette, "metric", c.Metric), img, c.FixedPal, c.indexer(), c.Dither, kernels[c.Kernel])
	} else {
		logger.Info("quantizing", "colors", c.Colors, "dither", c.Dither)
		if pi, err = quantize.Image(img, c.options(logger)); err != nil {
			return fmt.Errorf("could not quantize image: %w", err)
		}
	}

	destName, err := save(pi, imgType, c.Format, c.Dest, fileName)
	if err != nil {
		return fmt.Errorf("could not save image in %q: %w", c.Dest, err)
	}

	if c.SavePalette {
		palName := strings.TrimSuffix(destName, filepath.Ext(destName)) + ".pal"
		if err := savePalette(palette.From(pi.Palette), c.Dest, palName); err != nil {
			return err
		}
	}
	return nil
}

func save(img *image.Paletted, imgType, outType, destDir, srcName string) (destName string, err error) {
	if outType == "same" {
		switch imgType {
		case "gif", "png", "bmp", "tiff":
			outType = imgType
		default:
			outType = "png"
		}
	}

	oldExt := filepath.Ext(srcName)
	destName = fmt.Sprintf("%s.%s", srcName[:len(srcName)-len(oldExt)], outType)

	err = writeAtomic(destDir, destName, func(f *os.File) error {
		switch outType {
		case "gif":
			return gif.Encode(f, img, nil)
		case "png":
			enc := png.Encoder{
				CompressionLevel: png.BestCompression,
				BufferPool:       pngPool,
			}
			return enc.Encode(f, img)
		case "bmp":
			return bmp.Encode(f, img)
		case "tiff":
			return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
		default:
			return fmt.Errorf("unsupported output format: %s", outType)
		}
	})
	return destName, err
}

func savePalette(pal palette.Palette, destDir, destName string) error {
	return writeAtomic(destDir, destName, func(f *os.File) error {
		_, err := palette.WriteTo(f, pal)
		return err
	})
}

// writeAtomic writes to a temporary file in destDir and renames it to
// destName once write succeeded.
func writeAtomic(destDir, destName string, write func(*os.File) error) (err error) {
	outFile, err := os.CreateTemp(destDir, destName)
	if err != nil {
		return fmt.Errorf("could not create temporary destination %q: %w", destName, err)
	}
	canRename := false
	defer func() {
		if defErr := outFile.Sync(); defErr != nil && err == nil {
			err = fmt.Errorf("could not flush temporary destination %q: %w", destName, defErr)
		}
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", destName, defErr)
		}

		if canRename && err == nil {
			if defErr := os.Rename(outFile.Name(), filepath.Join(destDir, destName)); defErr != nil {
				err = fmt.Errorf("could not rename destination file %q: %w", destName, defErr)
			}
			return
		}
		if defErr := os.Remove(outFile.Name()); defErr != nil {
			slog.Error("could not remove temporary destination", "name", outFile.Name(), "error", defErr)
		}
	}()

	if err = write(outFile); err != nil {
		return fmt.Errorf("could not encode %q: %w", destName, err)
	}

	canRename = true
	return nil
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
