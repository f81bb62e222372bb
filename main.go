package main

import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/vp8l"
	_ "golang.org/x/image/webp"

	"picquant/extract"
	"picquant/parallel"
	"picquant/reduce"
)

type cli struct {
	Workers int  `help:"Number of images processed in parallel. Defaults to the number of CPUs" default:"0"`
	Verbose bool `help:"Enable debug logging" short:"v"`

	Reduce  reduce.CLICmd  `cmd:"" help:"Reduce the images of a folder to paletted images"`
	Extract extract.CLICmd `cmd:"" help:"Build the palette of an image and save it as a RIFF PAL file"`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("picquant"),
		kong.Description("Octree color quantization and error diffusion dithering"),
		kong.UsageOnError(),
	)

	if c.Verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	pool := parallel.Start(c.Workers)
	slog.Info("running", "command", kctx.Command(), "workers", pool.Workers())

	err := kctx.Run(parallel.WorkerFunc(pool.Do), parallel.WaitFunc(pool.Wait))
	pool.Wait(true)
	if err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
