package extract

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"picquant/palette"
)

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "two.png")

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			if x < 4 {
				img.Set(x, y, color.RGBA{R: 255, A: 0xff})
			} else {
				img.Set(x, y, color.RGBA{G: 255, A: 0xff})
			}
		}
	}
	f, err := os.Create(src)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	cmd := &CLICmd{Image: src, Colors: 8}
	test.That(t, cmd.Validate(nil), test.ShouldBeNil)
	test.That(t, cmd.Output, test.ShouldEqual, filepath.Join(dir, "two.pal"))
	test.That(t, cmd.Run(), test.ShouldBeNil)

	pf, err := os.Open(cmd.Output)
	test.That(t, err, test.ShouldBeNil)
	defer pf.Close()
	pal, err := palette.ReadFile(pf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pal, test.ShouldResemble, palette.Palette{{G: 255}, {R: 255}})
}

func TestExtractValidate(t *testing.T) {
	test.That(t, (&CLICmd{Image: "x.png", Colors: 0}).Validate(nil), test.ShouldNotBeNil)
	test.That(t, (&CLICmd{Image: "x.png", Colors: 257}).Validate(nil), test.ShouldNotBeNil)

	cmd := &CLICmd{Image: "x.png", Colors: 2, Output: "y.pal"}
	test.That(t, cmd.Validate(nil), test.ShouldBeNil)
	test.That(t, cmd.Output, test.ShouldEqual, "y.pal")

	missing := &CLICmd{Image: filepath.Join(t.TempDir(), "missing.png"), Colors: 2}
	test.That(t, missing.Validate(nil), test.ShouldBeNil)
	test.That(t, missing.Run(), test.ShouldNotBeNil)
}
