package okcolor

import (
	"math"

	"picquant/palette"
)

// LinearRGB is a color with the sRGB transfer function removed. Channels of
// colors inside the sRGB gamut are in [0, 1].
type LinearRGB struct {
	R float64
	G float64
	B float64
}

// linear maps 8-bit sRGB channel values to linear light.
var linear = func() (t [256]float64) {
	for i := range t {
		t[i] = toLinear(float64(i) / 255)
	}
	return t
}()

// Linear converts c to linear light.
func Linear(c palette.Color) LinearRGB {
	return LinearRGB{
		R: linear[c.R],
		G: linear[c.G],
		B: linear[c.B],
	}
}

// Color converts back to sRGB. Channels outside the gamut are clamped.
func (lc LinearRGB) Color() palette.Color {
	return palette.Color{
		R: toByte(fromLinear(lc.R)),
		G: toByte(fromLinear(lc.G)),
		B: toByte(fromLinear(lc.B)),
	}
}

func toByte(x float64) uint8 {
	return uint8(math.Round(min(max(x, 0), 1) * 255))
}

func toLinear(x float64) float64 {
	if x >= 0.04045 {
		return math.Pow((x+0.055)/1.055, 2.4)
	}
	return x / 12.92
}

const pow float64 = 1.0 / 2.4

func fromLinear(x float64) float64 {
	if x >= 0.0031308 {
		return math.Pow(x, pow)*1.055 - 0.055
	}
	return x * 12.92
}
