package dither

import (
	"picquant/palette"
)

const (
	fracBits = 5
	maxQuad  = 0xff << fracBits
)

// ErrorQuad holds per channel color or color error in fixed point with
// fracBits fractional bits.
type ErrorQuad struct {
	R, G, B int32
}

// FromColor widens c to fixed point.
func FromColor(c palette.Color) ErrorQuad {
	return ErrorQuad{
		R: int32(c.R) << fracBits,
		G: int32(c.G) << fracBits,
		B: int32(c.B) << fracBits,
	}
}

// Add returns q+o, each channel clamped to [-maxQuad, maxQuad].
func (q ErrorQuad) Add(o ErrorQuad) ErrorQuad {
	return ErrorQuad{
		R: clampErr(q.R + o.R),
		G: clampErr(q.G + o.G),
		B: clampErr(q.B + o.B),
	}
}

// Sub returns q with c subtracted from every channel.
func (q ErrorQuad) Sub(c palette.Color) ErrorQuad {
	return ErrorQuad{
		R: q.R - int32(c.R)<<fracBits,
		G: q.G - int32(c.G)<<fracBits,
		B: q.B - int32(c.B)<<fracBits,
	}
}

// AddWeighted adds weight/16 of e into q.
func (q *ErrorQuad) AddWeighted(e ErrorQuad, weight int32) {
	q.R = clampErr(q.R + (e.R*weight)>>4)
	q.G = clampErr(q.G + (e.G*weight)>>4)
	q.B = clampErr(q.B + (e.B*weight)>>4)
}

// Color narrows q back to 8 bits per channel, clamping first so the result
// is always a valid intensity.
func (q ErrorQuad) Color() palette.Color {
	return palette.Color{
		R: uint8(clampColor(q.R) >> fracBits),
		G: uint8(clampColor(q.G) >> fracBits),
		B: uint8(clampColor(q.B) >> fracBits),
	}
}

func clampColor(v int32) int32 {
	return min(max(v, 0), maxQuad)
}

func clampErr(v int32) int32 {
	return min(max(v, -maxQuad), maxQuad)
}
