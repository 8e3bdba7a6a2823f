package image

import "image/color"

// Color is a straight (non-premultiplied) 8-bit RGBA sample.
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// ColorFromPacked unpacks a value laid out as A<<24 | R<<16 | G<<8 | B.
func ColorFromPacked(v uint32) Color {
	return Color{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: uint8(v >> 24),
	}
}

func (c Color) Packed() uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func colorFromNRGBA(c color.NRGBA) Color {
	return Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
