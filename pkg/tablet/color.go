// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"fmt"
	"image/color"
)

// RGB is a 24-bit color. It implements color.Color so it can be used
// anywhere the image packages expect a color.
type RGB struct {
	R, G, B uint8
}

// RGBA implements color.Color.
func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF}.RGBA()
}

// String renders the color as #rrggbb
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RGBFromPacked unpacks a 24-bit integer color. Red lives in the low byte,
// blue in the high byte.
func RGBFromPacked(v uint32) RGB {
	return RGB{
		R: uint8(v & 0xFF),
		G: uint8((v >> 8) & 0xFF),
		B: uint8((v >> 16) & 0xFF),
	}
}

// Packed is the inverse of RGBFromPacked.
func (c RGB) Packed() uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
}

// ToU16 converts a 24-bit color to the 16-bit wire format. Low bits are
// truncated, not rounded.
func ToU16(c RGB) uint16 {
	r := uint16(c.R)
	g := uint16(c.G)
	b := uint16(c.B)
	return (r >> 3) | ((g << 3) & 0x7E0) | ((b << 8) & 0xF800)
}

// FromU16 expands a 16-bit wire color. The result differs from the packed
// 24-bit color by at most 7 (red, blue) or 3 (green) per channel.
func FromU16(c uint16) RGB {
	return RGB{
		R: uint8((c << 3) & 0xFF),
		G: uint8((c >> 3) & 0xFC),
		B: uint8((c >> 8) & 0xF8),
	}
}

// Color565 converts any color.Color to the wire format. Alpha is ignored.
func Color565(c color.Color) uint16 {
	if rgb, ok := c.(RGB); ok {
		return ToU16(rgb)
	}
	r, g, b, _ := c.RGBA()
	return ToU16(RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)})
}
