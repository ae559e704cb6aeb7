// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"image"
	"image/color"

	"github.com/disintegration/gift"

	"github.com/ntios/peripherald/pkg/tablet"
)

// Format is the VRAM layout an image is uploaded in
type Format int

const (
	// TrueColor stores one RGB565 word per pixel, row-major
	TrueColor Format = iota
	// Palette stores the palette words followed by 4-bit indices packed four
	// to a word, high nibble first
	Palette
)

func (f Format) String() string {
	if f == Palette {
		return "palette"
	}
	return "true-color"
}

// FormatOf picks the upload format for img. Only natively indexed images
// that use at most 16 palette entries take the palette path. Unused
// entries do not count, so a GIF with a 256-entry table and three used
// colors is still uploaded as a palette image.
func FormatOf(img image.Image) Format {
	if _, ok := paletteOf(img); ok {
		return Palette
	}
	return TrueColor
}

// PaletteColors returns the number of palette words img is uploaded with,
// 0 when it takes the true-color path
func PaletteColors(img image.Image) int {
	if p, ok := paletteOf(img); ok {
		return len(p.Palette)
	}
	return 0
}

// EncodeImage serialises img in the given format
func EncodeImage(img image.Image, format Format) []uint16 {
	if format == Palette {
		if p, ok := paletteOf(img); ok {
			return encodePalette(p)
		}
	}
	return encodeTrueColor(img)
}

func paletteOf(img image.Image) (*image.Paletted, bool) {
	p, ok := img.(*image.Paletted)
	if !ok {
		return nil, false
	}
	return compactPalette(p, tablet.MaxPaletteColors)
}

// compactPalette drops the palette entries p does not use and renumbers
// the rest in order of first use. p is returned as is when its palette
// already fits.
func compactPalette(p *image.Paletted, maxColors int) (*image.Paletted, bool) {
	if len(p.Palette) <= maxColors {
		return p, true
	}

	b := p.Bounds()
	var remap [256]int16
	for i := range remap {
		remap[i] = -1
	}
	var palette color.Palette
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := p.ColorIndexAt(x, y)
			if remap[i] >= 0 {
				continue
			}
			if len(palette) >= maxColors {
				return nil, false
			}
			remap[i] = int16(len(palette))
			palette = append(palette, p.At(x, y))
		}
	}

	dst := image.NewPaletted(b, palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetColorIndex(x, y, uint8(remap[p.ColorIndexAt(x, y)]))
		}
	}
	return dst, true
}

func encodeTrueColor(img image.Image) []uint16 {
	b := img.Bounds()
	words := make([]uint16, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			words = append(words, tablet.Color565(img.At(x, y)))
		}
	}
	return words
}

func encodePalette(p *image.Paletted) []uint16 {
	b := p.Bounds()
	pixels := b.Dx() * b.Dy()
	words := make([]uint16, 0, len(p.Palette)+(pixels+3)/4)
	for _, c := range p.Palette {
		words = append(words, tablet.Color565(c))
	}

	var word uint16
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			word |= uint16(p.ColorIndexAt(x, y)&0x0F) << (12 - 4*n)
			n++
			if n == 4 {
				words = append(words, word)
				word, n = 0, 0
			}
		}
	}
	if n > 0 {
		words = append(words, word)
	}
	return words
}

// SectorsFor returns how many VRAM sectors img occupies in format
func SectorsFor(img image.Image, format Format) int {
	b := img.Bounds()
	pixels := b.Dx() * b.Dy()
	words := pixels
	if format == Palette {
		if n := PaletteColors(img); n > 0 {
			words = n + (pixels+3)/4
		}
	}
	return (words + tablet.SectorWords - 1) / tablet.SectorWords
}

// Sectors splits words into sector-sized slices, zero-padding the last
func Sectors(words []uint16) [][]uint16 {
	var out [][]uint16
	for len(words) > 0 {
		sector := make([]uint16, tablet.SectorWords)
		n := copy(sector, words)
		out = append(out, sector)
		words = words[n:]
	}
	return out
}

// PaletteImage converts img into an exact *image.Paletted when it uses at
// most maxColors distinct colors. The second result is false otherwise.
func PaletteImage(img image.Image, maxColors int) (*image.Paletted, bool) {
	if p, ok := img.(*image.Paletted); ok {
		if c, ok := compactPalette(p, min(maxColors, 256)); ok {
			return c, true
		}
	}

	if maxColors > 256 {
		maxColors = 256
	}
	b := img.Bounds()
	var palette color.Palette
	index := make(map[tablet.RGB]uint8)
	dst := image.NewPaletted(b, nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := toRGB(img.At(x, y))
			i, ok := index[c]
			if !ok {
				if len(palette) >= maxColors {
					return nil, false
				}
				i = uint8(len(palette))
				index[c] = i
				palette = append(palette, c)
			}
			dst.SetColorIndex(x, y, i)
		}
	}
	dst.Palette = palette
	return dst, true
}

func toRGB(c color.Color) tablet.RGB {
	r, g, b, _ := c.RGBA()
	return tablet.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// FitImage downscales img to fit within limit×limit pixels, keeping the
// aspect ratio. Images that already fit are returned unchanged.
func FitImage(img image.Image, limit int) image.Image {
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	g := gift.New(gift.ResizeToFit(limit, limit, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}
