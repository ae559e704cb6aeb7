// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"testing"

	"github.com/ntios/peripherald/pkg/tablet"
)

func TestFormatOf(t *testing.T) {
	small := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White})
	sparse := image.NewPaletted(image.Rect(0, 0, 4, 4), palette.Plan9)
	for i, idx := range []uint8{7, 130, 255} {
		sparse.SetColorIndex(i, 0, idx)
	}
	full := image.NewPaletted(image.Rect(0, 0, 8, 4), palette.Plan9)
	for i := range full.Pix {
		full.Pix[i] = uint8(i * 7)
	}

	tests := []struct {
		name string
		img  image.Image
		want Format
	}{
		{"two-color paletted", small, Palette},
		{"256 entries, 4 used", sparse, Palette},
		{"256 entries, 32 used", full, TrueColor},
		{"rgba", image.NewRGBA(image.Rect(0, 0, 4, 4)), TrueColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatOf(tt.img); got != tt.want {
				t.Errorf("FormatOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompactPalette(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 3, 2), palette.Plan9)
	for i, idx := range []uint8{90, 90, 17, 240, 17, 90} {
		img.Pix[i] = idx
	}

	p, ok := compactPalette(img, tablet.MaxPaletteColors)
	if !ok {
		t.Fatal("compactPalette() failed for three used colors")
	}
	if len(p.Palette) != 3 {
		t.Fatalf("palette has %d entries, want 3", len(p.Palette))
	}
	if got, want := p.Pix, []uint8{0, 0, 1, 2, 1, 0}; !bytes.Equal(got, want) {
		t.Errorf("indices = %v, want %v", got, want)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if p.At(x, y) != img.At(x, y) {
				t.Errorf("pixel (%d, %d) changed color", x, y)
			}
		}
	}

	if _, ok := compactPalette(img, 2); ok {
		t.Error("compactPalette() should refuse when used colors exceed the limit")
	}
	if got := PaletteColors(img); got != 3 {
		t.Errorf("PaletteColors() = %d, want 3", got)
	}
}

func TestSectorsFor(t *testing.T) {
	pal16 := make(color.Palette, 16)
	for i := range pal16 {
		pal16[i] = color.Gray{Y: uint8(i * 16)}
	}

	tests := []struct {
		name   string
		img    image.Image
		format Format
		want   int
	}{
		{"one pixel", image.NewRGBA(image.Rect(0, 0, 1, 1)), TrueColor, 1},
		{"exactly one sector", image.NewRGBA(image.Rect(0, 0, 16, 16)), TrueColor, 1},
		{"one pixel over", image.NewRGBA(image.Rect(0, 0, 257, 1)), TrueColor, 2},
		{"largest image", image.NewRGBA(image.Rect(0, 0, 255, 255)), TrueColor, 255},
		// 960 index words + 16 palette words
		{"palette 64x60", image.NewPaletted(image.Rect(0, 0, 64, 60), pal16), Palette, 4},
		// 1008 + 16 fills four sectors exactly
		{"palette 64x63", image.NewPaletted(image.Rect(0, 0, 64, 63), pal16), Palette, 4},
		{"palette 64x64", image.NewPaletted(image.Rect(0, 0, 64, 64), pal16), Palette, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SectorsFor(tt.img, tt.format); got != tt.want {
				t.Errorf("SectorsFor() = %d, want %d", got, tt.want)
			}
			words := EncodeImage(tt.img, tt.format)
			if got := len(Sectors(words)); got != tt.want {
				t.Errorf("encoded into %d sectors, want %d", got, tt.want)
			}
		})
	}
}

func TestEncodeImage_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 12, 21))
	img.Set(10, 20, color.RGBA{R: 255, A: 255})
	img.Set(11, 20, color.RGBA{G: 255, A: 255})

	words := EncodeImage(img, TrueColor)
	want := []uint16{tablet.ToU16(tablet.RGB{R: 255}), tablet.ToU16(tablet.RGB{G: 255})}
	if len(words) != 2 || words[0] != want[0] || words[1] != want[1] {
		t.Errorf("EncodeImage() = %04X, want %04X", words, want)
	}
}

func TestPaletteImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	colors := []color.RGBA{
		{R: 255, A: 255}, {G: 255, A: 255}, {R: 255, A: 255},
		{B: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255},
	}
	for i, c := range colors {
		img.Set(i%3, i/3, c)
	}

	p, ok := PaletteImage(img, 16)
	if !ok {
		t.Fatal("PaletteImage() failed for a three-color image")
	}
	if len(p.Palette) != 3 {
		t.Errorf("palette has %d entries, want 3", len(p.Palette))
	}
	for i, c := range colors {
		r1, g1, b1, _ := p.At(i%3, i/3).RGBA()
		r2, g2, b2, _ := c.RGBA()
		if r1>>8 != r2>>8 || g1>>8 != g2>>8 || b1>>8 != b2>>8 {
			t.Errorf("pixel %d changed color", i)
		}
	}
	if FormatOf(p) != Palette {
		t.Error("converted image should take the palette path")
	}

	if _, ok := PaletteImage(img, 2); ok {
		t.Error("PaletteImage() should refuse when colors exceed the limit")
	}
}

func TestFitImage(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	if FitImage(small, tablet.MaxImageSize) != image.Image(small) {
		t.Error("FitImage() should return images that fit unchanged")
	}

	big := image.NewRGBA(image.Rect(0, 0, 510, 300))
	fitted := FitImage(big, tablet.MaxImageSize)
	b := fitted.Bounds()
	if b.Dx() != 255 || b.Dy() != 150 {
		t.Errorf("FitImage() bounds = %dx%d, want 255x150", b.Dx(), b.Dy())
	}
}
