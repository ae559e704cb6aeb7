// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"log"
	"strings"
	"testing"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
)

func newRig() (*Emulator, *device.Device) {
	emu := New(320, 240, 64)
	dev := device.New(emu, device.Config{Width: 320, Height: 240, Sectors: 64})
	return emu, dev
}

// wire returns the color c becomes after the trip through RGB565
func wire(c color.Color) color.RGBA {
	rgb := tablet.FromU16(tablet.Color565(c))
	return color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 0xFF}
}

func TestPrimitives(t *testing.T) {
	emu, dev := newRig()
	disp := dev.Display(0)
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}

	if err := disp.FillScreen(color.White); err != nil {
		t.Fatal(err)
	}
	if err := disp.FillRect(10, 10, 19, 19, red); err != nil {
		t.Fatal(err)
	}
	if err := disp.DrawRect(40, 40, 49, 49, green); err != nil {
		t.Fatal(err)
	}
	if err := disp.DrawPixel(100, 100, red); err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"background", 0, 0, wire(color.White)},
		{"fill corner", 10, 10, wire(red)},
		{"fill inclusive corner", 19, 19, wire(red)},
		{"past fill", 20, 20, wire(color.White)},
		{"outline top", 45, 40, wire(green)},
		{"outline inclusive right", 49, 45, wire(green)},
		{"outline inside", 45, 45, wire(color.White)},
		{"pixel", 100, 100, wire(red)},
	}
	for _, c := range checks {
		if got := emu.At(0, c.x, c.y); got != c.want {
			t.Errorf("%s: At(%d,%d) = %v, want %v", c.name, c.x, c.y, got, c.want)
		}
	}
}

func TestText(t *testing.T) {
	emu, dev := newRig()
	disp := dev.Display(0)

	if err := disp.SetCursor(16, 24); err != nil {
		t.Fatal(err)
	}
	if err := disp.WriteText("ab c\nxy"); err != nil {
		t.Fatal(err)
	}
	if got := emu.Cursor(); got != image.Pt(16, 36) {
		t.Errorf("Cursor() = %v, want (16,36)", got)
	}

	// 'a' is drawn somewhere in its 8x12 cell
	lit := false
	for y := 24; y < 24+LineHeight+1; y++ {
		for x := 16; x < 16+CharAdvance; x++ {
			if emu.At(0, x, y) != (color.RGBA{A: 0xFF}) {
				lit = true
			}
		}
	}
	if !lit {
		t.Error("no glyph pixels drawn for 'a'")
	}
}

func TestDrawImage_TrueColor(t *testing.T) {
	emu, dev := newRig()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 12), G: uint8(y * 12), B: 128, A: 255})
		}
	}

	disp := dev.Display(0)
	for i := 0; i < 2; i++ {
		if err := disp.DrawImage(100, 50, img); err != nil {
			t.Fatalf("DrawImage() error: %v", err)
		}
	}

	stats := emu.Stats()
	if stats[tablet.CmdWriteVRAM] != 2 {
		t.Errorf("write-vram frames = %d, want 2 for a single upload", stats[tablet.CmdWriteVRAM])
	}
	if stats[tablet.CmdDrawBitmap] != 2 {
		t.Errorf("draw-bitmap frames = %d, want 2", stats[tablet.CmdDrawBitmap])
	}

	for _, p := range []image.Point{{0, 0}, {19, 0}, {7, 13}, {19, 19}} {
		got := emu.At(0, 100+p.X, 50+p.Y)
		if want := wire(img.At(p.X, p.Y)); got != want {
			t.Errorf("pixel %v = %v, want %v", p, got, want)
		}
	}
}

func TestDrawImage_Palette(t *testing.T) {
	emu, dev := newRig()
	palette := color.Palette{color.Black, color.RGBA{R: 255, A: 255}, color.RGBA{B: 255, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, 7, 3), palette)
	for y := 0; y < 3; y++ {
		for x := 0; x < 7; x++ {
			img.SetColorIndex(x, y, uint8((x+y)%3))
		}
	}

	if err := dev.Display(0).DrawImage(5, 5, img); err != nil {
		t.Fatalf("DrawImage() error: %v", err)
	}
	if emu.Stats()[tablet.CmdDrawPaletteImage] != 1 {
		t.Fatal("expected a draw-palette-image frame")
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 7; x++ {
			if got, want := emu.At(0, 5+x, 5+y), wire(img.At(x, y)); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestSelectDisplay(t *testing.T) {
	emu, dev := newRig()
	if err := dev.Display(1).FillScreen(color.White); err != nil {
		t.Fatal(err)
	}
	if emu.SelectedDisplay() != 1 {
		t.Errorf("SelectedDisplay() = %d, want 1", emu.SelectedDisplay())
	}
	if emu.At(0, 0, 0) != (color.RGBA{A: 0xFF}) {
		t.Error("display 0 should be untouched")
	}
	if emu.At(1, 0, 0) != wire(color.White) {
		t.Error("display 1 should be filled")
	}
}

func TestFramesSpanningWrites(t *testing.T) {
	emu := New(16, 16, 4)
	cmd, _ := tablet.NewDrawPixel(3, 4, 0xFFFF)
	frame := tablet.EncodeCommand(cmd)

	for _, b := range frame {
		if err := emu.Write([]byte{b}); err != nil {
			t.Fatal(err)
		}
	}
	if emu.Stats()[tablet.CmdDrawPixel] != 1 {
		t.Fatal("byte-at-a-time frame was not decoded")
	}
	if emu.At(0, 3, 4) != (color.RGBA{R: 0xF8, G: 0xFC, B: 0xF8, A: 0xFF}) {
		t.Errorf("pixel = %v", emu.At(0, 3, 4))
	}
}

func TestVRAMOutOfRange(t *testing.T) {
	emu := New(16, 16, 2)
	cmd, _ := tablet.NewWriteVRAM(5, make([]uint16, tablet.SectorWords))
	if err := emu.Write(tablet.EncodeCommand(cmd)); err != nil {
		t.Fatal(err)
	}
	draw, _ := tablet.NewDrawBitmap(1, 0, 0, 255, 2)
	emu.Write(tablet.EncodeCommand(draw))
	if emu.Faults() != 2 {
		t.Errorf("Faults() = %d, want 2", emu.Faults())
	}
	if emu.Sector(5) != nil {
		t.Error("Sector() outside VRAM should be nil")
	}
}

func TestEvents(t *testing.T) {
	emu, dev := newRig()

	emu.Tap(120, 80)
	emu.Battery(3.85, -0.1)
	presses, err := dev.Presses()
	if err != nil {
		t.Fatalf("Presses() error: %v", err)
	}
	if len(presses) != 1 || presses[0].X != 120 || presses[0].Y != 80 || presses[0].Z != DefaultTouchPressure {
		t.Errorf("Presses() = %v", presses)
	}
	if v := dev.BatteryVoltage(); v != 3.85 {
		t.Errorf("BatteryVoltage() = %v, want 3.85", v)
	}

	emu.Release()
	emu.KeyPress()
	events, err := dev.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("Poll() = %d events, want 2", len(events))
	}
	if _, ok := events[1].(tablet.KeyPressEvent); !ok {
		t.Errorf("second event = %T, want KeyPressEvent", events[1])
	}
}

func TestVibrate(t *testing.T) {
	emu, dev := newRig()
	dev.SetVibrate(true)
	if !emu.Vibrating() {
		t.Error("Vibrating() = false after SetVibrate(true)")
	}
	dev.SetVibrate(false)
	if emu.Vibrating() {
		t.Error("Vibrating() = true after SetVibrate(false)")
	}
}

func TestSnapshot(t *testing.T) {
	emu, dev := newRig()
	dev.Display(0).DrawPixel(1, 1, color.White)

	snap := emu.Snapshot(0, 2)
	if b := snap.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Fatalf("Snapshot bounds = %v, want 640x480", b)
	}
	r, g, b, _ := snap.At(3, 3).RGBA()
	if r>>8 != 0xF8 || g>>8 != 0xFC || b>>8 != 0xF8 {
		t.Errorf("scaled pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}
	if emu.Snapshot(0, 1).Bounds().Dx() != 320 {
		t.Error("scale 1 should keep the native size")
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	emu := New(16, 16, 1)
	emu.Trace = log.New(&buf, "", 0)
	emu.Write(tablet.EncodeCommand(tablet.NewSetVibrate(true)))
	if !strings.Contains(buf.String(), "SET_VIBRATE") {
		t.Errorf("trace = %q", buf.String())
	}
}

func TestClose(t *testing.T) {
	emu := New(16, 16, 1)
	emu.Close()
	if err := emu.Write([]byte{0x0B, 0, 0}); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("Write() after Close error = %v", err)
	}
	if !emu.Available() {
		t.Error("Available() should report the closed state")
	}
	if _, err := emu.Read(); !errors.Is(err, channel.ErrClosed) {
		t.Errorf("Read() after Close error = %v", err)
	}
}
