// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/emulator"
	"github.com/ntios/peripherald/pkg/tablet"
	"github.com/ntios/peripherald/pkg/touch"
)

var simScale int

var simCmd = &cobra.Command{
	Use:   "sim OUTPUT.png",
	Short: "Run a demo scene against the emulator and save a screenshot",
	Long: `Draw a small demo scene on the built-in emulator, drive it with a scripted
tap and drag, and write the resulting screen to a PNG file.

The scene exercises text, rectangles, a true-color and a palette image, the
VRAM cache and the touch classifier. Connection flags are ignored; the
geometry flags size the emulated screen.`,
	Args: cobra.ExactArgs(1),
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().IntVar(&simScale, "scale", 1, "Integer upscale factor of the screenshot")
}

var (
	simBackground = color.RGBA{R: 0x10, G: 0x18, B: 0x30, A: 0xFF}
	simButton     = color.RGBA{R: 0x50, G: 0x58, B: 0x70, A: 0xFF}
	simPressed    = color.RGBA{R: 0x20, G: 0xA0, B: 0x40, A: 0xFF}
	simInk        = color.RGBA{R: 0xFF, G: 0xC0, B: 0x20, A: 0xFF}
)

var (
	simButtonRect = image.Rect(200, 60, 360, 100)
	simCanvasRect = image.Rect(16, 140, 400, 300)
)

func runSim(cmd *cobra.Command, args []string) error {
	emu := emulator.New(screenWidth, screenHeight, vramSectors)
	if traceFrames {
		emu.Trace = log.New(os.Stderr, "emu ", log.LstdFlags|log.Lmicroseconds)
	}
	emu.Battery(4.1, -0.12)

	dev := device.New(emu, deviceConfig())
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return runSimScript(ctx, emu)
	})
	g.Go(func() error { return runSimScene(ctx, dev) })
	if err := g.Wait(); err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, emu.Snapshot(0, simScale)); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}

	stats := emu.Stats()
	opcodes := make([]int, 0, len(stats))
	for op := range stats {
		opcodes = append(opcodes, int(op))
	}
	sort.Ints(opcodes)
	fmt.Printf("Wrote %s\n", args[0])
	for _, op := range opcodes {
		fmt.Printf("  %-20s %5d\n", tablet.FormatCommandType(uint8(op)), stats[uint8(op)])
	}
	return nil
}

// runSimScript plays the part of a finger on the emulated screen
func runSimScript(ctx context.Context, emu *emulator.Emulator) error {
	wait := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	// Let the scene draw first
	if !wait(100 * time.Millisecond) {
		return nil
	}

	// Tap the button
	center := simButtonRect.Min.Add(simButtonRect.Size().Div(2))
	emu.Tap(center.X, center.Y)
	if !wait(120 * time.Millisecond) {
		return nil
	}
	emu.Release()
	if !wait(100 * time.Millisecond) {
		return nil
	}

	// Hold inside the canvas past the cutoff, then draw a stroke
	from := simCanvasRect.Min.Add(image.Pt(24, 24))
	to := simCanvasRect.Max.Sub(image.Pt(40, 30))
	emu.Tap(from.X, from.Y)
	if !wait(touch.DefaultCutoff + 100*time.Millisecond) {
		return nil
	}
	const steps = 30
	for i := 1; i <= steps; i++ {
		x := from.X + (to.X-from.X)*i/steps
		y := from.Y + (to.Y-from.Y)*i/steps
		emu.Tap(x, y)
		if !wait(3 * pollInterval) {
			return nil
		}
	}
	emu.Release()

	// Give the scene a few polls to see the release
	wait(5 * pollInterval)
	return nil
}

// runSimScene draws the demo scene and reacts to touches until ctx is done
func runSimScene(ctx context.Context, dev *device.Device) error {
	disp := dev.Display(0)
	if err := drawSimScene(dev, disp); err != nil {
		return err
	}

	classifier := newSimClassifier(disp)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			presses, err := dev.Presses()
			if err != nil {
				return err
			}
			classifier.Update(presses, now)
		}
	}
}

// newSimClassifier wires the button and the drawing canvas to disp.
// Drawing errors inside the handlers are logged.
func newSimClassifier(disp *device.Display) *touch.Classifier {
	classifier := touch.NewClassifier()
	classifier.Add(simButtonRect, touch.HandlerFuncs{
		Click: func(p tablet.Point) {
			r := simButtonRect
			err := runSteps([]func() error{
				func() error { return disp.FillRect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, simPressed) },
				func() error { return disp.DrawRect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, color.White) },
				func() error { return disp.SetTextColor(color.White) },
				func() error { return disp.SetCursor(r.Min.X+48, r.Min.Y+14) },
				func() error { return disp.WriteText("TAPPED") },
			})
			if err != nil {
				log.Printf("Failed to redraw button: %v", err)
			}
		},
	})
	classifier.Add(simCanvasRect, touch.HandlerFuncs{
		Drag: func(from, to tablet.Point) {
			x, y := int(to.X), int(to.Y)
			if err := disp.FillRect(x-1, y-1, x+1, y+1, simInk); err != nil {
				log.Printf("Failed to draw stroke at (%d, %d): %v", x, y, err)
			}
		},
	})
	return classifier
}

func drawSimScene(dev *device.Device, disp *device.Display) error {
	steps := []func() error{
		func() error { return disp.FillScreen(simBackground) },
		func() error { return disp.SetTextColor(color.White) },
		func() error { return disp.SetCursor(16, 16) },
		func() error {
			return disp.WriteText(fmt.Sprintf("peripherald emulator %dx%d\nbattery %.2f V",
				disp.Width(), disp.Height(), dev.BatteryVoltage()))
		},
		func() error { return disp.DrawImage(16, 60, gradientImage(64, 64)) },
		func() error { return disp.DrawImage(100, 60, checkerImage(32, 32)) },
		func() error {
			r := simButtonRect
			return disp.FillRect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, simButton)
		},
		func() error {
			r := simButtonRect
			return disp.DrawRect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, color.White)
		},
		func() error { return disp.SetCursor(simButtonRect.Min.X+52, simButtonRect.Min.Y+14) },
		func() error { return disp.WriteText("TAP ME") },
		func() error {
			r := simCanvasRect
			return disp.DrawRect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, simButton)
		},
	}
	return runSteps(steps)
}

// runSteps runs each step in order and stops at the first error
func runSteps(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// gradientImage is a true-color test pattern
func gradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 0xA0, A: 0xFF})
		}
	}
	return img
}

// checkerImage is a four-color indexed test pattern
func checkerImage(w, h int) image.Image {
	palette := color.Palette{
		color.Black,
		color.White,
		color.RGBA{R: 0xE0, G: 0x30, B: 0x30, A: 0xFF},
		color.RGBA{R: 0x30, G: 0x60, B: 0xE0, A: 0xFF},
	}
	img := image.NewPaletted(image.Rect(0, 0, w, h), palette)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetColorIndex(x, y, uint8((x/8+y/8)%len(palette)))
		}
	}
	return img
}
