// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
)

var (
	drawX       int
	drawY       int
	drawDisplay int
	drawFit     bool
	drawPalette bool
	textColor   string
	fillColor   string
)

var drawCmd = &cobra.Command{
	Use:   "draw IMAGE",
	Short: "Draw a PNG, GIF or JPEG image on the peripheral",
	Long: `Upload an image to the peripheral's VRAM and draw it.

Images are limited to 255x255 pixels; use --fit to scale larger images down.
Indexed images with at most 16 colors are uploaded in the compact palette
format. --palette converts images with few colors to that format first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDraw,
}

var textCmd = &cobra.Command{
	Use:   "text TEXT",
	Short: "Write text at a position",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runText,
}

var fillCmd = &cobra.Command{
	Use:   "fill [X1 Y1 X2 Y2]",
	Short: "Fill the screen, or a rectangle with inclusive corners",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 4 {
			return fmt.Errorf("expected no arguments or four corners, got %d", len(args))
		}
		return nil
	},
	RunE: runFill,
}

var vibrateCmd = &cobra.Command{
	Use:       "vibrate on|off",
	Short:     "Switch the vibration motor",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE:      runVibrate,
}

func init() {
	rootCmd.AddCommand(drawCmd, textCmd, fillCmd, vibrateCmd)

	for _, c := range []*cobra.Command{drawCmd, textCmd, fillCmd} {
		c.Flags().IntVar(&drawDisplay, "display", 0, "Display index")
	}
	for _, c := range []*cobra.Command{drawCmd, textCmd} {
		c.Flags().IntVarP(&drawX, "x", "x", 0, "Left edge")
		c.Flags().IntVarP(&drawY, "y", "y", 0, "Top edge")
	}
	drawCmd.Flags().BoolVar(&drawFit, "fit", false, "Scale images larger than 255x255 down to fit")
	drawCmd.Flags().BoolVar(&drawPalette, "palette", false, "Use the palette format when the image has at most 16 colors")
	textCmd.Flags().StringVar(&textColor, "color", "#ffffff", "Text color as #rrggbb")
	fillCmd.Flags().StringVar(&fillColor, "color", "#000000", "Fill color as #rrggbb")
}

// parseColor accepts #rrggbb or rrggbb
func parseColor(s string) (tablet.RGB, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return tablet.RGB{}, fmt.Errorf("invalid color %q (want #rrggbb)", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return tablet.RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return tablet.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if traceFrames {
		fmt.Fprintf(os.Stderr, "decoded %s image %v\n", format, img.Bounds())
	}
	return img, nil
}

func runDraw(cmd *cobra.Command, args []string) error {
	img, err := loadImageFile(args[0])
	if err != nil {
		return err
	}
	if drawFit {
		img = device.FitImage(img, tablet.MaxImageSize)
	}
	if drawPalette {
		if p, ok := device.PaletteImage(img, tablet.MaxPaletteColors); ok {
			img = p
		}
	}

	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	b := img.Bounds()
	if err := dev.Display(drawDisplay).DrawImage(drawX, drawY, img); err != nil {
		return err
	}
	stats := dev.Statistics()
	fmt.Printf("Drew %dx%d %s image at (%d,%d) via %s: %d VRAM sectors, %d bytes\n",
		b.Dx(), b.Dy(), device.FormatOf(img), drawX, drawY, connInfo, stats.VRAMUploads, stats.BytesOut)
	return nil
}

func runText(cmd *cobra.Command, args []string) error {
	c, err := parseColor(textColor)
	if err != nil {
		return err
	}
	text := strings.ReplaceAll(strings.Join(args, " "), `\n`, "\n")

	dev, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	disp := dev.Display(drawDisplay)
	if err := disp.SetTextColor(c); err != nil {
		return err
	}
	if err := disp.SetCursor(drawX, drawY); err != nil {
		return err
	}
	return disp.WriteText(text)
}

func runFill(cmd *cobra.Command, args []string) error {
	c, err := parseColor(fillColor)
	if err != nil {
		return err
	}

	var corners [4]int
	for i, arg := range args {
		if corners[i], err = strconv.Atoi(arg); err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", arg, err)
		}
	}

	dev, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	disp := dev.Display(drawDisplay)
	if len(args) == 0 {
		return disp.FillScreen(c)
	}
	return disp.FillRect(corners[0], corners[1], corners[2], corners[3], c)
}

func runVibrate(cmd *cobra.Command, args []string) error {
	dev, _, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	return dev.SetVibrate(args[0] == "on")
}
