// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ntios/peripherald/pkg/tablet"
)

// Display draws on one screen of the peripheral. Every operation selects
// the screen first. Invalid arguments are reported before anything is
// written.
type Display struct {
	dev   *Device
	index int
}

// Index returns the screen index
func (s *Display) Index() int {
	return s.index
}

// Width returns the screen width in pixels
func (s *Display) Width() int {
	return s.dev.cfg.Width
}

// Height returns the screen height in pixels
func (s *Display) Height() int {
	return s.dev.cfg.Height
}

// Bounds returns the screen rectangle
func (s *Display) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.Width(), s.Height())
}

// send selects this screen and writes cmds. build errors are returned
// without touching the channel.
func (s *Display) send(build func() ([]*tablet.Command, error)) error {
	cmds, err := build()
	if err != nil {
		return err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if err := s.dev.selectLocked(s.index); err != nil {
		return err
	}
	return s.dev.sendLocked(cmds...)
}

func one(cmd *tablet.Command, err error) func() ([]*tablet.Command, error) {
	return func() ([]*tablet.Command, error) {
		if err != nil {
			return nil, err
		}
		return []*tablet.Command{cmd}, nil
	}
}

// SetTextColor sets the color of subsequent text
func (s *Display) SetTextColor(c color.Color) error {
	return s.send(one(tablet.NewSetTextColor(tablet.Color565(c)), nil))
}

// SetCursor moves the text cursor
func (s *Display) SetCursor(x, y int) error {
	return s.send(one(tablet.NewSetTextCursor(x, y)))
}

// WriteText writes text at the cursor, split into as many frames as needed
func (s *Display) WriteText(text string) error {
	cmds := tablet.WriteTextCommands([]byte(text))
	if len(cmds) == 0 {
		return nil
	}
	return s.send(func() ([]*tablet.Command, error) { return cmds, nil })
}

// DrawPixel sets one pixel
func (s *Display) DrawPixel(x, y int, c color.Color) error {
	return s.send(one(tablet.NewDrawPixel(x, y, tablet.Color565(c))))
}

// FillRect fills the rectangle with inclusive corners (x1,y1) and (x2,y2)
func (s *Display) FillRect(x1, y1, x2, y2 int, c color.Color) error {
	return s.send(one(tablet.NewFillRect(x1, y1, x2, y2, tablet.Color565(c))))
}

// DrawRect outlines the rectangle with inclusive corners (x1,y1) and (x2,y2)
func (s *Display) DrawRect(x1, y1, x2, y2 int, c color.Color) error {
	return s.send(one(tablet.NewDrawRect(x1, y1, x2, y2, tablet.Color565(c))))
}

// FillScreen fills the whole screen
func (s *Display) FillScreen(c color.Color) error {
	return s.send(one(tablet.NewFillDisplay(tablet.Color565(c)), nil))
}

// DrawImage draws img with its top-left corner at (x, y). The image is
// uploaded to VRAM unless it is already resident, so a call may write
// several frames before the draw command itself.
func (s *Display) DrawImage(x, y int, img image.Image) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	err := checkAll(
		tablet.CheckImageSize(w, h),
		tablet.CheckCoordinate("x", x),
		tablet.CheckCoordinate("y", y),
	)
	if err != nil {
		return err
	}

	format := FormatOf(img)

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()

	sector, err := s.dev.loadLocked(img, format)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	var cmd *tablet.Command
	if format == Palette {
		cmd, err = tablet.NewDrawPaletteImage(sector, x, y, w, h, PaletteColors(img))
	} else {
		cmd, err = tablet.NewDrawBitmap(sector, x, y, w, h)
	}
	if err != nil {
		return err
	}
	if err := s.dev.selectLocked(s.index); err != nil {
		return err
	}
	return s.dev.sendLocked(cmd)
}

// LoadImage makes img resident in VRAM without drawing it and returns its
// first sector
func (s *Display) LoadImage(img image.Image) (int, error) {
	b := img.Bounds()
	if err := tablet.CheckImageSize(b.Dx(), b.Dy()); err != nil {
		return 0, err
	}
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	return s.dev.loadLocked(img, FormatOf(img))
}

// WriteVRAM writes one raw sector of exactly 256 words. Any resident image
// using that sector is forgotten.
func (s *Display) WriteVRAM(sector int, words []uint16) error {
	cmd, err := tablet.NewWriteVRAM(sector, words)
	if err != nil {
		return err
	}

	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	if sector >= s.dev.cache.Capacity() {
		return &tablet.ValidationError{
			Kind:    tablet.KindOutOfRange,
			Message: fmt.Sprintf("sector %d outside VRAM (%d sectors)", sector, s.dev.cache.Capacity()),
			Details: map[string]interface{}{"sector": sector, "capacity": s.dev.cache.Capacity()},
		}
	}
	s.dev.cache.Evict(sector, 1)
	return s.dev.sendLocked(cmd)
}

func checkAll(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
