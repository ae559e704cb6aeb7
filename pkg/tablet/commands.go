// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"encoding/binary"
	"fmt"
)

// Command builder functions create Command values ready for encoding.
// Builders taking coordinates validate that every value fits its wire field
// and return a *ValidationError otherwise.

// payload is a small big-endian writer used by the builders
type payload []byte

func (p payload) u8(v int) payload {
	return append(p, uint8(v))
}

func (p payload) u16(v int) payload {
	return binary.BigEndian.AppendUint16(p, uint16(v))
}

func checkAll(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// NewSetTextCursor creates a SET_TEXT_CURSOR command (0x01).
func NewSetTextCursor(x, y int) (*Command, error) {
	if err := checkAll(CheckCoordinate("x", x), CheckCoordinate("y", y)); err != nil {
		return nil, err
	}
	return NewCommand(CmdSetTextCursor, payload{}.u16(x).u16(y)), nil
}

// NewWriteText creates a single WRITE_TEXT command (0x02).
// Text longer than MaxTextChunk bytes is rejected; use WriteTextCommands to
// split arbitrary text.
func NewWriteText(text []byte) (*Command, error) {
	if len(text) > MaxTextChunk {
		return nil, &ValidationError{
			Kind:    KindPayloadSize,
			Message: fmt.Sprintf("text chunk too long: %d bytes (max %d)", len(text), MaxTextChunk),
			Details: map[string]interface{}{"length": len(text), "max": MaxTextChunk},
		}
	}
	p := make(payload, 0, 1+len(text)).u8(len(text))
	return NewCommand(CmdWriteText, append(p, text...)), nil
}

// WriteTextCommands splits text into as many WRITE_TEXT commands as needed,
// in order. Empty text yields no commands.
func WriteTextCommands(text []byte) []*Command {
	var cmds []*Command
	for len(text) > 0 {
		n := len(text)
		if n > MaxTextChunk {
			n = MaxTextChunk
		}
		cmd, _ := NewWriteText(text[:n])
		cmds = append(cmds, cmd)
		text = text[n:]
	}
	return cmds
}

// NewDrawPixel creates a DRAW_PIXEL command (0x03).
func NewDrawPixel(x, y int, color uint16) (*Command, error) {
	if err := checkAll(CheckCoordinate("x", x), CheckCoordinate("y", y)); err != nil {
		return nil, err
	}
	return NewCommand(CmdDrawPixel, payload{}.u16(x).u16(y).u16(int(color))), nil
}

func newRect(opcode uint8, x1, y1, x2, y2 int, color uint16) (*Command, error) {
	err := checkAll(
		CheckCoordinate("x1", x1), CheckCoordinate("y1", y1),
		CheckCoordinate("x2", x2), CheckCoordinate("y2", y2),
	)
	if err != nil {
		return nil, err
	}
	return NewCommand(opcode, payload{}.u16(x1).u16(y1).u16(x2).u16(y2).u16(int(color))), nil
}

// NewFillRect creates a FILL_RECT command (0x04). Corners are inclusive.
func NewFillRect(x1, y1, x2, y2 int, color uint16) (*Command, error) {
	return newRect(CmdFillRect, x1, y1, x2, y2, color)
}

// NewDrawRect creates a DRAW_RECT command (0x05). Corners are inclusive.
func NewDrawRect(x1, y1, x2, y2 int, color uint16) (*Command, error) {
	return newRect(CmdDrawRect, x1, y1, x2, y2, color)
}

// NewSetTextColor creates a SET_TEXT_COLOR command (0x06).
func NewSetTextColor(color uint16) *Command {
	return NewCommand(CmdSetTextColor, payload{}.u16(int(color)))
}

// NewWriteVRAM creates a WRITE_VRAM command (0x07) holding exactly one
// sector of 16-bit words.
func NewWriteVRAM(sector int, words []uint16) (*Command, error) {
	if err := CheckCoordinate("sector", sector); err != nil {
		return nil, err
	}
	if len(words) != SectorWords {
		return nil, &ValidationError{
			Kind:    KindPayloadSize,
			Message: fmt.Sprintf("VRAM write must be %d words, got %d", SectorWords, len(words)),
			Details: map[string]interface{}{"length": len(words), "expected": SectorWords},
		}
	}
	p := make(payload, 0, 2+SectorBytes).u16(sector)
	for _, w := range words {
		p = p.u16(int(w))
	}
	return NewCommand(CmdWriteVRAM, p), nil
}

// NewDrawBitmap creates a DRAW_BITMAP command (0x08) for a true-color image
// resident at sector.
func NewDrawBitmap(sector, x, y, w, h int) (*Command, error) {
	err := checkAll(
		CheckCoordinate("sector", sector),
		CheckCoordinate("x", x), CheckCoordinate("y", y),
		CheckImageSize(w, h),
	)
	if err != nil {
		return nil, err
	}
	return NewCommand(CmdDrawBitmap, payload{}.u16(sector).u16(x).u16(y).u8(w).u8(h)), nil
}

// NewSelectDisplay creates a SELECT_DISPLAY command (0x09).
func NewSelectDisplay(index int) (*Command, error) {
	if err := CheckByte("display", index); err != nil {
		return nil, err
	}
	return NewCommand(CmdSelectDisplay, payload{}.u8(index)), nil
}

// NewDrawPaletteImage creates a DRAW_PALETTE_IMAGE command (0x0A) for an
// indexed image resident at sector.
func NewDrawPaletteImage(sector, x, y, w, h, paletteSize int) (*Command, error) {
	err := checkAll(
		CheckCoordinate("sector", sector),
		CheckCoordinate("x", x), CheckCoordinate("y", y),
		CheckImageSize(w, h),
		CheckByte("palette", paletteSize),
	)
	if err != nil {
		return nil, err
	}
	p := payload{}.u16(sector).u16(x).u16(y).u8(w).u8(h).u8(paletteSize)
	return NewCommand(CmdDrawPaletteImage, p), nil
}

// NewFillDisplay creates a FILL_DISPLAY command (0x0B).
func NewFillDisplay(color uint16) *Command {
	return NewCommand(CmdFillDisplay, payload{}.u16(int(color)))
}

// NewSetVibrate creates a SET_VIBRATE command (0x0C).
func NewSetVibrate(on bool) *Command {
	v := 0
	if on {
		v = 1
	}
	return NewCommand(CmdSetVibrate, payload{}.u8(v))
}
