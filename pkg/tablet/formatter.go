// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// textPreviewWidth bounds the text shown for WRITE_TEXT commands
const textPreviewWidth = 40

// FormatEvent formats an event into a human-readable line
func FormatEvent(e Event) string {
	timestamp := e.Time().Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (0x%02X) %s\n", timestamp, FormatEventType(e.Opcode()), e.Opcode(), formatEventPayload(e))
}

// FormatEventType returns the human-readable name for an event opcode
func FormatEventType(opcode uint8) string {
	switch opcode {
	case EvtTouchChange:
		return "TOUCH_CHANGE"
	case EvtBatteryData:
		return "BATTERY_DATA"
	case EvtKeyPress:
		return "KEY_PRESS"
	default:
		return "UNKNOWN"
	}
}

func formatEventPayload(e Event) string {
	switch evt := e.(type) {
	case TouchEvent:
		if len(evt.Points) == 0 {
			return "released"
		}
		parts := make([]string, len(evt.Points))
		for i, p := range evt.Points {
			parts[i] = FormatPoint(p)
		}
		return fmt.Sprintf("%d point(s): %s", len(evt.Points), strings.Join(parts, " "))
	case BatteryEvent:
		return fmt.Sprintf("%.2f V, %+.3f A", evt.Voltage, evt.Current)
	case KeyPressEvent:
		return "(no payload)"
	}
	return ""
}

// FormatPoint renders a touch point as (x,y z=pressure)
func FormatPoint(p Point) string {
	return fmt.Sprintf("(%d,%d z=%d)", p.X, p.Y, p.Z)
}

// FormatCommandType returns the human-readable name for a command opcode
func FormatCommandType(opcode uint8) string {
	switch opcode {
	case CmdSetTextCursor:
		return "SET_TEXT_CURSOR"
	case CmdWriteText:
		return "WRITE_TEXT"
	case CmdDrawPixel:
		return "DRAW_PIXEL"
	case CmdFillRect:
		return "FILL_RECT"
	case CmdDrawRect:
		return "DRAW_RECT"
	case CmdSetTextColor:
		return "SET_TEXT_COLOR"
	case CmdWriteVRAM:
		return "WRITE_VRAM"
	case CmdDrawBitmap:
		return "DRAW_BITMAP"
	case CmdSelectDisplay:
		return "SELECT_DISPLAY"
	case CmdDrawPaletteImage:
		return "DRAW_PALETTE_IMAGE"
	case CmdFillDisplay:
		return "FILL_DISPLAY"
	case CmdSetVibrate:
		return "SET_VIBRATE"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand formats a command into a human-readable line
func FormatCommand(c *Command) string {
	return fmt.Sprintf("%s (0x%02X) %s", FormatCommandType(c.opcode), c.opcode, formatCommandPayload(c))
}

func formatCommandPayload(c *Command) string {
	switch c.opcode {
	case CmdSetTextCursor:
		return fmt.Sprintf("x=%d y=%d", c.Uint16(0), c.Uint16(2))
	case CmdWriteText:
		text := strings.ReplaceAll(string(c.Text()), "\n", `\n`)
		return fmt.Sprintf("len=%d %q", c.Byte(0), runewidth.Truncate(text, textPreviewWidth, "…"))
	case CmdDrawPixel:
		return fmt.Sprintf("x=%d y=%d color=%s", c.Uint16(0), c.Uint16(2), FromU16(c.Uint16(4)))
	case CmdFillRect, CmdDrawRect:
		return fmt.Sprintf("(%d,%d)-(%d,%d) color=%s",
			c.Uint16(0), c.Uint16(2), c.Uint16(4), c.Uint16(6), FromU16(c.Uint16(8)))
	case CmdSetTextColor, CmdFillDisplay:
		return fmt.Sprintf("color=%s", FromU16(c.Uint16(0)))
	case CmdWriteVRAM:
		return fmt.Sprintf("sector=%d", c.Uint16(0))
	case CmdDrawBitmap:
		return fmt.Sprintf("sector=%d at (%d,%d) %dx%d",
			c.Uint16(0), c.Uint16(2), c.Uint16(4), c.Byte(6), c.Byte(7))
	case CmdSelectDisplay:
		return fmt.Sprintf("index=%d", c.Byte(0))
	case CmdDrawPaletteImage:
		return fmt.Sprintf("sector=%d at (%d,%d) %dx%d colors=%d",
			c.Uint16(0), c.Uint16(2), c.Uint16(4), c.Byte(6), c.Byte(7), c.Byte(8))
	case CmdSetVibrate:
		if c.Byte(0) != 0 {
			return "on"
		}
		return "off"
	}
	return fmt.Sprintf("% X", c.payload)
}
