// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package tablet implements the wire protocol spoken between the host and the
// NTIOS touchscreen peripheral.
//
// Commands flow host → peripheral as an opcode byte followed by a fixed or
// length-prefixed big-endian payload. Events flow peripheral → host as an
// opcode byte followed by a payload whose size is known from the opcode (and,
// for touch changes, from an explicit point count). There is no framing byte
// and no checksum: the decoder resynchronises by discarding one byte whenever
// it meets an opcode it does not know.
package tablet

// Command opcodes (host → peripheral)
const (
	CmdSetTextCursor    = 0x01
	CmdWriteText        = 0x02
	CmdDrawPixel        = 0x03
	CmdFillRect         = 0x04
	CmdDrawRect         = 0x05
	CmdSetTextColor     = 0x06
	CmdWriteVRAM        = 0x07
	CmdDrawBitmap       = 0x08
	CmdSelectDisplay    = 0x09
	CmdDrawPaletteImage = 0x0A
	CmdFillDisplay      = 0x0B
	CmdSetVibrate       = 0x0C
)

// Event opcodes (peripheral → host)
const (
	EvtTouchChange = 0x01
	EvtBatteryData = 0x02
	EvtKeyPress    = 0x03
)

// VRAM geometry
const (
	SectorWords  = 256
	SectorBytes  = SectorWords * 2
	TotalSectors = 1024
)

// Payload limits
const (
	MaxTextChunk     = 255
	MaxImageSize     = 255
	MaxPaletteColors = 16
	MaxCoordinate    = 0xFFFF
)

// Event payload sizes, opcode byte included
const (
	batteryFrameSize     = 5
	touchHeaderSize      = 2
	touchPointSize       = 6
	keyPressFrameSize    = 1
	unknownEventSkipSize = 1
)

// commandSizes lists the total encoded size (opcode included) of every
// fixed-size command. Write-text is length-prefixed and absent here.
var commandSizes = map[uint8]int{
	CmdSetTextCursor:    5,
	CmdDrawPixel:        7,
	CmdFillRect:         11,
	CmdDrawRect:         11,
	CmdSetTextColor:     3,
	CmdWriteVRAM:        3 + SectorBytes,
	CmdDrawBitmap:       9,
	CmdSelectDisplay:    2,
	CmdDrawPaletteImage: 10,
	CmdFillDisplay:      3,
	CmdSetVibrate:       2,
}

// CommandSize returns the encoded size of a command frame given its opcode
// and, for write-text, its length byte. ok is false for unknown opcodes.
func CommandSize(opcode uint8, lengthByte uint8) (size int, ok bool) {
	if opcode == CmdWriteText {
		return 2 + int(lengthByte), true
	}
	size, ok = commandSizes[opcode]
	return size, ok
}
