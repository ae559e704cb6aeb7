// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import "encoding/binary"

// Command is a single host → peripheral frame
type Command struct {
	opcode  uint8
	payload []byte
}

// NewCommand creates a command from a raw opcode and payload. The builder
// functions in commands.go should be preferred; they validate arguments.
func NewCommand(opcode uint8, payload []byte) *Command {
	return &Command{opcode: opcode, payload: payload}
}

// Opcode returns the command's opcode
func (c *Command) Opcode() uint8 {
	return c.opcode
}

// Payload returns the bytes following the opcode
func (c *Command) Payload() []byte {
	return c.payload
}

// Len returns the encoded size of the command
func (c *Command) Len() int {
	return 1 + len(c.payload)
}

// Uint16 reads the big-endian word at payload offset off.
// Returns 0 if the payload is too short.
func (c *Command) Uint16(off int) uint16 {
	if off < 0 || off+2 > len(c.payload) {
		return 0
	}
	return binary.BigEndian.Uint16(c.payload[off:])
}

// Byte reads the payload byte at offset off, or 0 if out of range
func (c *Command) Byte(off int) uint8 {
	if off < 0 || off >= len(c.payload) {
		return 0
	}
	return c.payload[off]
}

// Words returns the payload of a write-vram command as 16-bit words,
// skipping the sector field. Returns nil for other opcodes.
func (c *Command) Words() []uint16 {
	if c.opcode != CmdWriteVRAM || len(c.payload) < 2 {
		return nil
	}
	data := c.payload[2:]
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return words
}

// Text returns the text carried by a write-text command
func (c *Command) Text() []byte {
	if c.opcode != CmdWriteText || len(c.payload) < 1 {
		return nil
	}
	n := int(c.payload[0])
	if n > len(c.payload)-1 {
		n = len(c.payload) - 1
	}
	return c.payload[1 : 1+n]
}
