// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

// Encoder encodes commands for transmission.
// Encoding is pure: no buffering, nothing is written anywhere.
type Encoder struct{}

// NewEncoder creates a new command encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a Command to wire format.
func (e *Encoder) Encode(c *Command) []byte {
	return EncodeCommand(c)
}

// EncodeAll concatenates the wire format of several commands, in order.
func (e *Encoder) EncodeAll(cmds ...*Command) []byte {
	size := 0
	for _, c := range cmds {
		size += c.Len()
	}
	out := make([]byte, 0, size)
	for _, c := range cmds {
		out = append(out, c.opcode)
		out = append(out, c.payload...)
	}
	return out
}

// EncodeCommand creates the wire bytes for a single command: the opcode
// followed by the payload.
func EncodeCommand(c *Command) []byte {
	out := make([]byte, 0, c.Len())
	out = append(out, c.opcode)
	return append(out, c.payload...)
}
