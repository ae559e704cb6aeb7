// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

// CommandDecoder is the peripheral-side counterpart of Decoder: it frames the
// host → peripheral command stream. It follows the same rules, keeping
// partial frames buffered and skipping one byte on an unknown opcode.
type CommandDecoder struct {
	buffer  []byte
	skipped uint64
}

// NewCommandDecoder creates a new command stream decoder
func NewCommandDecoder() *CommandDecoder {
	return &CommandDecoder{}
}

// Buffered returns the number of bytes held for an incomplete frame
func (d *CommandDecoder) Buffered() int {
	return len(d.buffer)
}

// Skipped returns how many bytes were discarded as unknown opcodes
func (d *CommandDecoder) Skipped() uint64 {
	return d.skipped
}

// Feed appends chunk and returns every command that is now complete
func (d *CommandDecoder) Feed(chunk []byte) []*Command {
	d.buffer = append(d.buffer, chunk...)

	var cmds []*Command
	consumed := 0
	for consumed < len(d.buffer) {
		buf := d.buffer[consumed:]
		var lengthByte uint8
		if buf[0] == CmdWriteText {
			if len(buf) < 2 {
				break
			}
			lengthByte = buf[1]
		}
		size, ok := CommandSize(buf[0], lengthByte)
		if !ok {
			d.skipped++
			consumed++
			continue
		}
		if len(buf) < size {
			break
		}
		payload := make([]byte, size-1)
		copy(payload, buf[1:size])
		cmds = append(cmds, NewCommand(buf[0], payload))
		consumed += size
	}

	n := copy(d.buffer, d.buffer[consumed:])
	d.buffer = d.buffer[:n]

	return cmds
}
