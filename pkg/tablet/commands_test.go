// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func mustCommand(t *testing.T) func(*Command, error) *Command {
	return func(c *Command, err error) *Command {
		t.Helper()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		return c
	}
}

func TestCommandEncoding(t *testing.T) {
	must := mustCommand(t)
	tests := []struct {
		name     string
		cmd      *Command
		expected []byte
	}{
		{
			name:     "set text cursor",
			cmd:      must(NewSetTextCursor(0x0102, 0x0304)),
			expected: []byte{0x01, 0x01, 0x02, 0x03, 0x04},
		},
		{
			name:     "write text",
			cmd:      must(NewWriteText([]byte("hi"))),
			expected: []byte{0x02, 0x02, 'h', 'i'},
		},
		{
			name:     "draw pixel",
			cmd:      must(NewDrawPixel(10, 20, 0xF800)),
			expected: []byte{0x03, 0x00, 0x0A, 0x00, 0x14, 0xF8, 0x00},
		},
		{
			name:     "fill rect",
			cmd:      must(NewFillRect(1, 2, 300, 400, 0x07E0)),
			expected: []byte{0x04, 0x00, 0x01, 0x00, 0x02, 0x01, 0x2C, 0x01, 0x90, 0x07, 0xE0},
		},
		{
			name:     "draw rect",
			cmd:      must(NewDrawRect(0, 0, 799, 479, 0xFFFF)),
			expected: []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x03, 0x1F, 0x01, 0xDF, 0xFF, 0xFF},
		},
		{
			name:     "set text color",
			cmd:      NewSetTextColor(0x1234),
			expected: []byte{0x06, 0x12, 0x34},
		},
		{
			name:     "draw bitmap",
			cmd:      must(NewDrawBitmap(0x0203, 15, 16, 96, 97)),
			expected: []byte{0x08, 0x02, 0x03, 0x00, 0x0F, 0x00, 0x10, 96, 97},
		},
		{
			name:     "select display",
			cmd:      must(NewSelectDisplay(1)),
			expected: []byte{0x09, 0x01},
		},
		{
			name:     "draw palette image",
			cmd:      must(NewDrawPaletteImage(4, 5, 6, 7, 8, 16)),
			expected: []byte{0x0A, 0x00, 0x04, 0x00, 0x05, 0x00, 0x06, 7, 8, 16},
		},
		{
			name:     "fill display",
			cmd:      NewFillDisplay(0xABCD),
			expected: []byte{0x0B, 0xAB, 0xCD},
		},
		{
			name:     "vibrate on",
			cmd:      NewSetVibrate(true),
			expected: []byte{0x0C, 0x01},
		},
		{
			name:     "vibrate off",
			cmd:      NewSetVibrate(false),
			expected: []byte{0x0C, 0x00},
		},
	}

	enc := NewEncoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := enc.Encode(tt.cmd)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Encode = % X, want % X", got, tt.expected)
			}
			lengthByte := uint8(0)
			if len(got) > 1 {
				lengthByte = got[1]
			}
			if size, ok := CommandSize(got[0], lengthByte); !ok || size != len(got) {
				t.Errorf("CommandSize = %d, %v; encoded %d bytes", size, ok, len(got))
			}
		})
	}
}

func TestWriteVRAM(t *testing.T) {
	words := make([]uint16, SectorWords)
	words[0] = 0xBEEF
	words[SectorWords-1] = 0x0102

	cmd, err := NewWriteVRAM(7, words)
	if err != nil {
		t.Fatalf("NewWriteVRAM: %v", err)
	}
	wire := EncodeCommand(cmd)
	if len(wire) != 3+SectorBytes {
		t.Fatalf("Expected %d bytes, got %d", 3+SectorBytes, len(wire))
	}
	if !bytes.Equal(wire[:5], []byte{CmdWriteVRAM, 0x00, 0x07, 0xBE, 0xEF}) {
		t.Errorf("Header = % X", wire[:5])
	}
	if !bytes.Equal(wire[len(wire)-2:], []byte{0x01, 0x02}) {
		t.Errorf("Tail = % X", wire[len(wire)-2:])
	}

	back := cmd.Words()
	if len(back) != SectorWords || back[0] != 0xBEEF || back[SectorWords-1] != 0x0102 {
		t.Errorf("Words() did not round trip")
	}
}

func TestWriteVRAM_WrongSize(t *testing.T) {
	for _, n := range []int{0, 1, SectorWords - 1, SectorWords + 1} {
		_, err := NewWriteVRAM(0, make([]uint16, n))
		if !errors.Is(err, ErrPayloadSize) {
			t.Errorf("len=%d: expected ErrPayloadSize, got %v", n, err)
		}
	}
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"cursor x negative", second(NewSetTextCursor(-1, 0)), ErrOutOfRange},
		{"cursor y too big", second(NewSetTextCursor(0, 0x10000)), ErrOutOfRange},
		{"pixel out of range", second(NewDrawPixel(70000, 0, 0)), ErrOutOfRange},
		{"rect corner", second(NewFillRect(0, 0, 0, -5, 0)), ErrOutOfRange},
		{"bitmap too wide", second(NewDrawBitmap(0, 0, 0, 256, 1)), ErrImageTooLarge},
		{"palette byte", second(NewDrawPaletteImage(0, 0, 0, 1, 1, 300)), ErrOutOfRange},
		{"display index", second(NewSelectDisplay(256)), ErrOutOfRange},
		{"text chunk", second(NewWriteText(make([]byte, 256))), ErrPayloadSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, tt.err)
			}
		})
	}
}

func second(_ *Command, err error) error {
	return err
}

func TestWriteTextCommands_Split(t *testing.T) {
	tests := []struct {
		name   string
		length int
		chunks []int
	}{
		{"empty", 0, nil},
		{"short", 10, []int{10}},
		{"exact", 255, []int{255}},
		{"one over", 256, []int{255, 1}},
		{"long", 600, []int{255, 255, 90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := []byte(strings.Repeat("abcdefghij", 60)[:tt.length])
			cmds := WriteTextCommands(text)
			if len(cmds) != len(tt.chunks) {
				t.Fatalf("Expected %d commands, got %d", len(tt.chunks), len(cmds))
			}
			var joined []byte
			for i, c := range cmds {
				if int(c.Byte(0)) != tt.chunks[i] {
					t.Errorf("Chunk %d length byte = %d, want %d", i, c.Byte(0), tt.chunks[i])
				}
				joined = append(joined, c.Text()...)
			}
			if !bytes.Equal(joined, text) {
				t.Error("Chunks do not reassemble to the original text")
			}
		})
	}
}

func TestCommandDecoder_SplitWrites(t *testing.T) {
	must := mustCommand(t)
	enc := NewEncoder()
	words := make([]uint16, SectorWords)
	stream := enc.EncodeAll(
		must(NewSetTextCursor(1, 2)),
		must(NewWriteText([]byte("hello"))),
		must(NewWriteVRAM(3, words)),
		NewFillDisplay(0),
	)

	d := NewCommandDecoder()
	var got []*Command
	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		got = append(got, d.Feed(stream[i:end])...)
	}

	want := []uint8{CmdSetTextCursor, CmdWriteText, CmdWriteVRAM, CmdFillDisplay}
	if len(got) != len(want) {
		t.Fatalf("Expected %d commands, got %d", len(want), len(got))
	}
	for i, op := range want {
		if got[i].Opcode() != op {
			t.Errorf("Command %d = %s, want %s", i, FormatCommandType(got[i].Opcode()), FormatCommandType(op))
		}
	}
	if string(got[1].Text()) != "hello" {
		t.Errorf("Text = %q", got[1].Text())
	}
	if d.Buffered() != 0 {
		t.Errorf("Expected empty buffer, got %d", d.Buffered())
	}
}

func TestCommandDecoder_Resync(t *testing.T) {
	d := NewCommandDecoder()
	cmds := d.Feed([]byte{0xFF, 0x00, CmdSetVibrate, 0x01})
	if len(cmds) != 1 || cmds[0].Opcode() != CmdSetVibrate {
		t.Fatalf("Expected one SET_VIBRATE, got %v", cmds)
	}
	if d.Skipped() != 2 {
		t.Errorf("Expected 2 skipped bytes, got %d", d.Skipped())
	}
}

func TestFormatCommand(t *testing.T) {
	c, _ := NewWriteText([]byte("line one\nline two"))
	s := FormatCommand(c)
	if !strings.HasPrefix(s, "WRITE_TEXT (0x02)") || !strings.Contains(s, `line one\\nline two`) {
		t.Errorf("Unexpected format: %s", s)
	}

	long, _ := NewWriteText([]byte(strings.Repeat("y", 100)))
	if strings.Count(FormatCommand(long), "y") > textPreviewWidth {
		t.Error("Text preview should be truncated")
	}
}

func TestFormatEvent(t *testing.T) {
	events := NewDecoder().Feed(twoPointTouch)
	s := FormatEvent(events[0])
	if !strings.Contains(s, "TOUCH_CHANGE") || !strings.Contains(s, "(300,200 z=500)") {
		t.Errorf("Unexpected format: %s", s)
	}
}
