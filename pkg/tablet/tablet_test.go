// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"errors"
	"image/color"
	"math"
	"testing"
)

// ============================================================
// Color Tests
// ============================================================

func TestColorRoundTrip_BoundedError(t *testing.T) {
	for r := 0; r < 256; r += 5 {
		for g := 0; g < 256; g += 3 {
			for b := 0; b < 256; b += 7 {
				in := RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
				out := FromU16(ToU16(in))
				if d := int(in.R) - int(out.R); d < 0 || d > 7 {
					t.Fatalf("%s -> %s: red error %d", in, out, d)
				}
				if d := int(in.G) - int(out.G); d < 0 || d > 3 {
					t.Fatalf("%s -> %s: green error %d", in, out, d)
				}
				if d := int(in.B) - int(out.B); d < 0 || d > 7 {
					t.Fatalf("%s -> %s: blue error %d", in, out, d)
				}
			}
		}
	}
}

func TestToU16_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		in       RGB
		expected uint16
	}{
		{"black", RGB{0, 0, 0}, 0x0000},
		{"white", RGB{255, 255, 255}, 0xFFFF},
		{"red", RGB{255, 0, 0}, 0x001F},
		{"green", RGB{0, 255, 0}, 0x07E0},
		{"blue", RGB{0, 0, 255}, 0xF800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToU16(tt.in); got != tt.expected {
				t.Errorf("ToU16(%s) = 0x%04X, want 0x%04X", tt.in, got, tt.expected)
			}
		})
	}
}

func TestRGBFromPacked(t *testing.T) {
	c := RGBFromPacked(0x5050F0)
	if c != (RGB{R: 0xF0, G: 0x50, B: 0x50}) {
		t.Errorf("RGBFromPacked(0x5050F0) = %s", c)
	}
	if c.Packed() != 0x5050F0 {
		t.Errorf("Packed() = 0x%06X, want 0x5050F0", c.Packed())
	}
}

func TestColor565_MatchesToU16(t *testing.T) {
	in := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xFF}
	want := ToU16(RGB{R: 0x12, G: 0x34, B: 0x56})
	if got := Color565(in); got != want {
		t.Errorf("Color565 = 0x%04X, want 0x%04X", got, want)
	}
}

// ============================================================
// Decoder Tests
// ============================================================

// twoPointTouch is a touch-change frame with points (300,200,500) and (800,480,16)
var twoPointTouch = []byte{
	EvtTouchChange, 0x02,
	0x01, 0x2C, 0x00, 0xC8, 0x01, 0xF4,
	0x03, 0x20, 0x01, 0xE0, 0x00, 0x10,
}

func TestDecoder_TouchTwoPoints(t *testing.T) {
	d := NewDecoder()
	events := d.Feed(twoPointTouch)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	touch, ok := events[0].(TouchEvent)
	if !ok {
		t.Fatalf("Expected TouchEvent, got %T", events[0])
	}
	want := []Point{{X: 300, Y: 200, Z: 500}, {X: 800, Y: 480, Z: 16}}
	if len(touch.Points) != len(want) {
		t.Fatalf("Expected %d points, got %d", len(want), len(touch.Points))
	}
	for i := range want {
		if touch.Points[i] != want[i] {
			t.Errorf("Point %d = %v, want %v", i, touch.Points[i], want[i])
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", d.Buffered())
	}
}

func TestDecoder_PartialFrameIsBuffered(t *testing.T) {
	d := NewDecoder()
	short := twoPointTouch[:len(twoPointTouch)-1]

	if events := d.Feed(short); len(events) != 0 {
		t.Fatalf("Expected no events from a partial frame, got %d", len(events))
	}
	if d.Buffered() != len(short) {
		t.Fatalf("Expected %d buffered bytes, got %d", len(short), d.Buffered())
	}

	events := d.Feed(twoPointTouch[len(twoPointTouch)-1:])
	if len(events) != 1 {
		t.Fatalf("Expected 1 event after completing the frame, got %d", len(events))
	}
	if got := events[0].(TouchEvent).Points[1].Z; got != 16 {
		t.Errorf("Expected last pressure 16, got %d", got)
	}
}

func TestDecoder_HeaderOnlyIsBuffered(t *testing.T) {
	d := NewDecoder()
	if events := d.Feed([]byte{EvtTouchChange}); len(events) != 0 {
		t.Fatalf("Expected no events, got %d", len(events))
	}
	if d.Buffered() != 1 {
		t.Errorf("Expected 1 buffered byte, got %d", d.Buffered())
	}
}

func TestDecoder_Release(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte{EvtTouchChange, 0x00})
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if n := len(events[0].(TouchEvent).Points); n != 0 {
		t.Errorf("Expected 0 points, got %d", n)
	}
}

func TestDecoder_Battery(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		voltage float64
		current float64
	}{
		{"discharging", []byte{EvtBatteryData, 0x01, 0x9A, 0xFE, 0x0C}, 4.10, -0.5},
		{"charging", []byte{EvtBatteryData, 0x01, 0xA4, 0x03, 0xE8}, 4.20, 1.0},
		{"most negative", []byte{EvtBatteryData, 0x00, 0x00, 0x80, 0x00}, 0, -32.768},
		{"most positive", []byte{EvtBatteryData, 0xFF, 0xFF, 0x7F, 0xFF}, 655.35, 32.767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewDecoder().Feed(tt.frame)
			if len(events) != 1 {
				t.Fatalf("Expected 1 event, got %d", len(events))
			}
			b := events[0].(BatteryEvent)
			if math.Abs(b.Voltage-tt.voltage) > 1e-9 {
				t.Errorf("Voltage = %v, want %v", b.Voltage, tt.voltage)
			}
			if math.Abs(b.Current-tt.current) > 1e-9 {
				t.Errorf("Current = %v, want %v", b.Current, tt.current)
			}
		})
	}
}

func TestDecoder_UnknownOpcodeSkipsOneByte(t *testing.T) {
	d := NewDecoder()
	stream := append([]byte{0xEE, 0x7F}, EncodeBattery(3.7, 0)...)
	events := d.Feed(stream)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event after resync, got %d", len(events))
	}
	if _, ok := events[0].(BatteryEvent); !ok {
		t.Errorf("Expected BatteryEvent, got %T", events[0])
	}
	if d.Skipped() != 2 {
		t.Errorf("Expected 2 skipped bytes, got %d", d.Skipped())
	}
}

func TestDecoder_KeyPressIsOneByte(t *testing.T) {
	d := NewDecoder()
	events := d.Feed([]byte{EvtKeyPress, EvtTouchChange, 0x00})
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Kind() != KindKeyPress || events[1].Kind() != KindTouch {
		t.Errorf("Unexpected kinds %v, %v", events[0].Kind(), events[1].Kind())
	}
}

func TestDecoder_MultipleFramesOneChunk(t *testing.T) {
	var stream []byte
	stream = append(stream, EncodeTouch(Point{1, 2, 3})...)
	stream = append(stream, EncodeBattery(4.0, -0.25)...)
	stream = append(stream, EncodeTouch()...)

	events := NewDecoder().Feed(stream)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	kinds := []EventKind{KindTouch, KindBattery, KindTouch}
	for i, k := range kinds {
		if events[i].Kind() != k {
			t.Errorf("Event %d kind = %v, want %v", i, events[i].Kind(), k)
		}
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte{EvtBatteryData, 0x01})
	d.Reset()
	if d.Buffered() != 0 {
		t.Errorf("Expected empty buffer after reset, got %d", d.Buffered())
	}
}

func TestEncodeBattery_RoundTrip(t *testing.T) {
	events := NewDecoder().Feed(EncodeBattery(3.85, -1.234))
	b := events[0].(BatteryEvent)
	if math.Abs(b.Voltage-3.85) > 0.005 || math.Abs(b.Current+1.234) > 0.0005 {
		t.Errorf("Got %.3f V %.4f A", b.Voltage, b.Current)
	}
}

// ============================================================
// Validation Tests
// ============================================================

func TestValidationError_Is(t *testing.T) {
	_, err := NewSetTextCursor(-1, 0)
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}
	if errors.Is(err, ErrPayloadSize) {
		t.Error("ErrOutOfRange must not match ErrPayloadSize")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Details["x"] != -1 {
		t.Errorf("Expected details with x=-1, got %+v", verr)
	}
}

func TestCheckImageSize(t *testing.T) {
	tests := []struct {
		w, h int
		ok   bool
	}{
		{1, 1, true},
		{255, 255, true},
		{256, 10, false},
		{10, 256, false},
		{0, 10, false},
	}
	for _, tt := range tests {
		err := CheckImageSize(tt.w, tt.h)
		if (err == nil) != tt.ok {
			t.Errorf("CheckImageSize(%d, %d) = %v", tt.w, tt.h, err)
		}
		if err != nil && !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("Expected ErrImageTooLarge, got %v", err)
		}
	}
}
