// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import "time"

// EventKind discriminates the concrete type behind an Event
type EventKind int

const (
	KindTouch EventKind = iota
	KindBattery
	KindKeyPress
)

// Event is a decoded peripheral → host notification. The concrete type is
// one of TouchEvent, BatteryEvent or KeyPressEvent.
type Event interface {
	Kind() EventKind
	Opcode() uint8
	Time() time.Time
}

// Point is one touch contact. Z is the reported pressure.
type Point struct {
	X, Y, Z uint16
}

// TouchEvent reports the complete set of current contacts. An empty Points
// slice means every finger was lifted.
type TouchEvent struct {
	Points    []Point
	Timestamp time.Time
}

func (e TouchEvent) Kind() EventKind { return KindTouch }
func (e TouchEvent) Opcode() uint8   { return EvtTouchChange }
func (e TouchEvent) Time() time.Time { return e.Timestamp }

// BatteryEvent reports battery voltage (volts) and current (amps, negative
// while discharging).
type BatteryEvent struct {
	Voltage   float64
	Current   float64
	Timestamp time.Time
}

func (e BatteryEvent) Kind() EventKind { return KindBattery }
func (e BatteryEvent) Opcode() uint8   { return EvtBatteryData }
func (e BatteryEvent) Time() time.Time { return e.Timestamp }

// KeyPressEvent marks a key-press opcode. The peripheral firmware does not
// define a payload for it yet.
type KeyPressEvent struct {
	Timestamp time.Time
}

func (e KeyPressEvent) Kind() EventKind { return KindKeyPress }
func (e KeyPressEvent) Opcode() uint8   { return EvtKeyPress }
func (e KeyPressEvent) Time() time.Time { return e.Timestamp }

// EncodeTouch builds the wire bytes of a touch-change event. Used by the
// emulator and by tests.
func EncodeTouch(points ...Point) []byte {
	out := make([]byte, 0, touchHeaderSize+touchPointSize*len(points))
	out = append(out, EvtTouchChange, uint8(len(points)))
	for _, p := range points {
		out = append(out,
			uint8(p.X>>8), uint8(p.X),
			uint8(p.Y>>8), uint8(p.Y),
			uint8(p.Z>>8), uint8(p.Z))
	}
	return out
}

// EncodeBattery builds the wire bytes of a battery-data event.
func EncodeBattery(volts, amps float64) []byte {
	v := uint16(volts*100 + 0.5)
	var c int16
	if amps < 0 {
		c = int16(amps*1000 - 0.5)
	} else {
		c = int16(amps*1000 + 0.5)
	}
	return []byte{EvtBatteryData, uint8(v >> 8), uint8(v), uint8(uint16(c) >> 8), uint8(uint16(c))}
}
