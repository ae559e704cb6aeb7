// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import "time"

// Decoder turns the inbound byte stream into events. Bytes may arrive in
// arbitrarily sized chunks; an incomplete frame is kept until the rest of it
// arrives, so the events produced never depend on chunk boundaries.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buffer  []byte
	skipped uint64
	now     func() time.Time
}

// NewDecoder creates a new event decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buffer: make([]byte, 0, 64),
		now:    time.Now,
	}
}

// Reset discards any buffered partial frame
func (d *Decoder) Reset() {
	d.buffer = d.buffer[:0]
}

// Buffered returns the number of bytes waiting for the rest of their frame
func (d *Decoder) Buffered() int {
	return len(d.buffer)
}

// Skipped returns how many bytes were discarded as unknown opcodes
func (d *Decoder) Skipped() uint64 {
	return d.skipped
}

// Feed appends chunk to the internal buffer and returns every event that is
// now complete, in stream order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buffer = append(d.buffer, chunk...)

	var events []Event
	consumed := 0
	for consumed < len(d.buffer) {
		evt, size := d.decodeFrame(d.buffer[consumed:])
		if size == 0 {
			// Partial frame, wait for more bytes
			break
		}
		consumed += size
		if evt != nil {
			events = append(events, evt)
		}
	}

	// Shift the remainder to the front so the buffer does not grow forever
	n := copy(d.buffer, d.buffer[consumed:])
	d.buffer = d.buffer[:n]

	return events
}

// decodeFrame decodes the frame at the head of buf. It returns the number of
// bytes consumed, or 0 if the frame is not complete yet. A nil event with a
// non-zero size means bytes were skipped.
func (d *Decoder) decodeFrame(buf []byte) (Event, int) {
	switch buf[0] {
	case EvtBatteryData:
		if len(buf) < batteryFrameSize {
			return nil, 0
		}
		voltage := uint16(buf[1])<<8 | uint16(buf[2])
		current := int16(uint16(buf[3])<<8 | uint16(buf[4]))
		return BatteryEvent{
			Voltage:   float64(voltage) / 100,
			Current:   float64(current) / 1000,
			Timestamp: d.now(),
		}, batteryFrameSize

	case EvtTouchChange:
		if len(buf) < touchHeaderSize {
			return nil, 0
		}
		n := int(buf[1])
		size := touchHeaderSize + touchPointSize*n
		if len(buf) < size {
			return nil, 0
		}
		points := make([]Point, n)
		for i := range points {
			off := touchHeaderSize + touchPointSize*i
			points[i] = Point{
				X: uint16(buf[off])<<8 | uint16(buf[off+1]),
				Y: uint16(buf[off+2])<<8 | uint16(buf[off+3]),
				Z: uint16(buf[off+4])<<8 | uint16(buf[off+5]),
			}
		}
		return TouchEvent{Points: points, Timestamp: d.now()}, size

	case EvtKeyPress:
		return KeyPressEvent{Timestamp: d.now()}, keyPressFrameSize

	default:
		d.skipped++
		return nil, unknownEventSkipSize
	}
}
