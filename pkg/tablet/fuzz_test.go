// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"math/rand"
	"os"
	"reflect"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomEventStream builds a stream of random valid frames mixed with stray
// unknown-opcode bytes
func randomEventStream(rng *rand.Rand) []byte {
	var stream []byte
	frames := 1 + rng.Intn(20)
	for i := 0; i < frames; i++ {
		switch rng.Intn(4) {
		case 0:
			points := make([]Point, rng.Intn(6))
			for j := range points {
				points[j] = Point{X: uint16(rng.Intn(800)), Y: uint16(rng.Intn(480)), Z: uint16(rng.Intn(1024))}
			}
			stream = append(stream, EncodeTouch(points...)...)
		case 1:
			stream = append(stream, EncodeBattery(rng.Float64()*5, rng.Float64()*4-2)...)
		case 2:
			stream = append(stream, EvtKeyPress)
		case 3:
			stream = append(stream, byte(0x10+rng.Intn(0xE0)))
		}
	}
	return stream
}

// stripTimes zeroes event timestamps so decoded sequences can be compared
func stripTimes(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		switch evt := e.(type) {
		case TouchEvent:
			evt.Timestamp = time.Time{}
			if len(evt.Points) == 0 {
				evt.Points = nil
			}
			out[i] = evt
		case BatteryEvent:
			evt.Timestamp = time.Time{}
			out[i] = evt
		case KeyPressEvent:
			out[i] = KeyPressEvent{}
		}
	}
	return out
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

func TestFuzz_ChunkBoundaryIndependence(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		stream := randomEventStream(rng)
		whole := stripTimes(NewDecoder().Feed(stream))

		d := NewDecoder()
		var chunked []Event
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(len(rest))
			chunked = append(chunked, d.Feed(rest[:n])...)
			rest = rest[n:]
		}

		if !reflect.DeepEqual(whole, stripTimes(chunked)) {
			t.Fatalf("Round %d: chunked decode differs from whole decode\nstream: % X", round, stream)
		}
		if d.Buffered() != 0 {
			t.Fatalf("Round %d: %d bytes left buffered", round, d.Buffered())
		}
	}
}

func TestFuzz_RandomBytesNeverPanic(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	d := NewDecoder()
	for round := 0; round < rounds; round++ {
		chunk := make([]byte, rng.Intn(64))
		rng.Read(chunk)
		d.Feed(chunk)

		// A touch header can claim at most 255 points
		if d.Buffered() > touchHeaderSize+touchPointSize*255 {
			t.Fatalf("Round %d: buffer grew to %d bytes", round, d.Buffered())
		}
	}
}

func TestFuzz_CommandStreamRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	enc := NewEncoder()

	for round := 0; round < rounds; round++ {
		var sent []*Command
		count := 1 + rng.Intn(10)
		for i := 0; i < count; i++ {
			var c *Command
			switch rng.Intn(4) {
			case 0:
				c, _ = NewDrawPixel(rng.Intn(800), rng.Intn(480), uint16(rng.Intn(0x10000)))
			case 1:
				text := make([]byte, rng.Intn(MaxTextChunk+1))
				rng.Read(text)
				c, _ = NewWriteText(text)
			case 2:
				c, _ = NewWriteVRAM(rng.Intn(TotalSectors), make([]uint16, SectorWords))
			case 3:
				c = NewSetVibrate(rng.Intn(2) == 1)
			}
			sent = append(sent, c)
		}

		stream := enc.EncodeAll(sent...)
		d := NewCommandDecoder()
		var got []*Command
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(len(rest))
			got = append(got, d.Feed(rest[:n])...)
			rest = rest[n:]
		}

		if len(got) != len(sent) {
			t.Fatalf("Round %d: sent %d commands, decoded %d", round, len(sent), len(got))
		}
		for i := range sent {
			if !reflect.DeepEqual(EncodeCommand(sent[i]), EncodeCommand(got[i])) {
				t.Fatalf("Round %d: command %d differs", round, i)
			}
		}
	}
}
