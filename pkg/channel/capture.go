// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/atomic"
)

// Direction of a captured chunk relative to the host
type Direction uint8

const (
	Inbound  Direction = 0 // peripheral to host
	Outbound Direction = 1 // host to peripheral
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

// Chunk is one captured read or write, with its original boundaries
type Chunk struct {
	Direction Direction `cbor:"1,keyasint"`
	Timestamp int64     `cbor:"2,keyasint"` // unix nanoseconds
	Data      []byte    `cbor:"3,keyasint"`
}

// Time returns the chunk timestamp
func (c Chunk) Time() time.Time {
	return time.Unix(0, c.Timestamp)
}

// Recorder is a Channel that tees every chunk passing through an inner
// Channel into a CBOR sequence
type Recorder struct {
	inner Channel

	mu  sync.Mutex
	enc *cbor.Encoder
	err error
	now func() time.Time

	chunks atomic.Uint64
}

// NewRecorder records traffic of inner to w
func NewRecorder(inner Channel, w io.Writer) *Recorder {
	return &Recorder{
		inner: inner,
		enc:   cbor.NewEncoder(w),
		now:   time.Now,
	}
}

func (r *Recorder) record(dir Direction, data []byte) {
	if len(data) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	chunk := Chunk{
		Direction: dir,
		Timestamp: r.now().UnixNano(),
		Data:      data,
	}
	if err := r.enc.Encode(chunk); err != nil {
		r.err = fmt.Errorf("failed to record chunk: %w", err)
		return
	}
	r.chunks.Inc()
}

func (r *Recorder) Write(p []byte) error {
	if err := r.inner.Write(p); err != nil {
		return err
	}
	r.record(Outbound, p)
	return nil
}

func (r *Recorder) Available() bool {
	return r.inner.Available()
}

func (r *Recorder) Read() ([]byte, error) {
	data, err := r.inner.Read()
	r.record(Inbound, data)
	return data, err
}

func (r *Recorder) Close() error {
	return r.inner.Close()
}

// Chunks returns the number of chunks recorded
func (r *Recorder) Chunks() uint64 {
	return r.chunks.Load()
}

// Err returns the first error hit while writing the capture
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadCapture decodes every chunk of a CBOR capture
func ReadCapture(r io.Reader) ([]Chunk, error) {
	dec := cbor.NewDecoder(r)
	var chunks []Chunk
	for {
		var c Chunk
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, fmt.Errorf("failed to decode chunk %d: %w", len(chunks), err)
		}
		chunks = append(chunks, c)
	}
}

// Replay is a Channel that plays back the inbound chunks of a capture.
// Writes are discarded and counted. Once drained, Read returns io.EOF.
type Replay struct {
	mu     sync.Mutex
	chunks []Chunk
	next   int
	closed bool

	// Paced releases each chunk only after the time it had in the capture,
	// measured from the first Read
	paced bool
	start time.Time
	base  int64
	now   func() time.Time

	written atomic.Uint64
}

// NewReplay builds a replay of the inbound chunks
func NewReplay(chunks []Chunk, paced bool) *Replay {
	r := &Replay{paced: paced, now: time.Now}
	for _, c := range chunks {
		if c.Direction == Inbound {
			r.chunks = append(r.chunks, c)
		}
	}
	if len(r.chunks) > 0 {
		r.base = r.chunks[0].Timestamp
	}
	return r
}

// OpenReplay reads a capture from r
func OpenReplay(r io.Reader, paced bool) (*Replay, error) {
	chunks, err := ReadCapture(r)
	if err != nil {
		return nil, err
	}
	return NewReplay(chunks, paced), nil
}

// due reports whether the next chunk may be released. Caller holds mu.
func (r *Replay) due() bool {
	if !r.paced {
		return true
	}
	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}
	offset := time.Duration(r.chunks[r.next].Timestamp - r.base)
	return now.Sub(r.start) >= offset
}

func (r *Replay) Write(p []byte) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	r.written.Add(uint64(len(p)))
	return nil
}

func (r *Replay) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.next >= len(r.chunks) {
		return true
	}
	return r.due()
}

func (r *Replay) Read() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if r.next >= len(r.chunks) {
		return nil, io.EOF
	}
	if !r.due() {
		return nil, nil
	}
	data := r.chunks[r.next].Data
	r.next++
	return data, nil
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Remaining returns the number of chunks not yet read
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks) - r.next
}

// BytesWritten returns the number of bytes discarded by Write
func (r *Replay) BytesWritten() uint64 {
	return r.written.Load()
}
