// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package channel provides the byte channels that connect the host to the
// peripheral: a serial port, a WebSocket bridge, the process's own stdio when
// running on the companion processor, and recorded captures.
package channel

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/atomic"
)

// ErrClosed is returned by operations on a closed channel
var ErrClosed = errors.New("channel closed")

// Channel is a polled, byte-oriented link to the peripheral.
//
// Write must preserve byte order and deliver each call as written. Available
// and Read never block: Read returns whatever has arrived since the last
// call, in any chunking, possibly nothing.
type Channel interface {
	Write(p []byte) error
	Available() bool
	Read() ([]byte, error)
	Close() error
}

// Pump adapts a blocking io.ReadWriteCloser into a Channel. A background
// goroutine reads into a buffer that Read drains.
type Pump struct {
	rwc io.ReadWriteCloser

	mu     sync.Mutex
	buf    []byte
	err    error
	closed atomic.Bool
	done   chan struct{}

	bytesIn  atomic.Uint64
	bytesOut atomic.Uint64
}

// NewPump starts pumping rwc. readSize bounds a single read from rwc.
func NewPump(rwc io.ReadWriteCloser, readSize int) *Pump {
	if readSize <= 0 {
		readSize = 128
	}
	p := &Pump{
		rwc:  rwc,
		done: make(chan struct{}),
	}
	go p.readLoop(readSize)
	return p
}

func (p *Pump) readLoop(readSize int) {
	defer close(p.done)
	buf := make([]byte, readSize)
	for {
		n, err := p.rwc.Read(buf)
		if n > 0 {
			p.bytesIn.Add(uint64(n))
			p.mu.Lock()
			p.buf = append(p.buf, buf[:n]...)
			p.mu.Unlock()
		}
		if err != nil {
			if p.closed.Load() {
				err = ErrClosed
			}
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return
		}
	}
}

// Write sends p in a single write
func (p *Pump) Write(b []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	n, err := p.rwc.Write(b)
	p.bytesOut.Add(uint64(n))
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// Available reports whether Read has bytes or an error to return
func (p *Pump) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf) > 0 || p.err != nil
}

// Read returns the buffered bytes. Once the buffer is drained, the error
// that stopped the reader is returned.
func (p *Pump) Read() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) > 0 {
		data := p.buf
		p.buf = nil
		return data, nil
	}
	return nil, p.err
}

// Close closes the underlying connection. The reader goroutine stops once
// the pending read returns; Done is closed when it has.
func (p *Pump) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.rwc.Close()
}

// Done is closed when the background reader has stopped
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// BytesIn returns the number of bytes received so far
func (p *Pump) BytesIn() uint64 {
	return p.bytesIn.Load()
}

// BytesOut returns the number of bytes written so far
func (p *Pump) BytesOut() uint64 {
	return p.bytesOut.Load()
}
