// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package channel

import (
	"io"
	"os"
)

// stdioConnection joins a reader and a writer. On the companion processor
// the peripheral is wired to the login console, so the protocol runs over
// the process's own stdin and stdout.
type stdioConnection struct {
	io.Reader
	io.Writer
}

func (s stdioConnection) Close() error {
	if c, ok := s.Writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewStream pumps an arbitrary reader/writer pair as a Channel
func NewStream(r io.Reader, w io.Writer) *Pump {
	return NewPump(stdioConnection{Reader: r, Writer: w}, 256)
}

// Stdio pumps os.Stdin and os.Stdout as a Channel
func Stdio() *Pump {
	return NewStream(os.Stdin, os.Stdout)
}
