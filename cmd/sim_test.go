// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/emulator"
	"github.com/ntios/peripherald/pkg/tablet"
	"github.com/ntios/peripherald/pkg/touch"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

// touchSim holds one finger at (x, y) for hold, then lifts it
func touchSim(classifier *touch.Classifier, x, y int, hold time.Duration) {
	start := time.Now()
	p := []tablet.Point{{X: uint16(x), Y: uint16(y), Z: 100}}
	classifier.Update(p, start)
	classifier.Update(p, start.Add(hold))
	classifier.Update(nil, start.Add(hold))
}

func TestSimClassifier_ClickRedrawsButton(t *testing.T) {
	buf := captureLog(t)
	emu := emulator.New(800, 480, 64)
	dev := device.New(emu, device.Config{})

	r := simButtonRect
	before := emu.At(0, r.Min.X+2, r.Min.Y+2)
	touchSim(newSimClassifier(dev.Display(0)), r.Min.X+10, r.Min.Y+10, 50*time.Millisecond)

	if got := emu.At(0, r.Min.X+2, r.Min.Y+2); got == before {
		t.Errorf("button pixel unchanged after click: %v", got)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %q", buf.String())
	}
}

func TestSimClassifier_LogsDrawErrors(t *testing.T) {
	tests := []struct {
		name string
		x, y int
		hold time.Duration
		want string
	}{
		{"click on button", simButtonRect.Min.X + 10, simButtonRect.Min.Y + 10, 50 * time.Millisecond, "Failed to redraw button"},
		{"drag on canvas", simCanvasRect.Min.X + 10, simCanvasRect.Min.Y + 10, time.Second, "Failed to draw stroke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			emu := emulator.New(800, 480, 64)
			dev := device.New(emu, device.Config{})
			classifier := newSimClassifier(dev.Display(0))
			emu.Close()

			touchSim(classifier, tt.x, tt.y, tt.hold)

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("log = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestRunSteps_StopsAtFirstError(t *testing.T) {
	errBoom := errors.New("boom")
	var ran []int
	err := runSteps([]func() error{
		func() error { ran = append(ran, 1); return nil },
		func() error { ran = append(ran, 2); return errBoom },
		func() error { ran = append(ran, 3); return nil },
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("runSteps() error = %v, want %v", err, errBoom)
	}
	if len(ran) != 2 {
		t.Errorf("ran steps %v, want [1 2]", ran)
	}
}
