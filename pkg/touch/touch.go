// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package touch turns the raw touch samples reported by the peripheral into
// press, release, click and drag callbacks.
//
// The classifier has no timer of its own. The caller's poll loop hands it the
// current sample list and the current time on every tick.
package touch

import (
	"image"
	"time"

	"github.com/ntios/peripherald/pkg/tablet"
)

// DefaultCutoff separates a tap from a drag
const DefaultCutoff = 500 * time.Millisecond

// Handler receives the gestures of one target. Callbacks run synchronously
// inside Update and may draw.
type Handler interface {
	OnPress(p tablet.Point)
	OnRelease(p tablet.Point)
	OnClick(p tablet.Point)
	OnDrag(from, to tablet.Point)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Press   func(p tablet.Point)
	Release func(p tablet.Point)
	Click   func(p tablet.Point)
	Drag    func(from, to tablet.Point)
}

func (h HandlerFuncs) OnPress(p tablet.Point) {
	if h.Press != nil {
		h.Press(p)
	}
}

func (h HandlerFuncs) OnRelease(p tablet.Point) {
	if h.Release != nil {
		h.Release(p)
	}
}

func (h HandlerFuncs) OnClick(p tablet.Point) {
	if h.Click != nil {
		h.Click(p)
	}
}

func (h HandlerFuncs) OnDrag(from, to tablet.Point) {
	if h.Drag != nil {
		h.Drag(from, to)
	}
}

// state of one target
type state int

const (
	idle state = iota
	pressed
	dragging
)

func (s state) String() string {
	switch s {
	case pressed:
		return "pressed"
	case dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Target is a region of the screen with its own press state. An empty
// Bounds covers the whole screen. A press only starts when a single new
// touch lands inside Bounds; once started it is followed anywhere until
// release.
type Target struct {
	Bounds  image.Rectangle
	Handler Handler

	state state
	start time.Time
	last  tablet.Point
	count int // samples seen on the previous tick
}

// Pressed reports whether the target is between press and release
func (t *Target) Pressed() bool {
	return t.state != idle
}

// Dragging reports whether the press has outlasted the cutoff
func (t *Target) Dragging() bool {
	return t.state == dragging
}

func (t *Target) contains(p tablet.Point) bool {
	if t.Bounds.Empty() {
		return true
	}
	return image.Pt(int(p.X), int(p.Y)).In(t.Bounds)
}

// Cancel drops an ongoing press without firing release or click
func (t *Target) Cancel() {
	t.state = idle
}

func (t *Target) update(points []tablet.Point, now time.Time, cutoff time.Duration) {
	prev := t.count
	t.count = len(points)

	switch {
	case len(points) >= 2:
		t.state = idle

	case len(points) == 1:
		p := points[0]
		switch t.state {
		case idle:
			// A finger sliding in from elsewhere is not a new touch
			if prev == 1 || !t.contains(p) {
				return
			}
			t.state = pressed
			t.start = now
			t.last = p
			t.Handler.OnPress(p)
		case pressed:
			if now.Sub(t.start) <= cutoff {
				t.last = p
				return
			}
			t.state = dragging
			fallthrough
		case dragging:
			from := t.last
			t.last = p
			t.Handler.OnDrag(from, p)
		}

	default:
		if t.state == idle {
			return
		}
		held := now.Sub(t.start)
		t.state = idle
		t.Handler.OnRelease(t.last)
		if held <= cutoff {
			t.Handler.OnClick(t.last)
		}
	}
}

// Option configures a Classifier
type Option func(*Classifier)

// WithCutoff sets the tap/drag cutoff
func WithCutoff(d time.Duration) Option {
	return func(c *Classifier) {
		c.cutoff = d
	}
}

// Classifier dispatches touch samples to its targets
type Classifier struct {
	cutoff  time.Duration
	targets []*Target
}

// NewClassifier creates a classifier with no targets
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{cutoff: DefaultCutoff}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cutoff returns the tap/drag cutoff
func (c *Classifier) Cutoff() time.Duration {
	return c.cutoff
}

// Add registers a handler for bounds and returns its target
func (c *Classifier) Add(bounds image.Rectangle, h Handler) *Target {
	t := &Target{Bounds: bounds, Handler: h}
	c.targets = append(c.targets, t)
	return t
}

// Remove unregisters a target. An ongoing press is dropped silently.
func (c *Classifier) Remove(t *Target) bool {
	for i, other := range c.targets {
		if other == t {
			c.targets = append(c.targets[:i], c.targets[i+1:]...)
			return true
		}
	}
	return false
}

// Targets returns the registered targets in registration order
func (c *Classifier) Targets() []*Target {
	return append([]*Target(nil), c.targets...)
}

// Update evaluates every target once against the current samples. Targets
// registered or removed by a callback take effect on the next tick.
func (c *Classifier) Update(points []tablet.Point, now time.Time) {
	for _, t := range c.Targets() {
		t.update(points, now, c.cutoff)
	}
}
