// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package emulator is a headless stand-in for the touchscreen peripheral.
//
// An Emulator is a channel.Channel: frames written by the host are decoded
// and rendered into in-memory framebuffers, and touch, battery and key
// events queued by the caller are handed back on Read.
package emulator

import (
	"image"
	"image/color"
	"image/draw"
	"log"
	"sync"
	"time"

	"github.com/disintegration/gift"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/tablet"
)

// Text metrics of the peripheral's built-in font
const (
	CharAdvance = 8
	LineHeight  = 12
)

// DefaultTouchPressure is the z value used by Tap
const DefaultTouchPressure = 500

// Emulator renders the command stream of one peripheral
type Emulator struct {
	mu sync.Mutex

	width   int
	height  int
	screens map[int]*image.RGBA
	current int
	vram    []uint16
	decoder *tablet.CommandDecoder

	cursor    image.Point
	textColor color.RGBA
	vibrating bool

	out    []byte
	closed bool
	stats  map[uint8]uint64
	faults uint64

	// Trace, when set, logs every decoded command
	Trace *log.Logger

	// BytesPerMillisecond, when positive, makes Write take time in
	// proportion to its size like a real serial link
	BytesPerMillisecond int
}

var _ channel.Channel = (*Emulator)(nil)

// New creates an emulator with black screens and zeroed VRAM
func New(width, height, sectors int) *Emulator {
	return &Emulator{
		width:     width,
		height:    height,
		screens:   make(map[int]*image.RGBA),
		vram:      make([]uint16, sectors*tablet.SectorWords),
		decoder:   tablet.NewCommandDecoder(),
		textColor: color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		stats:     make(map[uint8]uint64),
	}
}

func (e *Emulator) screen(index int) *image.RGBA {
	s, ok := e.screens[index]
	if !ok {
		s = image.NewRGBA(image.Rect(0, 0, e.width, e.height))
		draw.Draw(s, s.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
		e.screens[index] = s
	}
	return s
}

// Write decodes and renders the frames in p. Frames may span writes.
func (e *Emulator) Write(p []byte) error {
	if e.BytesPerMillisecond > 0 {
		time.Sleep(time.Duration(len(p)) * time.Millisecond / time.Duration(e.BytesPerMillisecond))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return channel.ErrClosed
	}
	for _, cmd := range e.decoder.Feed(p) {
		if e.Trace != nil {
			e.Trace.Printf("<- %s", tablet.FormatCommand(cmd))
		}
		e.stats[cmd.Opcode()]++
		e.apply(cmd)
	}
	return nil
}

// Available reports whether events are queued
func (e *Emulator) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.out) > 0 || e.closed
}

// Read returns every queued event byte
func (e *Emulator) Read() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, channel.ErrClosed
	}
	data := e.out
	e.out = nil
	return data, nil
}

// Close stops the emulator; later reads and writes fail
func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Inject queues raw bytes for the host to read
func (e *Emulator) Inject(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = append(e.out, data...)
}

// Touch queues a touch-change event with the given points
func (e *Emulator) Touch(points ...tablet.Point) {
	e.Inject(tablet.EncodeTouch(points...))
}

// Tap queues a single-finger touch at (x, y)
func (e *Emulator) Tap(x, y int) {
	e.Touch(tablet.Point{X: uint16(x), Y: uint16(y), Z: DefaultTouchPressure})
}

// Release queues a touch-change event with no points
func (e *Emulator) Release() {
	e.Touch()
}

// Battery queues a battery report
func (e *Emulator) Battery(volts, amps float64) {
	e.Inject(tablet.EncodeBattery(volts, amps))
}

// KeyPress queues a key-press event
func (e *Emulator) KeyPress() {
	e.Inject([]byte{tablet.EvtKeyPress})
}

// Screen returns a copy of the framebuffer of display index
func (e *Emulator) Screen(index int) *image.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	src := e.screen(index)
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

// Snapshot returns display index scaled up by an integer factor with
// nearest-neighbour sampling
func (e *Emulator) Snapshot(index, scale int) image.Image {
	img := e.Screen(index)
	if scale <= 1 {
		return img
	}
	b := img.Bounds()
	g := gift.New(gift.Resize(b.Dx()*scale, b.Dy()*scale, gift.NearestNeighborResampling))
	dst := image.NewRGBA(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}

// At returns the color of one pixel on display index
func (e *Emulator) At(index, x, y int) color.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.screen(index).RGBAAt(x, y)
}

// Sector returns a copy of one VRAM sector
func (e *Emulator) Sector(sector int) []uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	base := sector * tablet.SectorWords
	if sector < 0 || base >= len(e.vram) {
		return nil
	}
	return append([]uint16(nil), e.vram[base:base+tablet.SectorWords]...)
}

// Cursor returns the text cursor
func (e *Emulator) Cursor() image.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// SelectedDisplay returns the display being drawn to
func (e *Emulator) SelectedDisplay() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Vibrating reports the vibration motor state
func (e *Emulator) Vibrating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vibrating
}

// Stats returns the number of frames received per opcode
func (e *Emulator) Stats() map[uint8]uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint8]uint64, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}

// Faults returns how many frames referenced memory outside VRAM
func (e *Emulator) Faults() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.faults
}

// Skipped returns how many unknown bytes the command decoder dropped
func (e *Emulator) Skipped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decoder.Skipped()
}

func toRGBA(c uint16) color.RGBA {
	rgb := tablet.FromU16(c)
	return color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 0xFF}
}

// rect normalises inclusive corners into an image.Rectangle
func rect(x1, y1, x2, y2 int) image.Rectangle {
	return image.Rect(x1, y1, x2+1, y2+1).Canon()
}

func (e *Emulator) apply(cmd *tablet.Command) {
	fb := e.screen(e.current)

	switch cmd.Opcode() {
	case tablet.CmdSetTextCursor:
		e.cursor = image.Pt(int(cmd.Uint16(0)), int(cmd.Uint16(2)))

	case tablet.CmdWriteText:
		e.drawText(fb, cmd.Text())

	case tablet.CmdDrawPixel:
		fb.SetRGBA(int(cmd.Uint16(0)), int(cmd.Uint16(2)), toRGBA(cmd.Uint16(4)))

	case tablet.CmdFillRect:
		r := rect(int(cmd.Uint16(0)), int(cmd.Uint16(2)), int(cmd.Uint16(4)), int(cmd.Uint16(6)))
		draw.Draw(fb, r, image.NewUniform(toRGBA(cmd.Uint16(8))), image.Point{}, draw.Src)

	case tablet.CmdDrawRect:
		r := rect(int(cmd.Uint16(0)), int(cmd.Uint16(2)), int(cmd.Uint16(4)), int(cmd.Uint16(6)))
		src := image.NewUniform(toRGBA(cmd.Uint16(8)))
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
			image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
			image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
			image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
		}
		for _, edge := range edges {
			draw.Draw(fb, edge, src, image.Point{}, draw.Src)
		}

	case tablet.CmdSetTextColor:
		e.textColor = toRGBA(cmd.Uint16(0))

	case tablet.CmdWriteVRAM:
		base := int(cmd.Uint16(0)) * tablet.SectorWords
		if base+tablet.SectorWords > len(e.vram) {
			e.faults++
			return
		}
		copy(e.vram[base:], cmd.Words())

	case tablet.CmdDrawBitmap:
		e.drawBitmap(fb, cmd)

	case tablet.CmdSelectDisplay:
		e.current = int(cmd.Byte(0))

	case tablet.CmdDrawPaletteImage:
		e.drawPalette(fb, cmd)

	case tablet.CmdFillDisplay:
		draw.Draw(fb, fb.Bounds(), image.NewUniform(toRGBA(cmd.Uint16(0))), image.Point{}, draw.Src)

	case tablet.CmdSetVibrate:
		e.vibrating = cmd.Byte(0) != 0
	}
}

// drawText renders text at the cursor and leaves the cursor after it.
// Newline returns to column 0 of the next line.
func (e *Emulator) drawText(fb *image.RGBA, text []byte) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  fb,
		Src:  image.NewUniform(e.textColor),
		Face: face,
	}
	x, y := e.cursor.X, e.cursor.Y
	for _, ch := range text {
		switch ch {
		case '\n':
			x = 0
			y += LineHeight
		case ' ':
			x += CharAdvance
		default:
			d.Dot = fixed.P(x, y+face.Ascent)
			d.DrawString(string(rune(ch)))
			x += CharAdvance
		}
	}
	e.cursor = image.Pt(x, y)
}

// imageFrame returns the VRAM words starting at the sector of a draw
// command, or nil if n words do not fit
func (e *Emulator) imageFrame(sector, n int) []uint16 {
	base := sector * tablet.SectorWords
	if base+n > len(e.vram) {
		e.faults++
		return nil
	}
	return e.vram[base : base+n]
}

func (e *Emulator) drawBitmap(fb *image.RGBA, cmd *tablet.Command) {
	x0, y0 := int(cmd.Uint16(2)), int(cmd.Uint16(4))
	w, h := int(cmd.Byte(6)), int(cmd.Byte(7))
	words := e.imageFrame(int(cmd.Uint16(0)), w*h)
	if words == nil || w == 0 {
		return
	}
	for i, c := range words {
		fb.SetRGBA(x0+i%w, y0+i/w, toRGBA(c))
	}
}

func (e *Emulator) drawPalette(fb *image.RGBA, cmd *tablet.Command) {
	x0, y0 := int(cmd.Uint16(2)), int(cmd.Uint16(4))
	w, h := int(cmd.Byte(6)), int(cmd.Byte(7))
	n := int(cmd.Byte(8))
	pixels := w * h
	words := e.imageFrame(int(cmd.Uint16(0)), n+(pixels+3)/4)
	if words == nil || w == 0 {
		return
	}
	palette, indices := words[:n], words[n:]
	for i := 0; i < pixels; i++ {
		idx := int(indices[i/4]>>(12-4*(i%4))) & 0x0F
		if idx >= n {
			continue
		}
		fb.SetRGBA(x0+i%w, y0+i/w, toRGBA(palette[idx]))
	}
}
