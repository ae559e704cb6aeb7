// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package device is the host-side driver for the touchscreen peripheral.
//
// A Device owns one channel to the peripheral together with the stream
// decoder, the VRAM cache and the last values reported by the peripheral.
// Drawing goes through a Display, which selects its screen before every
// operation. Nothing here runs in the background: events are only decoded
// when the caller polls.
package device

import (
	"fmt"
	"image"
	"log"
	"reflect"
	"sync"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/tablet"
	"github.com/ntios/peripherald/pkg/vram"
)

// Config describes the attached peripheral
type Config struct {
	Width   int
	Height  int
	Sectors int

	// Logger, when set, traces every frame written to the peripheral
	Logger *log.Logger
}

// DefaultConfig returns the geometry of the stock peripheral
func DefaultConfig() Config {
	return Config{
		Width:   800,
		Height:  480,
		Sectors: tablet.TotalSectors,
	}
}

// Device is the driver state for one peripheral. It is safe for concurrent
// use; all operations are serialised by a single mutex.
type Device struct {
	mu sync.Mutex

	ch      channel.Channel
	cfg     Config
	encoder *tablet.Encoder
	decoder *tablet.Decoder
	cache   *vram.Cache[image.Image]
	stats   *tablet.Statistics

	// selected is the display the peripheral draws to. The peripheral
	// starts on display 0.
	selected int
	displays map[int]*Display

	presses    []tablet.Point
	battery    tablet.BatteryEvent
	hasBattery bool
}

// New creates a driver for the peripheral on ch. Zero fields of cfg take
// their defaults.
func New(ch channel.Channel, cfg Config) *Device {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.Sectors <= 0 {
		cfg.Sectors = def.Sectors
	}
	return &Device{
		ch:       ch,
		cfg:      cfg,
		encoder:  tablet.NewEncoder(),
		decoder:  tablet.NewDecoder(),
		cache:    vram.New[image.Image](cfg.Sectors),
		stats:    tablet.NewStatistics(),
		displays: make(map[int]*Display),
	}
}

// Config returns the effective configuration
func (d *Device) Config() Config {
	return d.cfg
}

// Close closes the channel
func (d *Device) Close() error {
	return d.ch.Close()
}

// Poll reads everything the channel has buffered, decodes it and updates
// the last known presses and battery values. The decoded events are
// returned in order. Partial frames stay buffered for the next poll.
func (d *Device) Poll() ([]tablet.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollLocked()
}

func (d *Device) pollLocked() ([]tablet.Event, error) {
	var events []tablet.Event
	for d.ch.Available() {
		data, err := d.ch.Read()
		if len(data) > 0 {
			d.stats.BytesIn += uint64(len(data))
			skipped := d.decoder.Skipped()
			for _, evt := range d.decoder.Feed(data) {
				d.apply(evt)
				events = append(events, evt)
			}
			d.stats.SkippedBytes += d.decoder.Skipped() - skipped
		}
		if err != nil {
			return events, fmt.Errorf("read failed: %w", err)
		}
		if len(data) == 0 {
			break
		}
	}
	return events, nil
}

func (d *Device) apply(evt tablet.Event) {
	d.stats.RecordEvent(evt)
	if len(tablet.ValidateEvent(evt, d.cfg.Width, d.cfg.Height)) > 0 {
		d.stats.Anomalies++
	}
	switch e := evt.(type) {
	case tablet.TouchEvent:
		d.presses = append(d.presses[:0], e.Points...)
	case tablet.BatteryEvent:
		d.battery = e
		d.hasBattery = true
	case tablet.KeyPressEvent:
		// Surfaced through Poll only
	}
}

// Presses polls the channel and returns the touch points of the latest
// touch-change event. An empty result means nothing is touching.
func (d *Device) Presses() ([]tablet.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.pollLocked()
	return append([]tablet.Point(nil), d.presses...), err
}

// Battery polls the channel and returns the last battery report. ok is
// false until one arrives. Read errors are left for Poll and Presses to
// report.
func (d *Device) Battery() (evt tablet.BatteryEvent, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = d.pollLocked()
	return d.battery, d.hasBattery
}

// BatteryVoltage returns the last reported voltage in volts, 0 before any
// report
func (d *Device) BatteryVoltage() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = d.pollLocked()
	return d.battery.Voltage
}

// BatteryCurrent returns the last reported current in amperes, negative
// while discharging
func (d *Device) BatteryCurrent() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = d.pollLocked()
	return d.battery.Current
}

// SetVibrate switches the vibration motor
func (d *Device) SetVibrate(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendLocked(tablet.NewSetVibrate(on))
}

// Statistics returns a snapshot of the traffic counters
func (d *Device) Statistics() tablet.Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.CalculateRates()
	return *d.stats
}

// ResidentImages returns the VRAM cache contents ordered by sector
func (d *Device) ResidentImages() []vram.Item[image.Image] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Items()
}

// Invalidate forgets every resident image, as needed after the peripheral
// has been reset and its VRAM lost
func (d *Device) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Reset()
	d.selected = 0
}

// Display returns the drawing handle for the screen at index
func (d *Device) Display(index int) *Display {
	d.mu.Lock()
	defer d.mu.Unlock()
	if disp, ok := d.displays[index]; ok {
		return disp
	}
	disp := &Display{dev: d, index: index}
	d.displays[index] = disp
	return disp
}

// sendLocked writes each command as its own channel write
func (d *Device) sendLocked(cmds ...*tablet.Command) error {
	for _, cmd := range cmds {
		if d.cfg.Logger != nil {
			d.cfg.Logger.Printf("-> %s", tablet.FormatCommand(cmd))
		}
		if err := d.ch.Write(d.encoder.Encode(cmd)); err != nil {
			return fmt.Errorf("failed to send %s: %w", tablet.FormatCommandType(cmd.Opcode()), err)
		}
		d.stats.RecordCommand(cmd)
	}
	return nil
}

// selectLocked makes index the active display, emitting select-display
// only when it changes
func (d *Device) selectLocked(index int) error {
	if index == d.selected {
		return nil
	}
	cmd, err := tablet.NewSelectDisplay(index)
	if err != nil {
		return err
	}
	if err := d.sendLocked(cmd); err != nil {
		return err
	}
	d.selected = index
	return nil
}

// uncached wraps images that are not pointers. A value type may be
// comparable yet hold an interface whose dynamic value is not, so only
// pointer identity is used as a key. Every wrapper is a distinct key and
// such images are uploaded each time.
type uncached struct {
	image.Image
}

func cacheKey(img image.Image) image.Image {
	if reflect.TypeOf(img).Kind() == reflect.Pointer {
		return img
	}
	return &uncached{img}
}

// loadLocked makes img resident and returns its first sector. A resident
// copy is reused; otherwise sectors are allocated, evicting the least
// recently used images if needed, and the image is uploaded.
func (d *Device) loadLocked(img image.Image, format Format) (int, error) {
	key := cacheKey(img)
	if sector, ok := d.cache.SectorOf(key); ok {
		return sector, nil
	}

	words := EncodeImage(img, format)
	sectors := Sectors(words)
	first, evicted, err := d.cache.Allocate(len(sectors), key)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %d sectors: %w", len(sectors), err)
	}
	if d.cfg.Logger != nil {
		for _, it := range evicted {
			d.cfg.Logger.Printf("vram: evicted %d sectors at %d", it.Sectors, it.First)
		}
	}

	for i, data := range sectors {
		cmd, err := tablet.NewWriteVRAM(first+i, data)
		if err == nil {
			err = d.sendLocked(cmd)
		}
		if err != nil {
			// The sectors hold a partial upload
			d.cache.Remove(key)
			return 0, err
		}
	}
	return first, nil
}
