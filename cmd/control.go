// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"image"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
	"github.com/ntios/peripherald/pkg/touch"
)

var controlDisplays int

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving the peripheral",
	Long: `Drive the peripheral from an interactive terminal UI.

Features:
  - Display selection
  - Writing text to the selected display
  - Clearing the selected display
  - Toggling the vibration motor
  - Live touch points, gestures and battery readings
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Tab cycles between the display list, the text input and the send button.
Outside the text input, 'v' toggles vibration and 'c' clears the display.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().IntVar(&controlDisplays, "displays", 2, "Number of displays attached to the peripheral")
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	dev      *device.Device
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getDevice() *device.Device {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.dev
}

func (cm *connectionManager) setDevice(dev *device.Device, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.dev = dev
	cm.connInfo = connInfo
}

func runControl(cmd *cobra.Command, args []string) error {
	if controlDisplays < 1 {
		return fmt.Errorf("--displays must be at least 1")
	}

	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		dev:      dev,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	m := initialControlModel(cm, connInfo, controlDisplays)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()

	_, err = p.Run()
	close(cm.done) // Signal goroutines to stop
	cm.getDevice().Close()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// readerLoop polls the device with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		err := cm.pollDevice()
		if err == nil {
			return // Shutdown requested
		}

		cm.p.Send(connectionLostMsg{err: err})
		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// pollDevice polls the current device until the link fails, batching events
// and gestures to the TUI at a fixed rate. Returns nil on shutdown.
func (cm *connectionManager) pollDevice() error {
	dev := cm.getDevice()

	var batch controlBatchMsg
	classifier := touch.NewClassifier()
	// Empty bounds cover the whole screen
	classifier.Add(image.Rectangle{}, touch.HandlerFuncs{
		Click: func(p tablet.Point) {
			batch.gestures = append(batch.gestures, fmt.Sprintf("Click at (%d,%d)", p.X, p.Y))
		},
		Drag: func(from, to tablet.Point) {
			batch.gestures = append(batch.gestures, fmt.Sprintf("Drag to (%d,%d)", to.X, to.Y))
		},
		Release: func(p tablet.Point) {
			batch.gestures = append(batch.gestures, fmt.Sprintf("Release at (%d,%d)", p.X, p.Y))
		},
	})

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	batchTicker := time.NewTicker(50 * time.Millisecond)
	defer batchTicker.Stop()

	var points []tablet.Point
	for {
		select {
		case <-cm.done:
			return nil

		case now := <-pollTicker.C:
			events, err := dev.Poll()
			for _, evt := range events {
				if t, ok := evt.(tablet.TouchEvent); ok {
					points = t.Points
				}
			}
			batch.events = append(batch.events, events...)
			classifier.Update(points, now)
			if err != nil {
				if len(batch.events) > 0 || len(batch.gestures) > 0 {
					cm.p.Send(batch)
				}
				return err
			}

		case <-batchTicker.C:
			if len(batch.events) > 0 || len(batch.gestures) > 0 {
				cm.p.Send(batch)
				batch = controlBatchMsg{}
			}
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if dev := cm.getDevice(); dev != nil {
		dev.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		dev, connInfo, err := OpenDevice()
		if err == nil {
			cm.setDevice(dev, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
