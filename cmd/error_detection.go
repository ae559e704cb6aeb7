// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze stream desynchronisation and implausible events",
	Long: `Track skipped bytes and anomalous event values with statistics.

The peripheral stream has no start byte or checksum, so a lost byte shows up
only indirectly. This command watches for:
  - Bytes the decoder had to skip (unknown opcodes)
  - Touch points outside the screen or with zero pressure
  - More touch points than the panel can report
  - Battery voltage or current outside a single cell's range
  - Statistics and trends (event rate, anomaly count)

By default, only problems are displayed. Use --show-all to display every event.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all events (not just problems)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	if useTUI {
		return runTUIMode(dev, connInfo)
	}
	return runTextMode(dev, connInfo)
}

// printSkipped prints a run of skipped bytes in highlighted format
func printSkipped(n uint64) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDESYNC:\033[0m skipped %d byte(s) with unknown opcode\n\n", timestamp, n)
}

// printAnomalies prints the anomalies found in an event
func printAnomalies(evt tablet.Event, anomalies []tablet.Anomaly) {
	timestamp := evt.Time().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%02X)\n",
		timestamp, tablet.FormatEventType(evt.Opcode()), evt.Opcode())

	for i, a := range anomalies {
		switch a.Type {
		case tablet.AnomalyTouchOutOfBounds, tablet.AnomalyTooManyPoints:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		}
	}

	fmt.Print(tablet.FormatEvent(evt))
	fmt.Printf("  >>> EVENT SUSPECT <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(dev *device.Device, connInfo string) error {
	cfg := dev.Config()
	m := initialModel(connInfo, statsInterval, showAll, dev.Statistics)
	p := tea.NewProgram(m)

	// Poller goroutine
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		synchronized := false
		var skipped uint64
		for range ticker.C {
			events, err := dev.Poll()
			stats := dev.Statistics()

			if !synchronized && len(events) > 0 {
				// First well-formed event
				synchronized = true
				p.Send(syncMsg{invalidBytes: stats.SkippedBytes})
				skipped = stats.SkippedBytes
			}
			if synchronized && stats.SkippedBytes > skipped {
				p.Send(skipMsg{bytes: stats.SkippedBytes - skipped})
			}
			if synchronized {
				skipped = stats.SkippedBytes
			}

			for _, evt := range events {
				p.Send(eventMsg{
					event:     evt,
					anomalies: tablet.ValidateEvent(evt, cfg.Width, cfg.Height),
				})
			}
			if err != nil {
				p.Send(linkClosedMsg{err: err})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(dev *device.Device, connInfo string) error {
	fmt.Printf("Peripherald - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All events\n")
	} else {
		fmt.Printf("Mode: Problems only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	cfg := dev.Config()

	// Sync tracking: bytes skipped before the first event are start-up noise
	synchronized := false
	var skipped uint64

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ticker.C:
			events, err := dev.Poll()
			stats := dev.Statistics()

			if !synchronized && len(events) > 0 {
				synchronized = true
				if stats.SkippedBytes > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", stats.SkippedBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			} else if synchronized && stats.SkippedBytes > skipped {
				printSkipped(stats.SkippedBytes - skipped)
			}
			if synchronized {
				skipped = stats.SkippedBytes
			}

			for _, evt := range events {
				anomalies := tablet.ValidateEvent(evt, cfg.Width, cfg.Height)
				if len(anomalies) > 0 {
					printAnomalies(evt, anomalies)
				} else if showAll {
					fmt.Print(tablet.FormatEvent(evt))
				}
			}

			if err != nil {
				if isClosed(err) {
					fmt.Printf("Connection closed\n")
					return nil
				}
				return err
			}

		case <-statsTicker.C:
			stats := dev.Statistics()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
