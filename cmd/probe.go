// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ntios/peripherald/pkg/tablet"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by waiting for a peripheral event",
	Long: `Wait for any complete peripheral event on the connection until timeout.

This command connects to the peripheral and waits for a touch change, battery
report or key press. Bytes that do not frame as an event are skipped. The
peripheral reports its battery periodically, so an idle but healthy link
answers within a few seconds.

Exit codes:
  0 - Event received before timeout
  1 - Timeout reached without receiving an event
  2 - Connection error

Useful for testing the serial link or a WebSocket bridge.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for an event")
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket, console or emulator)
	dev, connInfo, err := OpenDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer dev.Close()

	fmt.Printf("Peripherald - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a peripheral event...\n\n")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.After(time.Duration(probeTimeout) * time.Second)

	for {
		select {
		case <-ticker.C:
			events, err := dev.Poll()
			if len(events) > 0 {
				evt := events[0]
				stats := dev.Statistics()
				if stats.SkippedBytes > 0 {
					fmt.Printf("(skipped %d unframed bytes before the event)\n", stats.SkippedBytes)
				}
				fmt.Printf("SUCCESS: Received event\n")
				fmt.Printf("  Type: %s (0x%02X)\n", tablet.FormatEventType(evt.Opcode()), evt.Opcode())
				fmt.Printf("  %s", tablet.FormatEvent(evt))
				os.Exit(0)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
				os.Exit(2)
			}

		case <-deadline:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No event received within %d seconds\n", probeTimeout)
			os.Exit(1)
		}
	}
}
