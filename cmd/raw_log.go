// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/tablet"
)

var rawLogStats int

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display peripheral events in human-readable format",
	Long: `Continuously decode and display peripheral events as they arrive.

Each touch change, battery report and key press is shown with its timestamp
and decoded payload. Bytes the decoder could not frame are skipped one at a
time, as the peripheral protocol has no start byte or checksum.

Supports serial, WebSocket, console and emulator connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().IntVar(&rawLogStats, "stats", 0, "Print statistics every N seconds (0 disables)")
}

// isClosed reports whether a read error means the link is gone for good
func isClosed(err error) bool {
	return errors.Is(err, channel.ErrClosed) || errors.Is(err, io.EOF)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial, WebSocket, console or emulator)
	dev, connInfo, err := OpenDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	fmt.Printf("Peripherald - Raw Event Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if rawLogStats > 0 {
		statsTicker := time.NewTicker(time.Duration(rawLogStats) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case <-ticker.C:
			events, err := dev.Poll()
			for _, evt := range events {
				fmt.Print(tablet.FormatEvent(evt))
			}
			if err != nil {
				if isClosed(err) {
					log.Printf("Connection closed")
					return nil
				}
				return err
			}

		case <-statsC:
			stats := dev.Statistics()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
