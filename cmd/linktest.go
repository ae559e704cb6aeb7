// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ntios/peripherald/pkg/device"
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw connection stability",
	Long: `Hold the connection open and log everything received.

Raw chunks are printed as they arrive, without decoding, together with a
heartbeat every second. With --fill-rate the screen is also repainted at the
given rate, alternating two colors, to load the outbound direction; each
write's latency is tracked. Useful for debugging flaky serial cables and
WebSocket bridges.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkTest,
}

var (
	linkTestDuration int
	linkTestFillRate int
)

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
	linkTestCmd.Flags().IntVar(&linkTestFillRate, "fill-rate", 0, "Repaint the screen N times per second (0 disables)")
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	ch, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer ch.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	var fillC <-chan time.Time
	if linkTestFillRate > 0 {
		fillTicker := time.NewTicker(time.Second / time.Duration(linkTestFillRate))
		defer fillTicker.Stop()
		fillC = fillTicker.C
	}
	// Fills go through the driver, which only reads when polled; reads
	// here stay raw on the channel
	disp := device.New(ch, deviceConfig()).Display(0)
	fills := 0
	var worstWrite time.Duration

	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	start := time.Now()
	endTime := start.Add(time.Duration(linkTestDuration) * time.Second)
	bytesReceived := 0
	chunksReceived := 0

	results := func() {
		fmt.Printf("\n--- Test Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Chunks received: %d\n", chunksReceived)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		if fills > 0 {
			fmt.Printf("Screen fills: %d (slowest write %v)\n", fills, worstWrite.Round(time.Microsecond))
		}
	}

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case <-pollTicker.C:
			if !ch.Available() {
				continue
			}
			data, err := ch.Read()
			if len(data) > 0 {
				bytesReceived += len(data)
				chunksReceived++
				fmt.Printf("[%s] Received %d bytes: %x\n",
					time.Now().Format("15:04:05.000"), len(data), data)
			}
			if err != nil {
				fmt.Printf("\n[%s] Connection error: %v\n",
					time.Now().Format("15:04:05.000"), err)
				results()
				fmt.Printf("Result: FAILED (connection error)\n")
				os.Exit(1)
			}

		case <-fillC:
			c := color.Color(color.Black)
			if fills%2 == 0 {
				c = color.White
			}
			began := time.Now()
			if err := disp.FillScreen(c); err != nil {
				fmt.Printf("\n[%s] Write error: %v\n",
					time.Now().Format("15:04:05.000"), err)
				results()
				fmt.Printf("Result: FAILED (write error)\n")
				os.Exit(1)
			}
			if d := time.Since(began); d > worstWrite {
				worstWrite = d
			}
			fills++

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	results()
	fmt.Printf("Result: PASSED (connection stable)\n")

	return nil
}
