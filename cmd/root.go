// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Local connection flags
	useStdio    bool
	useSim      bool
	captureFile string

	// Peripheral geometry
	screenWidth  int
	screenHeight int
	vramSectors  int

	// Trace every frame written to the peripheral
	traceFrames bool
)

var rootCmd = &cobra.Command{
	Use:   "peripherald",
	Short: "NTIOS touchscreen peripheral driver",
	Long: `Peripherald - host-side driver and toolbox for the NTIOS touchscreen peripheral.

Provides commands for drawing on the peripheral, monitoring its touch and
battery events, recording and replaying event streams, and exercising the
driver against a built-in emulator.

Connection modes:
  Serial:    --port /dev/ttyAMA0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  Console:   --stdio   (when running on the companion processor)
  Emulator:  --sim
  Capture:   --from capture.cbor   (replays events recorded with 'record')

For WebSocket authentication, the password is read from the PERIPHERALD_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "0.3.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Local connection flags
	rootCmd.PersistentFlags().BoolVar(&useStdio, "stdio", false, "Talk to the peripheral over stdin/stdout")
	rootCmd.PersistentFlags().BoolVar(&useSim, "sim", false, "Use the built-in emulator instead of hardware")
	rootCmd.PersistentFlags().StringVar(&captureFile, "from", "", "Replay events from a capture file instead of a live link")

	// Peripheral geometry
	rootCmd.PersistentFlags().IntVar(&screenWidth, "width", 800, "Screen width in pixels")
	rootCmd.PersistentFlags().IntVar(&screenHeight, "height", 480, "Screen height in pixels")
	rootCmd.PersistentFlags().IntVar(&vramSectors, "sectors", 1024, "VRAM size in 512-byte sectors")

	rootCmd.PersistentFlags().BoolVar(&traceFrames, "trace", false, "Log every frame written to the peripheral")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
