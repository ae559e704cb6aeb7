// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
)

var (
	discoveryTimeout int
	discoveryAll     bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with a peripheral attached",
	Long: `Listen on every serial port for peripheral events.

Each port is opened at --baud and polled until it produces a complete event
or the timeout expires. The peripheral reports its battery periodically, so
an attached peripheral is found even when nobody touches the screen.

Examples:
  # Scan all ports at the default baud rate
  peripherald discovery

  # Scan with a longer timeout and list silent ports too
  peripherald discovery --timeout 10 --all

Exit codes:
  0 - Discovery successful (at least one peripheral found)
  1 - Discovery failed (no peripheral responded)
  2 - Port enumeration error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds per port")
	discoveryCmd.Flags().BoolVar(&discoveryAll, "all", false, "Also list ports that stayed silent")
}

// discoveryResult is what listening on one port produced
type discoveryResult struct {
	port    string
	err     error
	event   tablet.Event
	battery tablet.BatteryEvent
	skipped uint64
}

func (r discoveryResult) found() bool {
	return r.event != nil
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := channel.ListSerialPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Port enumeration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Peripherald - Peripheral Discovery\n")
	fmt.Printf("Ports: %d @ %d baud\n", len(ports), baudRate)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	var (
		mu      sync.Mutex
		results []discoveryResult
	)

	var g errgroup.Group
	g.SetLimit(8)
	for _, port := range ports {
		port := port
		g.Go(func() error {
			res := listenPort(port, time.Duration(discoveryTimeout)*time.Second)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].port < results[j].port })

	found := 0
	for _, res := range results {
		switch {
		case res.found():
			found++
			fmt.Printf("Peripheral found:\n")
			fmt.Printf("  Port: %s\n", res.port)
			fmt.Printf("  First event: %s\n", tablet.FormatEventType(res.event.Opcode()))
			if res.battery.Voltage > 0 {
				fmt.Printf("  Battery: %.2f V, %+.3f A\n", res.battery.Voltage, res.battery.Current)
			}
			if res.skipped > 0 {
				fmt.Printf("  Skipped bytes: %d\n", res.skipped)
			}
			fmt.Println()
		case res.err != nil && discoveryAll:
			fmt.Printf("%s: %v\n\n", res.port, res.err)
		case discoveryAll:
			fmt.Printf("%s: silent\n\n", res.port)
		}
	}

	// Summary
	fmt.Printf("--- Discovery summary ---\n")
	fmt.Printf("Peripherals found: %d\n", found)

	if found == 0 {
		fmt.Printf("No peripheral discovered. Check the cable, baud rate and power.\n")
		os.Exit(1)
	}

	return nil
}

// listenPort polls one port until it yields an event or timeout passes
func listenPort(port string, timeout time.Duration) discoveryResult {
	res := discoveryResult{port: port}

	conn, err := channel.OpenSerial(port, baudRate)
	if err != nil {
		res.err = err
		return res
	}
	dev := device.New(conn, deviceConfig())
	defer dev.Close()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			events, err := dev.Poll()
			if len(events) > 0 {
				res.event = events[0]
				res.battery, _ = dev.Battery()
				res.skipped = dev.Statistics().SkippedBytes
				return res
			}
			if err != nil {
				res.err = err
				return res
			}

		case <-deadline:
			return res
		}
	}
}
