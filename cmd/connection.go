// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/ntios/peripherald/pkg/channel"
	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/emulator"
)

// pollInterval is the cadence of every poll loop
const pollInterval = 10 * time.Millisecond

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("PERIPHERALD_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenConnection opens the channel selected by the connection flags
func OpenConnection() (channel.Channel, string, error) {
	if useSim {
		emu := emulator.New(screenWidth, screenHeight, vramSectors)
		// Like the hardware, report the battery as soon as the link is up
		emu.Battery(4.1, -0.12)
		return emu, fmt.Sprintf("Emulator: %dx%d, %d sectors", screenWidth, screenHeight, vramSectors), nil
	}

	if captureFile != "" {
		f, err := os.Open(captureFile)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		replay, err := channel.OpenReplay(f, true)
		if err != nil {
			return nil, "", err
		}
		return replay, fmt.Sprintf("Capture: %s (%d chunks)", captureFile, replay.Remaining()), nil
	}

	if useStdio {
		conn := channel.Stdio()
		// Human-readable output must not mix with the protocol on stdout
		os.Stdout = os.Stderr
		return conn, "Console: stdin/stdout", nil
	}

	if wsURL != "" {
		// WebSocket mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := channel.OpenWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		// Serial mode
		conn, err := channel.OpenSerial(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url, --stdio, --sim or --from must be specified")
}

// deviceConfig builds the driver configuration from the geometry flags
func deviceConfig() device.Config {
	cfg := device.Config{
		Width:   screenWidth,
		Height:  screenHeight,
		Sectors: vramSectors,
	}
	if traceFrames {
		cfg.Logger = log.New(os.Stderr, "trace ", log.LstdFlags|log.Lmicroseconds)
	}
	return cfg
}

// OpenDevice opens the connection and wraps it in a driver
func OpenDevice() (*device.Device, string, error) {
	ch, connInfo, err := OpenConnection()
	if err != nil {
		return nil, "", err
	}
	return device.New(ch, deviceConfig()), connInfo, nil
}
