// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Peripherald - NTIOS touchscreen peripheral driver
//
// A CLI tool for driving the touchscreen peripheral and monitoring its
// event stream over serial, WebSocket, console or an emulated screen.

package main

import (
	"os"

	"github.com/ntios/peripherald/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
