// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/ntios/peripherald/pkg/device"
	"github.com/ntios/peripherald/pkg/tablet"
)

// pollEvents polls dev every pollInterval and forwards decoded events to out
// until ctx is done or the link closes
func pollEvents(ctx context.Context, dev *device.Device, out chan<- tablet.Event) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		events, err := dev.Poll()
		for _, evt := range events {
			select {
			case out <- evt:
			case <-ctx.Done():
				return nil
			}
		}
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
	}
}
