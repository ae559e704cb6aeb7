// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"fmt"
	"time"
)

// Statistics tracks frame counts in both directions
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound
	TotalEvents   uint64
	TouchEvents   uint64
	BatteryEvents uint64
	KeyEvents     uint64
	SkippedBytes  uint64
	BytesIn       uint64
	Anomalies     uint64

	// Outbound
	Commands    uint64
	VRAMUploads uint64
	BytesOut    uint64

	// Rates (calculated)
	EventRate float64 // events/sec
	ByteRate  float64 // outbound bytes/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordEvent counts a decoded event
func (s *Statistics) RecordEvent(e Event) {
	s.TotalEvents++
	switch e.(type) {
	case TouchEvent:
		s.TouchEvents++
	case BatteryEvent:
		s.BatteryEvents++
	case KeyPressEvent:
		s.KeyEvents++
	}
	s.LastUpdateTime = time.Now()
}

// RecordCommand counts an outbound command and its encoded size
func (s *Statistics) RecordCommand(c *Command) {
	s.Commands++
	s.BytesOut += uint64(c.Len())
	if c.opcode == CmdWriteVRAM {
		s.VRAMUploads++
	}
}

// CalculateRates calculates event and byte rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.EventRate = float64(s.TotalEvents) / elapsed
		s.ByteRate = float64(s.BytesOut) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Events:          %8d\n", s.TotalEvents)
	result += fmt.Sprintf("  Touch:            %5d\n", s.TouchEvents)
	result += fmt.Sprintf("  Battery:          %5d\n", s.BatteryEvents)
	if s.KeyEvents > 0 {
		result += fmt.Sprintf("  Key Press:        %5d\n", s.KeyEvents)
	}
	if s.SkippedBytes > 0 {
		result += fmt.Sprintf("Skipped Bytes:   %8d\n", s.SkippedBytes)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}
	result += fmt.Sprintf("Bytes In:        %8d\n", s.BytesIn)
	result += fmt.Sprintf("Commands:        %8d (%d VRAM sectors)\n", s.Commands, s.VRAMUploads)
	result += fmt.Sprintf("Bytes Out:       %8d\n", s.BytesOut)
	result += fmt.Sprintf("Event Rate:      %8.1f events/sec\n", s.EventRate)
	result += fmt.Sprintf("Output Rate:     %8.1f bytes/sec\n", s.ByteRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
