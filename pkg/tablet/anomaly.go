// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import "fmt"

// AnomalyType classifies a well-framed event carrying implausible values.
// Without checksums these are the only visible sign of a desynchronised
// stream.
type AnomalyType int

const (
	AnomalyTouchOutOfBounds AnomalyType = iota
	AnomalyTooManyPoints
	AnomalyZeroPressure
	AnomalyBatteryVoltage
	AnomalyBatteryCurrent
)

// Plausibility limits for decoded events
const (
	MaxTouchPoints = 10
	MinCellVoltage = 2.5
	MaxCellVoltage = 4.5
	MaxCurrent     = 5.0
)

// Anomaly describes one implausible value in an event
type Anomaly struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

func (a AnomalyType) String() string {
	switch a {
	case AnomalyTouchOutOfBounds:
		return "touch out of bounds"
	case AnomalyTooManyPoints:
		return "too many points"
	case AnomalyZeroPressure:
		return "zero pressure"
	case AnomalyBatteryVoltage:
		return "battery voltage"
	case AnomalyBatteryCurrent:
		return "battery current"
	default:
		return "unknown"
	}
}

// ValidateEvent checks a decoded event against a width×height screen and a
// single-cell battery. Returns nil for plausible events.
func ValidateEvent(e Event, width, height int) []Anomaly {
	var anomalies []Anomaly

	switch evt := e.(type) {
	case TouchEvent:
		if len(evt.Points) > MaxTouchPoints {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyTooManyPoints,
				Message: fmt.Sprintf("%d touch points (max %d)", len(evt.Points), MaxTouchPoints),
				Details: map[string]interface{}{"count": len(evt.Points)},
			})
		}
		for i, p := range evt.Points {
			if int(p.X) >= width || int(p.Y) >= height {
				anomalies = append(anomalies, Anomaly{
					Type:    AnomalyTouchOutOfBounds,
					Message: fmt.Sprintf("point %d at (%d,%d) outside %dx%d", i, p.X, p.Y, width, height),
					Details: map[string]interface{}{"index": i, "x": p.X, "y": p.Y},
				})
			}
			if p.Z == 0 {
				anomalies = append(anomalies, Anomaly{
					Type:    AnomalyZeroPressure,
					Message: fmt.Sprintf("point %d has zero pressure", i),
					Details: map[string]interface{}{"index": i},
				})
			}
		}

	case BatteryEvent:
		if evt.Voltage < MinCellVoltage || evt.Voltage > MaxCellVoltage {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyBatteryVoltage,
				Message: fmt.Sprintf("battery at %.2f V (valid %.1f-%.1f V)", evt.Voltage, MinCellVoltage, MaxCellVoltage),
				Details: map[string]interface{}{"voltage": evt.Voltage},
			})
		}
		if evt.Current > MaxCurrent || evt.Current < -MaxCurrent {
			anomalies = append(anomalies, Anomaly{
				Type:    AnomalyBatteryCurrent,
				Message: fmt.Sprintf("battery current %+.3f A (max ±%.0f A)", evt.Current, MaxCurrent),
				Details: map[string]interface{}{"current": evt.Current},
			})
		}
	}

	return anomalies
}
