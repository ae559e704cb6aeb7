// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tablet

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an argument rejected before anything reaches the wire
type ErrorKind int

const (
	KindOutOfRange ErrorKind = iota
	KindPayloadSize
	KindImageTooLarge
	KindTooManyColors
)

// Sentinel errors for use with errors.Is
var (
	ErrOutOfRange    = errors.New("value out of range")
	ErrPayloadSize   = errors.New("invalid payload size")
	ErrImageTooLarge = errors.New("image too large")
	ErrTooManyColors = errors.New("too many palette colors")
)

// ValidationError describes an invalid command argument. Commands that fail
// validation are never sent.
type ValidationError struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// Is lets errors.Is match a ValidationError against the sentinel for its kind
func (v *ValidationError) Is(target error) bool {
	switch v.Kind {
	case KindOutOfRange:
		return target == ErrOutOfRange
	case KindPayloadSize:
		return target == ErrPayloadSize
	case KindImageTooLarge:
		return target == ErrImageTooLarge
	case KindTooManyColors:
		return target == ErrTooManyColors
	}
	return false
}

// CheckCoordinate rejects values that do not fit an unsigned 16-bit field
func CheckCoordinate(name string, v int) error {
	if v < 0 || v > MaxCoordinate {
		return &ValidationError{
			Kind:    KindOutOfRange,
			Message: fmt.Sprintf("%s=%d out of range (valid 0-%d)", name, v, MaxCoordinate),
			Details: map[string]interface{}{name: v, "max": MaxCoordinate},
		}
	}
	return nil
}

// CheckByte rejects values that do not fit an unsigned 8-bit field
func CheckByte(name string, v int) error {
	if v < 0 || v > 0xFF {
		return &ValidationError{
			Kind:    KindOutOfRange,
			Message: fmt.Sprintf("%s=%d out of range (valid 0-255)", name, v),
			Details: map[string]interface{}{name: v, "max": 0xFF},
		}
	}
	return nil
}

// CheckImageSize rejects images the draw commands cannot address
func CheckImageSize(w, h int) error {
	if w <= 0 || h <= 0 || w > MaxImageSize || h > MaxImageSize {
		return &ValidationError{
			Kind:    KindImageTooLarge,
			Message: fmt.Sprintf("image %dx%d not drawable (valid 1-%d per side)", w, h, MaxImageSize),
			Details: map[string]interface{}{"width": w, "height": h, "max": MaxImageSize},
		}
	}
	return nil
}
