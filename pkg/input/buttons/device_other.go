//go:build !linux

package buttons

import "fmt"

// Open is only supported on linux.
func Open(index int) (Device, error) {
	return nil, fmt.Errorf("input device %d: %w", index, ErrNoDevice)
}

// Detect is only supported on linux.
func Detect(startIndex int) (Device, error) {
	return nil, ErrNoDevice
}
