//go:build !windows

package main

import (
	"fmt"
	"os"
)

// openDevice opens a device or image file for writing.
func openDevice(devicePath string) (*os.File, func(), error) {
	f, err := os.OpenFile(devicePath, os.O_WRONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open device: %w", err)
	}
	return f, func() {}, nil
}
