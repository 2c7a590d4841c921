//go:build windows

package ioprim

import (
	"io"
	"os"
)

// DeviceSize on Windows only handles regular files; raw devices report
// os.ErrInvalid.
func DeviceSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, _ = f.Seek(0, io.SeekStart)
		return size, nil
	}
	return 0, os.ErrInvalid
}
