//go:build windows

package ioprim

import (
	"errors"
	"io"
	"os"
)

func pread(f *os.File, p []byte, off int64) (int, error) {
	n, err := f.ReadAt(p, off)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}

func pwrite(f *os.File, p []byte, off int64) (int, error) {
	return f.WriteAt(p, off)
}
