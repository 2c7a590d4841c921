//go:build !windows

package ioprim

import (
	"os"

	"golang.org/x/sys/unix"
)

func pread(f *os.File, p []byte, off int64) (int, error) {
	n, err := unix.Pread(int(f.Fd()), p, off)
	if n < 0 {
		n = 0
	}
	return n, err
}

func pwrite(f *os.File, p []byte, off int64) (int, error) {
	n, err := unix.Pwrite(int(f.Fd()), p, off)
	if n < 0 {
		n = 0
	}
	return n, err
}
