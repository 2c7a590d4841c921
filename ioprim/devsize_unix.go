//go:build !windows

package ioprim

import (
	"fmt"
	"io"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DeviceSize returns the size in bytes of an image file or block device.
func DeviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err == nil && fi.Mode().IsRegular() {
		return fi.Size(), nil
	}

	// Block devices: macOS/BSD report block size and count separately.
	const (
		DKIOCGETBLOCKSIZE  = 0x40046418 // _IOR('d', 24, uint32)
		DKIOCGETBLOCKCOUNT = 0x40086419 // _IOR('d', 25, uint64)
		BLKGETSIZE64       = 0x80081272 // _IOR(0x12, 114, size_t)
	)

	var blockSize uint32
	var blockCount uint64

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), DKIOCGETBLOCKSIZE, uintptr(unsafe.Pointer(&blockSize)))
	if errno != 0 {
		var sizeBytes uint64
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), BLKGETSIZE64, uintptr(unsafe.Pointer(&sizeBytes)))
		if errno == 0 {
			return int64(sizeBytes), nil
		}
		// Character devices and pipes that can still seek.
		if size, serr := f.Seek(0, io.SeekEnd); serr == nil {
			_, _ = f.Seek(0, io.SeekStart)
			return size, nil
		}
		return 0, fmt.Errorf("cannot determine device size: %v", errno)
	}

	_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), DKIOCGETBLOCKCOUNT, uintptr(unsafe.Pointer(&blockCount)))
	if errno != 0 {
		return 0, fmt.Errorf("cannot get block count: %v", errno)
	}

	return int64(blockSize) * int64(blockCount), nil
}
