//go:build windows

package main

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	fsctlLockVolume      = 0x90018
	fsctlDismountVolume  = 0x90020
	fsctlUnlockVolume    = 0x9001c
	fileFlagWriteThrough = 0x80000000
)

var deviceIoControl = windows.NewLazySystemDLL("kernel32.dll").NewProc("DeviceIoControl")

func volumeControl(h windows.Handle, code uintptr) error {
	var n uint32
	r1, _, err := deviceIoControl.Call(uintptr(h), code, 0, 0, 0, 0, uintptr(unsafe.Pointer(&n)), 0)
	if r1 == 0 {
		return err
	}
	return nil
}

// lockVolume locks and dismounts a drive letter volume (\\.\E:) so its raw
// device can be written. It returns 0 for paths that are not drive letters
// or volumes that do not support locking.
func lockVolume(devicePath string) (windows.Handle, error) {
	if len(devicePath) < 6 || !strings.HasPrefix(devicePath, `\\.\`) {
		return 0, nil
	}
	letter := strings.ToUpper(devicePath[4:5])
	if letter < "A" || letter > "Z" || devicePath[5] != ':' {
		return 0, nil
	}
	volumePath := `\\.\` + letter + `:`
	h, err := windows.CreateFile(windows.StringToUTF16Ptr(volumePath),
		windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil, windows.OPEN_EXISTING, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("cannot open volume %s (may need admin privileges): %w", volumePath, err)
	}
	if err := volumeControl(h, fsctlLockVolume); err != nil {
		windows.CloseHandle(h)
		if err == windows.ERROR_NOT_SUPPORTED {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot lock volume %s (close all programs using it): %w", volumePath, err)
	}
	if err := volumeControl(h, fsctlDismountVolume); err != nil {
		_ = volumeControl(h, fsctlUnlockVolume)
		windows.CloseHandle(h)
		if err != windows.ERROR_NOT_SUPPORTED && err != windows.ERROR_NOT_LOCKED {
			return 0, fmt.Errorf("cannot dismount volume %s: %w", volumePath, err)
		}
		return 0, nil
	}
	return h, nil
}

// openDevice opens a raw device for writing with write-through. The returned
// release func unlocks any volume that had to be dismounted.
func openDevice(devicePath string) (*os.File, func(), error) {
	vol, err := lockVolume(devicePath)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if vol != 0 {
			_ = volumeControl(vol, fsctlUnlockVolume)
			windows.CloseHandle(vol)
		}
	}
	h, err := windows.CreateFile(windows.StringToUTF16Ptr(devicePath),
		windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil, windows.OPEN_EXISTING, fileFlagWriteThrough, 0)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("open device %s: %w (run as administrator with no programs using the drive)", devicePath, err)
	}
	return os.NewFile(uintptr(h), devicePath), release, nil
}
