package machine

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
	"hdboot/ioprim"
)

// Host is the set of boot firmware services the loader calls. The firmware
// lives at fixed addresses on the real machine; here it is injected.
type Host interface {
	// TopOfMemory is the RAM size the firmware measured at power-on.
	TopOfMemory() uint32
	// VerifyChecksum checks sum against the data block's checksum.
	VerifyChecksum(data []byte, sum uint16) bool
	// DisplayText draws a zero-terminated string at row, col.
	DisplayText(row, col int, text []byte)
	// Fatal reports a generic error code and returns to the firmware.
	Fatal(code uint16) error
	// ReturnToMonitor reports msg with an error code and returns to the
	// firmware.
	ReturnToMonitor(msg string, code uint16) error
}

// MonitorError is what the boot attempt ends with when control goes back to
// the firmware. Callers must return it without doing anything further.
type MonitorError struct {
	Message string
	Code    uint16
}

func (e *MonitorError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("boot failed: error code %d", e.Code)
	}
	return fmt.Sprintf("%s (error code %d)", e.Message, e.Code)
}

// Firmware is a simulated boot ROM over a Memory and a Screen.
type Firmware struct {
	Mem    *Memory
	Screen *Screen

	// OnDisplay, when set, runs after every DisplayText.
	OnDisplay func(*Screen)

	halt *MonitorError
}

// NewFirmware returns firmware driving mem with a blank screen.
func NewFirmware(mem *Memory) *Firmware {
	return &Firmware{Mem: mem, Screen: NewScreen()}
}

// PowerOn performs the firmware's own boot probe: it sets up the boot
// device and reads block 0, tag first, to BootBlockAddress.
func (f *Firmware) PowerOn(p ioprim.Primitive, dev ioprim.DeviceID) error {
	if err := p.Setup(dev); err != nil {
		return fmt.Errorf("boot probe: %w", err)
	}
	if err := p.Init(); err != nil {
		return fmt.Errorf("boot probe: %w", err)
	}
	buf, err := f.Mem.Slice(BootBlockAddress, blocktag.BlockSize)
	if err != nil {
		return fmt.Errorf("boot probe: %w", err)
	}
	if !p.Transfer(ioprim.Read, 0, buf) {
		return fmt.Errorf("boot probe: read block 0: %v", p.LastError())
	}
	log.Debugf("firmware: block 0 loaded at $%06X", BootBlockAddress)
	return nil
}

// TopOfMemory implements Host.
func (f *Firmware) TopOfMemory() uint32 {
	top, err := f.Mem.Long(TopOfMemoryAddr)
	if err != nil {
		return f.Mem.Size()
	}
	return top
}

// VerifyChecksum implements Host.
func (f *Firmware) VerifyChecksum(data []byte, sum uint16) bool {
	return blocktag.Verify(data, sum)
}

// DisplayText implements Host.
func (f *Firmware) DisplayText(row, col int, text []byte) {
	f.Screen.Write(row, col, text)
	if f.OnDisplay != nil {
		f.OnDisplay(f.Screen)
	}
}

// Fatal implements Host.
func (f *Firmware) Fatal(code uint16) error {
	return f.stop(&MonitorError{Code: code})
}

// ReturnToMonitor implements Host.
func (f *Firmware) ReturnToMonitor(msg string, code uint16) error {
	return f.stop(&MonitorError{Message: msg, Code: code})
}

func (f *Firmware) stop(e *MonitorError) error {
	if f.halt == nil {
		f.halt = e
		f.Screen.Write(ScreenRows-2, 0, []byte(fmt.Sprintf("%s ERROR %d", e.Message, e.Code)))
		if f.OnDisplay != nil {
			f.OnDisplay(f.Screen)
		}
		log.Debugf("firmware: returned to monitor: %v", e)
	}
	return f.halt
}

// Halted returns the error the boot attempt stopped with, if any.
func (f *Firmware) Halted() *MonitorError { return f.halt }
