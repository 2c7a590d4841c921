// Package ioprim is the device I/O primitive the boot chain reads blocks
// through. It is a synchronous block transfer with its own retry and sparing
// policy, exposed as setup/init/transfer entry points and a last-error code.
package ioprim

import (
	"fmt"
	"strings"
)

// Command selects the direction of a block transfer.
type Command int

// Transfer commands
const (
	Read Command = iota
	Write
)

func (c Command) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Status is the last-error code kept by a primitive.
type Status uint8

// Status codes
const (
	StatusOK Status = iota
	StatusNoDevice
	StatusNotReady
	StatusOutOfRange
	StatusIOError
	StatusShortBuffer
	StatusReadOnly
)

var statusNames = map[Status]string{
	StatusOK:          "ok",
	StatusNoDevice:    "no such device",
	StatusNotReady:    "device not ready",
	StatusOutOfRange:  "block out of range",
	StatusIOError:     "i/o error",
	StatusShortBuffer: "buffer too short",
	StatusReadOnly:    "device is read-only",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// DeviceID names the parallel-port hard drive the image stands in for.
type DeviceID string

// Supported devices
const (
	ProFile   DeviceID = "profile"
	ProFile10 DeviceID = "profile-10"
	Widget    DeviceID = "widget"
)

// DefaultBlocks is the block count of a complete drive of each type.
var DefaultBlocks = map[DeviceID]uint32{
	ProFile:   0x2600,
	ProFile10: 0x4C00,
	Widget:    0x4C00,
}

// ParseDevice validates a device name.
func ParseDevice(s string) (DeviceID, error) {
	d := DeviceID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := DefaultBlocks[d]; !ok {
		return "", fmt.Errorf("unknown device %q (profile|profile-10|widget)", s)
	}
	return d, nil
}

// Params is the retry and sparing policy owned by the primitive. A transfer
// is attempted up to Retries+1 times; a block that succeeds only after more
// than SpareThreshold attempts is recorded as spared.
type Params struct {
	Retries        int
	SpareThreshold int
}

// DefaultParams mirrors the policy the boot ROM passes to the drive.
var DefaultParams = Params{Retries: 100, SpareThreshold: 20}

// Primitive is the block I/O interface shared by the bootstrap, the chain
// loader and, after handoff, the loaded program.
type Primitive interface {
	// Setup selects the device subsequent transfers talk to.
	Setup(dev DeviceID) error
	// Init readies the selected device.
	Init() error
	// Transfer moves one block in on-device order, [tag][data]. It blocks
	// until the retry policy succeeds or gives up and reports success.
	Transfer(cmd Command, block uint32, buf []byte) bool
	// LastError is the status of the most recent operation.
	LastError() Status
}
