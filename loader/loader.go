// Package loader implements the second-stage fixed-disk boot chain: the
// bootstrap that pulls in block 1, the relocator that moves the resident I/O
// code and chain loader under display memory, and the chain loader that
// reassembles the program from tagged blocks and hands it control.
package loader

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
	"hdboot/ioprim"
	"hdboot/machine"
)

// Bootstrap image geometry, relative to where the firmware put block 0.
const (
	// StagingAddress receives block 1 so that blocks 0 and 1 sit back to
	// back as one bootstrap image.
	StagingAddress = machine.BootBlockAddress + blocktag.BlockSize
	// ResidentOffset is where the I/O code and chain loader start inside the
	// bootstrap image.
	ResidentOffset uint32 = 0x34
	// ResidentAddress is the resident image's location before relocation.
	ResidentAddress = machine.BootBlockAddress + ResidentOffset
	// ResidentSize is the size of the resident image. EntryOffset must be
	// recomputed whenever it changes.
	ResidentSize uint32 = 0x2EC
	// EntryOffset is the chain loader's entry point inside the resident image.
	EntryOffset uint32 = 0x1F4
	// FirstDataBlock is the first block of the program's data stream.
	FirstDataBlock uint32 = 2
	// DefaultBlockStep is the distance between successive program blocks.
	DefaultBlockStep uint32 = 1
)

// Where block messages are drawn.
const (
	MessageRow = 20
	MessageCol = 36
)

// CodeBootFailure is the generic code reported when block 1 cannot be read.
const CodeBootFailure uint16 = 1

// ErrBadConfig is returned for inconsistent resident image geometry.
var ErrBadConfig = errors.New("invalid loader configuration")

// Machine is everything the boot chain runs against.
type Machine struct {
	Mem  *machine.Memory
	Host machine.Host
	IO   ioprim.Primitive
}

// ProgramFunc is the loaded program. It receives the boot handles and the
// load buffer it now owns.
type ProgramFunc func(h HandleSet, load []byte) error

// Progress describes one displayed block.
type Progress struct {
	Block   uint32
	Loaded  int
	Message string
}

// Config controls a boot attempt.
type Config struct {
	Device       ioprim.DeviceID
	BlockStep    uint32
	ResidentSize uint32
	EntryOffset  uint32

	// Program runs when control reaches the load address.
	Program ProgramFunc
	// Progress, when set, is called after each block's message is shown.
	// An error from it ends the boot attempt.
	Progress func(Progress) error
}

func (c Config) withDefaults() (Config, error) {
	if c.Device == "" {
		c.Device = ioprim.ProFile
	}
	if c.BlockStep == 0 {
		c.BlockStep = DefaultBlockStep
	}
	if c.ResidentSize == 0 {
		c.ResidentSize = ResidentSize
		if c.EntryOffset == 0 {
			c.EntryOffset = EntryOffset
		}
	}
	if c.EntryOffset >= c.ResidentSize {
		return c, fmt.Errorf("%w: entry offset $%X outside $%X-byte resident image", ErrBadConfig, c.EntryOffset, c.ResidentSize)
	}
	if c.Program == nil {
		c.Program = func(HandleSet, []byte) error { return nil }
	}
	return c, nil
}

// Result describes a completed boot.
type Result struct {
	Target     uint32
	Blocks     []uint32
	LoadBuffer []byte
	Handles    HandleSet
}

// Boot runs the whole chain: bootstrap, relocation and chain loading, then
// the program. The firmware must already have placed block 0 (see
// machine.Firmware.PowerOn). A *machine.MonitorError means the boot attempt
// returned to the firmware.
func Boot(m *Machine, cfg Config) (*Result, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := Bootstrap(m, cfg.Device); err != nil {
		return nil, err
	}

	res := &Result{}
	program := cfg.Program
	cfg.Program = func(h HandleSet, load []byte) error {
		res.Handles = h
		res.LoadBuffer = load
		return program(h, load)
	}

	res.Target, err = Relocate(m, cfg, func(target, step uint32) error {
		cl := NewChainLoader(m, step, target)
		cl.Progress = cfg.Progress
		cl.Program = cfg.Program
		err := cl.Run()
		res.Blocks = cl.Read
		return err
	})
	if err != nil {
		return res, err
	}
	log.Debugf("loader: program returned after %d blocks", len(res.Blocks))
	return res, nil
}
