package loader

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
	"hdboot/machine"
)

// ErrNoRoom is returned by CheckLayout when the relocated image would land
// in reserved or already used low memory.
var ErrNoRoom = errors.New("not enough memory to relocate the resident image")

// RelocationTarget is where the resident image goes: directly below display
// memory at the top of RAM.
func RelocationTarget(top, display, size uint32) uint32 {
	return top - display - size
}

// CheckLayout verifies the relocation arithmetic for a memory size. The boot
// chain itself never calls it: enough memory is the operator's job.
func CheckLayout(top, display, size uint32) error {
	if uint64(display)+uint64(size) > uint64(top) {
		return fmt.Errorf("%w: top $%X smaller than display $%X plus image $%X", ErrNoRoom, top, display, size)
	}
	target := RelocationTarget(top, display, size)
	if target < machine.LowReservedEnd {
		return fmt.Errorf("%w: target $%X inside reserved low memory", ErrNoRoom, target)
	}
	if used := StagingAddress + blocktag.BlockSize; target < used {
		return fmt.Errorf("%w: target $%X below bootstrap image end $%X", ErrNoRoom, target, used)
	}
	return nil
}

// EntryFunc is the relocated chain loader. It gets the relocation target and
// the preserved block step.
type EntryFunc func(target, step uint32) error

// Relocate copies the resident image under display memory, installs the
// chain loader at its new entry point and jumps there. The copy in the
// staging area is dead from then on.
func Relocate(m *Machine, cfg Config, entry EntryFunc) (uint32, error) {
	target := RelocationTarget(m.Host.TopOfMemory(), machine.DisplaySize, cfg.ResidentSize)
	seg := machine.Segment{Src: ResidentAddress, Dst: target, Size: cfg.ResidentSize}
	if err := m.Mem.Copy(seg); err != nil {
		return target, fmt.Errorf("relocate: %w", err)
	}
	step := cfg.BlockStep
	at := target + cfg.EntryOffset
	m.Mem.Map(at, func() error { return entry(target, step) })
	log.Debugf("loader: relocated %s, entry $%06X", seg, at)
	return target, m.Mem.Jump(at)
}
