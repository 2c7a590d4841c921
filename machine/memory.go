// Package machine simulates the parts of the host computer the boot chain
// touches: RAM with its reserved regions, the bitmapped display and the boot
// firmware's service entry points.
package machine

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Memory map
const (
	// LowReservedEnd bounds the firmware-owned low memory.
	LowReservedEnd uint32 = 0x800
	// LoadAddress is where the loaded program's first byte goes and where
	// control is transferred once loading completes.
	LoadAddress uint32 = 0x800
	// DisplaySize is the display memory reserved at the top of RAM.
	DisplaySize uint32 = 0x8000
	// TopOfMemoryAddr holds the long the firmware stores the RAM size in.
	TopOfMemoryAddr uint32 = 0x2A8
	// BootBlockAddress receives block 0, tag first, during the firmware's
	// own boot probe. Its data starts at 0x20000.
	BootBlockAddress uint32 = 0x1FFEC
	// MinMemory is the smallest RAM the boot path can run in.
	MinMemory uint32 = 0x40000
)

var (
	// ErrOutOfRange is returned for accesses past the end of RAM.
	ErrOutOfRange = errors.New("address out of range")
	// ErrProtected is returned for loader writes into reserved regions.
	ErrProtected = errors.New("write into reserved memory")
	// ErrNoEntry is returned when jumping to an address with no code.
	ErrNoEntry = errors.New("no code at jump target")
)

// EntryFunc is code that can receive control at an address.
type EntryFunc func() error

// Segment describes a copy of Size bytes from Src to Dst.
type Segment struct {
	Src, Dst, Size uint32
}

func (s Segment) String() string {
	return fmt.Sprintf("$%06X..$%06X -> $%06X", s.Src, s.Src+s.Size, s.Dst)
}

// Memory is byte-addressable RAM plus a table of code entry points.
type Memory struct {
	ram     []byte
	entries map[uint32]EntryFunc
}

// NewMemory allocates size bytes of RAM and records size as the
// top-of-memory value the firmware reports.
func NewMemory(size uint32) (*Memory, error) {
	if size < MinMemory {
		return nil, fmt.Errorf("memory size $%X below minimum $%X", size, MinMemory)
	}
	m := &Memory{ram: make([]byte, size), entries: make(map[uint32]EntryFunc)}
	binary.BigEndian.PutUint32(m.ram[TopOfMemoryAddr:], size)
	return m, nil
}

// Size returns the RAM size.
func (m *Memory) Size() uint32 { return uint32(len(m.ram)) }

// DisplayBase is the first byte of display memory.
func (m *Memory) DisplayBase() uint32 { return m.Size() - DisplaySize }

func (m *Memory) check(addr, n uint32) error {
	if uint64(addr)+uint64(n) > uint64(len(m.ram)) {
		return fmt.Errorf("%w: $%X+%d", ErrOutOfRange, addr, n)
	}
	return nil
}

// Protected reports whether [addr, addr+n) touches the firmware's low memory
// or display memory.
func (m *Memory) Protected(addr, n uint32) bool {
	if n == 0 {
		return false
	}
	end := uint64(addr) + uint64(n)
	return uint64(addr) < uint64(LowReservedEnd) || end > uint64(m.DisplayBase())
}

// Slice returns a view of n bytes at addr. Writes through the view are not
// checked against reserved regions; use Store or Copy for that.
func (m *Memory) Slice(addr, n uint32) ([]byte, error) {
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	return m.ram[addr : addr+n : addr+n], nil
}

// Read returns a copy of n bytes at addr.
func (m *Memory) Read(addr, n uint32) ([]byte, error) {
	b, err := m.Slice(addr, n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Store writes b at addr, refusing reserved regions.
func (m *Memory) Store(addr uint32, b []byte) error {
	n := uint32(len(b))
	if err := m.check(addr, n); err != nil {
		return err
	}
	if m.Protected(addr, n) {
		return fmt.Errorf("%w: $%X+%d", ErrProtected, addr, n)
	}
	copy(m.ram[addr:], b)
	return nil
}

// Poke writes b at addr with no region checks. Only firmware uses it.
func (m *Memory) Poke(addr uint32, b []byte) error {
	if err := m.check(addr, uint32(len(b))); err != nil {
		return err
	}
	copy(m.ram[addr:], b)
	return nil
}

// Copy moves a segment byte for byte. Overlapping ranges are handled.
func (m *Memory) Copy(s Segment) error {
	if err := m.check(s.Src, s.Size); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	if err := m.check(s.Dst, s.Size); err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	if m.Protected(s.Dst, s.Size) {
		return fmt.Errorf("copy %s: %w", s, ErrProtected)
	}
	copy(m.ram[s.Dst:s.Dst+s.Size], m.ram[s.Src:s.Src+s.Size])
	return nil
}

// Long reads a big-endian 32-bit value.
func (m *Memory) Long(addr uint32) (uint32, error) {
	if err := m.check(addr, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(m.ram[addr:]), nil
}

// PutLong writes a big-endian 32-bit value with no region checks.
func (m *Memory) PutLong(addr, v uint32) error {
	if err := m.check(addr, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m.ram[addr:], v)
	return nil
}

// Map installs code at addr.
func (m *Memory) Map(addr uint32, fn EntryFunc) {
	m.entries[addr] = fn
}

// Unmap removes code at addr; the bytes stay where they are.
func (m *Memory) Unmap(addr uint32) {
	delete(m.entries, addr)
}

// Jump transfers control to the code at addr and returns whatever it
// returns.
func (m *Memory) Jump(addr uint32) error {
	fn, ok := m.entries[addr]
	if !ok {
		return fmt.Errorf("%w: $%06X", ErrNoEntry, addr)
	}
	return fn()
}
