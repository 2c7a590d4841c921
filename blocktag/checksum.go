package blocktag

import (
	"encoding/binary"
	"fmt"
)

// Sum accumulates the data words the way the boot ROM does: add each
// big-endian word, then rotate the 16-bit accumulator left by one.
func Sum(data []byte) uint16 {
	var acc uint16
	for i := 0; i+1 < len(data); i += 2 {
		acc += binary.BigEndian.Uint16(data[i:])
		acc = acc<<1 | acc>>15
	}
	if len(data)%2 == 1 {
		acc += uint16(data[len(data)-1]) << 8
		acc = acc<<1 | acc>>15
	}
	return acc
}

// Checksum is the value stored in a tag: the two's complement of Sum.
func Checksum(data []byte) uint16 {
	return -Sum(data)
}

// Verify reports whether sum is the stored checksum for data.
func Verify(data []byte, sum uint16) bool {
	return Checksum(data) == sum
}

// Swap rearranges a block read from the device, [tag][data], into
// [data][tag] in place.
func Swap(block []byte) error {
	if len(block) < BlockSize {
		return fmt.Errorf("swap: %w", ErrShortBlock)
	}
	var tag [TagSize]byte
	copy(tag[:], block[:TagSize])
	copy(block, block[TagSize:BlockSize])
	copy(block[DataSize:BlockSize], tag[:])
	return nil
}

// Unswap is the inverse of Swap: [data][tag] back to [tag][data].
func Unswap(block []byte) error {
	if len(block) < BlockSize {
		return fmt.Errorf("unswap: %w", ErrShortBlock)
	}
	var tag [TagSize]byte
	copy(tag[:], block[DataSize:BlockSize])
	copy(block[TagSize:BlockSize], block[:DataSize])
	copy(block[:TagSize], tag[:])
	return nil
}

// Assemble returns a block in on-device order for the given data and tag.
func Assemble(data []byte, t Tag) []byte {
	b := make([]byte, BlockSize)
	copy(b, t.Bytes())
	copy(b[TagSize:], data)
	return b
}
