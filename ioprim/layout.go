package ioprim

import (
	"fmt"
	"strings"

	"hdboot/blocktag"
)

// Layout names how blocks are arranged inside an image file.
type Layout string

// Image layouts
const (
	// LayoutRaw stores 532-byte blocks back to back, tag first.
	LayoutRaw Layout = "raw"
	// LayoutUsbWidEx pads each block to 1024 bytes (IDEFile storage format).
	LayoutUsbWidEx Layout = "usbwidex"
	// LayoutDC42 is a Disk Copy 4.2 file with LisaEm's block permutation.
	LayoutDC42 Layout = "dc42"
)

// DC42 geometry
const (
	DC42HeaderSize = 84
	DC42DataLenOff = 64
	DC42TagLenOff  = 68
	usbWidExStride = 1024
	permuteGroup   = 32
)

// Deinterleave maps the n'th block of every group of 32 to its position in a
// LisaEm or BLU image, undoing the 5:1 interleave of the host OS.
var Deinterleave = [permuteGroup]int{
	0, 13, 10, 7, 4,
	1, 14, 11, 8, 5,
	2, 15, 12, 9, 6,
	3,
	16, 29, 26, 23, 20,
	17, 30, 27, 24, 21,
	18, 31, 28, 25, 22,
	19,
}

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutRaw, LayoutUsbWidEx, LayoutDC42:
		return l, nil
	}
	return "", fmt.Errorf("unknown image layout %q (raw|usbwidex|dc42)", s)
}

// PermutedIndex returns where logical block i lives in a permuted image.
func PermutedIndex(i uint32) uint32 {
	group := i / permuteGroup * permuteGroup
	return group + uint32(Deinterleave[i%permuteGroup])
}

// geometry locates the tag and data of each block in an image file.
type geometry struct {
	layout  Layout
	blocks  uint32
	dataLen int64
}

func (g geometry) tagOffset(block uint32) int64 {
	switch g.layout {
	case LayoutUsbWidEx:
		return int64(block) * usbWidExStride
	case LayoutDC42:
		return DC42HeaderSize + g.dataLen + int64(PermutedIndex(block))*blocktag.TagSize
	default:
		return int64(block) * blocktag.BlockSize
	}
}

func (g geometry) dataOffset(block uint32) int64 {
	if g.layout == LayoutDC42 {
		return DC42HeaderSize + int64(PermutedIndex(block))*blocktag.DataSize
	}
	return g.tagOffset(block) + blocktag.TagSize
}

// contiguous reports whether tag and data can be moved with one call.
func (g geometry) contiguous() bool {
	return g.layout != LayoutDC42
}
