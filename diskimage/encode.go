package diskimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"hdboot/blocktag"
	"hdboot/ioprim"
)

// Format is an output image format.
type Format string

// Image formats
const (
	// FormatRaw is every block, tag then data, in linear order. Used by the
	// IDLE emulator and the Cameo/Aphid drive emulator.
	FormatRaw Format = "raw"
	// FormatUsbWidEx is raw with each block padded to 1024 bytes, the
	// storage format of the IDEFile drive emulator.
	FormatUsbWidEx Format = "usbwidex"
	// FormatDC42 is a Disk Copy 4.2 file as read by the LisaEm emulator.
	FormatDC42 Format = "dc42"
	// FormatBLU is an image for the Basic Lisa Utility.
	FormatBLU Format = "blu"
)

// Formats lists every supported format.
var Formats = []Format{FormatDC42, FormatBLU, FormatRaw, FormatUsbWidEx}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unrecognised disk image format %q", s)
}

// Layout returns the block layout a Drive needs to read this format back.
func (f Format) Layout() (ioprim.Layout, error) {
	switch f {
	case FormatRaw:
		return ioprim.LayoutRaw, nil
	case FormatUsbWidEx:
		return ioprim.LayoutUsbWidEx, nil
	case FormatDC42:
		return ioprim.LayoutDC42, nil
	}
	return "", fmt.Errorf("format %q cannot be booted directly", f)
}

// Encode serialises img in the given format.
func Encode(img *Image, f Format) ([]byte, error) {
	switch f {
	case FormatRaw:
		var b bytes.Buffer
		for i := range img.Data {
			b.Write(img.Tags[i])
			b.Write(img.Data[i])
		}
		return b.Bytes(), nil
	case FormatUsbWidEx:
		pad := make([]byte, 1024-blocktag.BlockSize)
		var b bytes.Buffer
		for i := range img.Data {
			b.Write(img.Tags[i])
			b.Write(img.Data[i])
			b.Write(pad)
		}
		return b.Bytes(), nil
	case FormatDC42:
		return encodeDC42(img), nil
	case FormatBLU:
		return encodeBLU(img)
	}
	return nil, fmt.Errorf("unrecognised disk image format %q", f)
}

// permute places every item at its deinterleaved position, padding the last
// group of 32 with zero items of the same size.
func permute(items [][]byte) [][]byte {
	if len(items) == 0 {
		return nil
	}
	groups := (len(items) + 31) / 32
	out := make([][]byte, groups*32)
	zero := make([]byte, len(items[0]))
	for i := range out {
		out[i] = zero
	}
	for i, it := range items {
		out[ioprim.PermutedIndex(uint32(i))] = it
	}
	return out
}

// DC42 header fields
var (
	dc42Name     = "-not a Macintosh disk-"
	dc42Encoding = byte(0x5D)
	dc42Format   = byte(0x93)
	dc42Magic    = uint16(0x0100)
)

func encodeDC42(img *Image) []byte {
	data := bytes.Join(permute(img.Data), nil)
	tags := bytes.Join(permute(img.Tags), nil)

	hdr := make([]byte, ioprim.DC42HeaderSize)
	hdr[0] = byte(len(dc42Name))
	copy(hdr[1:64], dc42Name)
	binary.BigEndian.PutUint32(hdr[64:], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[68:], uint32(len(tags)))
	binary.BigEndian.PutUint32(hdr[72:], DC42Checksum(data))
	tagSum := uint32(0)
	if len(tags) > 12 {
		tagSum = DC42Checksum(tags[12:])
	}
	binary.BigEndian.PutUint32(hdr[76:], tagSum)
	hdr[80] = dc42Encoding
	hdr[81] = dc42Format
	binary.BigEndian.PutUint16(hdr[82:], dc42Magic)

	out := make([]byte, 0, len(hdr)+len(data)+len(tags))
	out = append(out, hdr...)
	out = append(out, data...)
	return append(out, tags...)
}

// DC42Checksum adds each big-endian word to a 32-bit sum and rotates the sum
// right by one bit.
func DC42Checksum(b []byte) uint32 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
		sum = sum>>1 | sum<<31
	}
	return sum
}

// bluID is the identification block BLU puts in front of an image.
var bluID = map[ioprim.DeviceID][]byte{
	ioprim.ProFile: []byte("PROFILE      " +
		"\x00\x00\x00" + "\x03\x98" + "\x00\x26\x00" + "\x02\x14" +
		"\x20" + "\x00" + "\x00" + "\xff\xff\xff" + "\xff\xff\xff"),
	ioprim.ProFile10: []byte("PROFILE 10M  " +
		"\x00\x00\x01" + "\x04\x04" + "\x00\x4C\x00" + "\x02\x14" +
		"\x20" + "\x00" + "\x00" + "\xff\xff\xff" + "\xff\xff\xff"),
	ioprim.Widget: []byte("Widget-10    " +
		"\x00\x01\x00" + "\x1a\x45" + "\x00\x4c\x00" + "\x02\x14" +
		"\x02\x02" + "\x02" + "\x13" + "\x00\x00\x4c" + "\x00\x00\x00" + "\x00\x00\x00"),
}

// bluIDTag is BLU's own calling card; other tools may treat it as magic.
const bluIDTag = "Lisa HD Img BLUV0.90"

func encodeBLU(img *Image) ([]byte, error) {
	id, ok := bluID[img.Device]
	if !ok {
		return nil, fmt.Errorf("creating blu images for %s isn't supported", img.Device)
	}
	head := make([]byte, blocktag.DataSize, blocktag.BlockSize)
	copy(head, id)
	head = append(head, bluIDTag...)

	// BLU stores data before tags. For Widgets it also moves the tags back
	// after the data when writing, so those blocks go in tag first.
	blocks := make([][]byte, len(img.Data))
	for i := range img.Data {
		if img.Device == ioprim.Widget {
			blocks[i] = append(append([]byte(nil), img.Tags[i]...), img.Data[i]...)
		} else {
			blocks[i] = append(append([]byte(nil), img.Data[i]...), img.Tags[i]...)
		}
	}
	if img.Device != ioprim.Widget {
		blocks = permute(blocks)
	}
	return bytes.Join(append([][]byte{head}, blocks...), nil), nil
}
