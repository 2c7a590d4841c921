// Package blocktag implements the on-disk block format read by the fixed-disk
// boot chain: 512 data bytes paired with a 20-byte tag holding a checksum and
// an 18-byte display string.
package blocktag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Block geometry
const (
	DataSize    = 512
	TagSize     = 20
	BlockSize   = DataSize + TagSize
	MessageSize = TagSize - 2
)

// Terminator is the message that marks the final block of a load sequence.
// Only the bytes up to and including its first zero byte are significant.
var Terminator = [MessageSize]byte{
	' ', 'b', 'i', 't', '.', 'l', 'y', '/', '3', 'a', 'r', 'u', 'c', 'N', 'J', ' ', ' ', 0x00,
}

// Charset lists the characters the host firmware font can draw.
const Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ ./-?"

var (
	// ErrShortBlock is returned when a buffer is smaller than BlockSize.
	ErrShortBlock = errors.New("block buffer shorter than 532 bytes")
	// ErrBadCharset is returned for display strings the firmware cannot draw.
	ErrBadCharset = errors.New("message has characters outside the display charset")
)

// Tag is the metadata stored with every block.
type Tag struct {
	Checksum uint16
	Message  [MessageSize]byte
}

// ParseTag decodes a 20-byte tag.
func ParseTag(b []byte) (Tag, error) {
	var t Tag
	if len(b) < TagSize {
		return t, fmt.Errorf("tag is %d bytes, need %d", len(b), TagSize)
	}
	t.Checksum = binary.BigEndian.Uint16(b[0:2])
	copy(t.Message[:], b[2:TagSize])
	return t, nil
}

// Bytes encodes the tag in its 20-byte stored form.
func (t Tag) Bytes() []byte {
	b := make([]byte, TagSize)
	binary.BigEndian.PutUint16(b[0:2], t.Checksum)
	copy(b[2:], t.Message[:])
	return b
}

// IsTerminal reports whether the tag marks the end of the load sequence.
func (t Tag) IsTerminal() bool {
	return IsTerminal(t.Message[:])
}

// NewTag builds the tag for a data block with the given message.
func NewTag(data []byte, msg [MessageSize]byte) Tag {
	return Tag{Checksum: Checksum(data), Message: msg}
}

// IsTerminal compares msg against Terminator through the prototype's first
// zero byte. Anything after that byte, in either string, is ignored.
func IsTerminal(msg []byte) bool {
	for i, want := range Terminator {
		if i >= len(msg) || msg[i] != want {
			return false
		}
		if want == 0 {
			return true
		}
	}
	return true
}

// DisplayText returns the part of msg shown on screen: everything before the
// first zero byte.
func DisplayText(msg []byte) []byte {
	for i, c := range msg {
		if c == 0 {
			return msg[:i]
		}
	}
	return msg
}

// ValidateMessage checks that every character of s can be drawn by the firmware.
func ValidateMessage(s string) error {
	for _, r := range s {
		if !strings.ContainsRune(Charset, r) {
			return fmt.Errorf("%w: %q", ErrBadCharset, s)
		}
	}
	return nil
}

// PadMessage converts s into a stored message: clipped to 18 bytes, space
// padded when shorter.
func PadMessage(s string) ([MessageSize]byte, error) {
	var m [MessageSize]byte
	if err := ValidateMessage(s); err != nil {
		return m, err
	}
	if len(s) > MessageSize {
		log.Warnf("tag %q will be clipped to %d bytes", s, MessageSize)
		s = s[:MessageSize]
	}
	copy(m[:], s)
	for i := len(s); i < MessageSize; i++ {
		m[i] = ' '
	}
	return m, nil
}
