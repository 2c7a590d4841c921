package blocktag

import (
	"bytes"
	"errors"
	"testing"
)

func patterned(seed byte) []byte {
	data := make([]byte, DataSize)
	for i := range data {
		data[i] = byte(i*7) ^ seed
	}
	return data
}

func TestChecksumKnownValues(t *testing.T) {
	zero := make([]byte, DataSize)
	if got := Checksum(zero); got != 0 {
		t.Errorf("Checksum(zeros) = %#04x, want 0", got)
	}

	// One word 0x0001 followed by 255 zero words rotates the bit 256 times,
	// which is 16 full turns of a 16-bit register.
	one := make([]byte, DataSize)
	one[1] = 0x01
	if got := Sum(one); got != 0x0001 {
		t.Errorf("Sum = %#04x, want 0x0001", got)
	}
	if got := Checksum(one); got != 0xFFFF {
		t.Errorf("Checksum = %#04x, want 0xffff", got)
	}

	short := []byte{0x80, 0x00}
	if got := Sum(short); got != 0x0001 {
		t.Errorf("Sum(8000) = %#04x, want 0x0001 after rotate", got)
	}
}

func TestChecksumIsTwosComplement(t *testing.T) {
	data := patterned(0x5A)
	if Sum(data)+Checksum(data) != 0 {
		t.Fatalf("Sum + Checksum should wrap to zero")
	}
	if !Verify(data, Checksum(data)) {
		t.Fatalf("Verify rejected its own checksum")
	}
}

func TestSingleByteMutationDetected(t *testing.T) {
	data := patterned(0x11)
	sum := Checksum(data)
	for i := 0; i < DataSize; i++ {
		for _, flip := range []byte{0x01, 0x80, 0xFF, 0x3C} {
			mutated := append([]byte(nil), data...)
			mutated[i] ^= flip
			if Verify(mutated, sum) {
				t.Fatalf("mutation at byte %d (xor %#02x) not detected", i, flip)
			}
		}
	}
}

func TestSwapRoundTrip(t *testing.T) {
	data := patterned(0x42)
	tag := NewTag(data, [MessageSize]byte{'H', 'E', 'L', 'L', 'O'})
	block := Assemble(data, tag)
	orig := append([]byte(nil), block...)

	if err := Swap(block); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !bytes.Equal(block[:DataSize], data) {
		t.Errorf("data not at front after swap")
	}
	if !bytes.Equal(block[DataSize:], tag.Bytes()) {
		t.Errorf("tag not at back after swap")
	}
	if err := Unswap(block); err != nil {
		t.Fatalf("Unswap: %v", err)
	}
	if !bytes.Equal(block, orig) {
		t.Errorf("Unswap did not restore the original block")
	}
}

func TestSwapShortBuffer(t *testing.T) {
	if err := Swap(make([]byte, BlockSize-1)); !errors.Is(err, ErrShortBlock) {
		t.Errorf("Swap(short) error = %v, want ErrShortBlock", err)
	}
	if err := Unswap(make([]byte, 10)); !errors.Is(err, ErrShortBlock) {
		t.Errorf("Unswap(short) error = %v, want ErrShortBlock", err)
	}
}

func TestIsTerminal(t *testing.T) {
	// The prototype's zero is its last byte, so a difference there is still
	// a mismatch.
	lastByte := Terminator
	lastByte[17] = 'X'

	early := Terminator
	early[3] = 'T'

	tests := []struct {
		name string
		msg  []byte
		want bool
	}{
		{"exact", Terminator[:], true},
		{"zero byte differs", lastByte[:], false},
		{"early mismatch", early[:], false},
		{"display tag", []byte("READ 0.5K...      "), false},
		{"too short", Terminator[:5], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTerminal(tt.msg); got != tt.want {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestIsTerminalIgnoresBytesAfterPrototypeZero(t *testing.T) {
	saved := Terminator
	defer func() { Terminator = saved }()

	Terminator = [MessageSize]byte{'E', 'N', 'D', 0x00, 'A', 'B', 'C'}
	candidate := []byte{'E', 'N', 'D', 0x00, 'Z', 'Z', 'Z', 'Z'}
	if !IsTerminal(candidate) {
		t.Errorf("bytes after the prototype zero should not be compared")
	}
	if IsTerminal([]byte{'E', 'N', 'X', 0x00}) {
		t.Errorf("mismatch before the zero byte should not match")
	}
}

func TestDisplayText(t *testing.T) {
	if got := DisplayText([]byte("ABC\x00DEF")); string(got) != "ABC" {
		t.Errorf("DisplayText = %q, want ABC", got)
	}
	if got := DisplayText([]byte("NO ZERO")); string(got) != "NO ZERO" {
		t.Errorf("DisplayText = %q, want NO ZERO", got)
	}
	if got := DisplayText(Terminator[:]); string(got) != " bit.ly/3arucNJ  " {
		t.Errorf("DisplayText(Terminator) = %q", got)
	}
}

func TestPadMessage(t *testing.T) {
	m, err := PadMessage("READ 1.0K...")
	if err != nil {
		t.Fatalf("PadMessage: %v", err)
	}
	if string(m[:]) != "READ 1.0K...      " {
		t.Errorf("PadMessage = %q", m)
	}

	m, err = PadMessage("ABCDEFGHIJKLMNOPQRSTUV")
	if err != nil {
		t.Fatalf("PadMessage long: %v", err)
	}
	if string(m[:]) != "ABCDEFGHIJKLMNOPQR" {
		t.Errorf("long message not clipped: %q", m)
	}

	if _, err := PadMessage("lowercase"); !errors.Is(err, ErrBadCharset) {
		t.Errorf("lowercase accepted, err = %v", err)
	}
}

func TestTagRoundTrip(t *testing.T) {
	tag := Tag{Checksum: 0xBEEF, Message: Terminator}
	got, err := ParseTag(tag.Bytes())
	if err != nil {
		t.Fatalf("ParseTag: %v", err)
	}
	if got != tag || !got.IsTerminal() {
		t.Errorf("ParseTag = %+v, want %+v", got, tag)
	}
	if _, err := ParseTag(make([]byte, 5)); err == nil {
		t.Errorf("ParseTag accepted a short tag")
	}
}
