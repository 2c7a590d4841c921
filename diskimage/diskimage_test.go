package diskimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"hdboot/blocktag"
	"hdboot/ioprim"
)

func program(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*13 + 1)
	}
	return p
}

func TestBuildClipped(t *testing.T) {
	img, err := Build(program(1300), Options{Clip: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if img.ProgramBlocks != 3 || img.Blocks() != 5 {
		t.Fatalf("ProgramBlocks=%d Blocks=%d, want 3 and 5", img.ProgramBlocks, img.Blocks())
	}

	boot := Bootloader()
	if !bytes.Equal(img.Block(0), boot[:blocktag.BlockSize]) {
		t.Errorf("block 0 is not the start of the bootloader")
	}

	wantMsgs := []string{"READ 0.5K...      ", "READ 1.0K...      "}
	for i := 2; i < 5; i++ {
		tag, err := blocktag.ParseTag(img.Tags[i])
		if err != nil {
			t.Fatal(err)
		}
		if !blocktag.Verify(img.Data[i], tag.Checksum) {
			t.Errorf("block %d checksum does not verify", i)
		}
		if i == 4 {
			if !tag.IsTerminal() {
				t.Errorf("last program block is not terminal: %q", tag.Message)
			}
			continue
		}
		if got := string(tag.Message[:]); got != wantMsgs[i-2] {
			t.Errorf("block %d message %q, want %q", i, got, wantMsgs[i-2])
		}
	}

	var joined []byte
	for _, d := range img.Data[2:] {
		joined = append(joined, d...)
	}
	if !bytes.Equal(joined[:1300], program(1300)) {
		t.Errorf("program data not laid out in order")
	}
	if !bytes.Equal(joined[1300:], make([]byte, 3*512-1300)) {
		t.Errorf("final block not zero padded")
	}
}

func TestBuildDeviceDefaultsAndPadding(t *testing.T) {
	img, err := Build(program(100), Options{Device: ioprim.Widget, Blocks: 40})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if img.Blocks() != 40 {
		t.Fatalf("Blocks = %d", img.Blocks())
	}
	for i := 3; i < 40; i++ {
		if !bytes.Equal(img.Tags[i], make([]byte, blocktag.TagSize)) {
			t.Fatalf("padding block %d has a tag", i)
		}
	}

	full, err := Build(program(10), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if full.Blocks() != int(ioprim.DefaultBlocks[ioprim.ProFile]) {
		t.Errorf("default profile image has %d blocks", full.Blocks())
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(nil, Options{}); !errors.Is(err, ErrEmptyProgram) {
		t.Errorf("empty program: %v", err)
	}
	if _, err := Build(program(2000), Options{Blocks: 4}); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized program: %v", err)
	}
	if _, err := Build(program(10), Options{Bootloader: make([]byte, BootloaderSize+1)}); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized bootloader: %v", err)
	}
	if _, err := Build(program(10), Options{Blocks: 2}); err == nil {
		t.Errorf("two-block image accepted")
	}
	if _, err := Build(program(10), Options{Device: "floppy"}); err == nil {
		t.Errorf("unknown device accepted")
	}

	tags := NewFileTags(strings.NewReader("ONE\n"))
	if _, err := Build(program(3*512), Options{Clip: true, Tags: tags}); !errors.Is(err, ErrOutOfTags) {
		t.Errorf("short tag file: %v", err)
	}
	bad := NewFileTags(strings.NewReader("lower\n"))
	if _, err := Build(program(2*512), Options{Clip: true, Tags: bad}); !errors.Is(err, blocktag.ErrBadCharset) {
		t.Errorf("lowercase tag: %v", err)
	}
}

func TestFileTags(t *testing.T) {
	ft := NewFileTags(strings.NewReader("FIRST\r\nSECOND\n"))
	for _, want := range []string{"FIRST", "SECOND"} {
		got, err := ft.Next()
		if err != nil || got != want {
			t.Fatalf("Next = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := ft.Next(); !errors.Is(err, ErrOutOfTags) {
		t.Errorf("Next at EOF: %v", err)
	}
}

func TestEncodeReadsBack(t *testing.T) {
	img, err := Build(program(5000), Options{Blocks: 45})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []Format{FormatRaw, FormatUsbWidEx, FormatDC42} {
		t.Run(string(f), func(t *testing.T) {
			enc, err := Encode(img, f)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			layout, err := f.Layout()
			if err != nil {
				t.Fatal(err)
			}
			d := ioprim.NewDrive(ioprim.NewMemMedia(enc), layout, ioprim.DefaultParams)
			if err := d.Setup(ioprim.ProFile); err != nil {
				t.Fatalf("Setup: %v", err)
			}
			if err := d.Init(); err != nil {
				t.Fatal(err)
			}
			buf := make([]byte, blocktag.BlockSize)
			for i := 0; i < img.Blocks(); i++ {
				if !d.Transfer(ioprim.Read, uint32(i), buf) {
					t.Fatalf("read block %d: %v", i, d.LastError())
				}
				if !bytes.Equal(buf, img.Block(i)) {
					t.Fatalf("block %d differs after %s round trip", i, f)
				}
			}
		})
	}
}

func TestEncodeDC42Header(t *testing.T) {
	img, _ := Build(program(600), Options{Clip: true})
	enc, err := Encode(img, FormatDC42)
	if err != nil {
		t.Fatal(err)
	}
	if enc[0] != 22 || string(enc[1:23]) != "-not a Macintosh disk-" {
		t.Errorf("bad dc42 name %q", enc[:23])
	}
	dataLen := binary.BigEndian.Uint32(enc[64:])
	tagLen := binary.BigEndian.Uint32(enc[68:])
	if dataLen != 32*512 || tagLen != 32*20 {
		t.Errorf("dataLen=%d tagLen=%d, want one padded group", dataLen, tagLen)
	}
	if enc[80] != 0x5D || enc[81] != 0x93 || enc[82] != 0x01 || enc[83] != 0x00 {
		t.Errorf("bad dc42 trailer bytes % x", enc[80:84])
	}
	if got := binary.BigEndian.Uint32(enc[72:]); got != DC42Checksum(enc[84:84+dataLen]) {
		t.Errorf("data checksum mismatch")
	}
	if len(enc) != 84+int(dataLen+tagLen) {
		t.Errorf("image length %d", len(enc))
	}
}

func TestDC42Checksum(t *testing.T) {
	if got := DC42Checksum([]byte{0x00, 0x02}); got != 1 {
		t.Errorf("DC42Checksum(0002) = %#x, want 1", got)
	}
	if got := DC42Checksum([]byte{0x00, 0x01}); got != 0x80000000 {
		t.Errorf("DC42Checksum(0001) = %#x, want 0x80000000", got)
	}
}

func TestEncodeBLU(t *testing.T) {
	img, _ := Build(program(600), Options{Clip: true})
	enc, err := Encode(img, FormatBLU)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(enc, []byte("PROFILE      ")) {
		t.Errorf("missing BLU id block")
	}
	if string(enc[512:532]) != bluIDTag {
		t.Errorf("id tag = %q", enc[512:532])
	}
	if len(enc) != blocktag.BlockSize*(1+32) {
		t.Errorf("profile BLU image should be one permuted group, got %d bytes", len(enc))
	}
	// Block 0 stays in place and is stored data first.
	if !bytes.Equal(enc[532:532+512], img.Data[0]) {
		t.Errorf("block 0 data not first")
	}

	w, _ := Build(program(600), Options{Device: ioprim.Widget, Clip: true})
	enc, err = Encode(w, FormatBLU)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != blocktag.BlockSize*(1+4) {
		t.Errorf("widget BLU image is not permuted, got %d bytes", len(enc))
	}
	if !bytes.Equal(enc[532:552], w.Tags[0]) {
		t.Errorf("widget blocks should be stored tag first")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("DC42"); err != nil || f != FormatDC42 {
		t.Errorf("ParseFormat(DC42) = %v, %v", f, err)
	}
	if _, err := ParseFormat("vhd"); err == nil {
		t.Errorf("vhd accepted")
	}
	if _, err := FormatBLU.Layout(); err == nil {
		t.Errorf("blu should not be bootable directly")
	}
}
