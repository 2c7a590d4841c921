package ioprim

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hdboot/blocktag"
)

func testBlock(i int) []byte {
	data := make([]byte, blocktag.DataSize)
	for j := range data {
		data[j] = byte(i + j)
	}
	msg, _ := blocktag.PadMessage("BLOCK")
	return blocktag.Assemble(data, blocktag.NewTag(data, msg))
}

func rawImage(n int, stride int) []byte {
	img := make([]byte, n*stride)
	for i := 0; i < n; i++ {
		copy(img[i*stride:], testBlock(i))
	}
	return img
}

func readyDrive(t *testing.T, m Media, l Layout, p Params) *Drive {
	t.Helper()
	d := NewDrive(m, l, p)
	if err := d.Setup(ProFile); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d
}

func TestDriveReadLayouts(t *testing.T) {
	tests := []struct {
		layout Layout
		stride int
	}{
		{LayoutRaw, blocktag.BlockSize},
		{LayoutUsbWidEx, usbWidExStride},
	}
	for _, tt := range tests {
		t.Run(string(tt.layout), func(t *testing.T) {
			d := readyDrive(t, NewMemMedia(rawImage(6, tt.stride)), tt.layout, DefaultParams)
			if d.Blocks() != 6 {
				t.Fatalf("Blocks = %d, want 6", d.Blocks())
			}
			buf := make([]byte, blocktag.BlockSize)
			for i := 0; i < 6; i++ {
				if !d.Transfer(Read, uint32(i), buf) {
					t.Fatalf("read block %d: %v", i, d.LastError())
				}
				if !bytes.Equal(buf, testBlock(i)) {
					t.Fatalf("block %d contents differ", i)
				}
			}
			if d.Stats().Reads != 6 {
				t.Errorf("Reads = %d, want 6", d.Stats().Reads)
			}
		})
	}
}

func TestDriveStatusCodes(t *testing.T) {
	d := NewDrive(NewMemMedia(rawImage(3, blocktag.BlockSize)), LayoutRaw, DefaultParams)
	buf := make([]byte, blocktag.BlockSize)

	if d.Transfer(Read, 0, buf) || d.LastError() != StatusNotReady {
		t.Errorf("transfer before init: status %v", d.LastError())
	}
	if err := d.Setup("floppy"); err == nil || d.LastError() != StatusNoDevice {
		t.Errorf("Setup(floppy) = %v, status %v", err, d.LastError())
	}
	if err := d.Init(); err == nil {
		t.Errorf("Init without Setup succeeded")
	}

	d = readyDrive(t, NewMemMedia(rawImage(3, blocktag.BlockSize)), LayoutRaw, DefaultParams)
	if d.Transfer(Read, 3, buf) || d.LastError() != StatusOutOfRange {
		t.Errorf("out of range: status %v", d.LastError())
	}
	if d.Transfer(Read, 0, buf[:100]) || d.LastError() != StatusShortBuffer {
		t.Errorf("short buffer: status %v", d.LastError())
	}
	if !d.Transfer(Read, 0, buf) || d.LastError() != StatusOK {
		t.Errorf("good read: status %v", d.LastError())
	}
}

func TestDriveWrite(t *testing.T) {
	mem := NewMemMedia(rawImage(4, blocktag.BlockSize))
	d := readyDrive(t, mem, LayoutRaw, DefaultParams)

	want := testBlock(9)
	if !d.Transfer(Write, 2, want) {
		t.Fatalf("write: %v", d.LastError())
	}
	got := make([]byte, blocktag.BlockSize)
	if !d.Transfer(Read, 2, got) || !bytes.Equal(got, want) {
		t.Fatalf("read back after write differs")
	}

	mem.ReadOnly = true
	if d.Transfer(Write, 1, want) || d.LastError() != StatusReadOnly {
		t.Errorf("write to read-only media: status %v", d.LastError())
	}
	if d.Stats().Retries != 0 {
		t.Errorf("read-only failure should not be retried, retries = %d", d.Stats().Retries)
	}
}

// flaky fails the first n reads at a given offset.
type flaky struct {
	*MemMedia
	off   int64
	fails int
}

func (f *flaky) ReadAt(p []byte, off int64) (int, error) {
	if off == f.off && f.fails > 0 {
		f.fails--
		return 0, errors.New("crc error")
	}
	return f.MemMedia.ReadAt(p, off)
}

func TestDriveRetryAndSparing(t *testing.T) {
	m := &flaky{MemMedia: NewMemMedia(rawImage(4, blocktag.BlockSize)), off: 2 * blocktag.BlockSize, fails: 4}
	d := readyDrive(t, m, LayoutRaw, Params{Retries: 10, SpareThreshold: 2})

	buf := make([]byte, blocktag.BlockSize)
	if !d.Transfer(Read, 2, buf) {
		t.Fatalf("read with retries failed: %v", d.LastError())
	}
	if d.Stats().Retries != 4 {
		t.Errorf("Retries = %d, want 4", d.Stats().Retries)
	}
	if sp := d.Spared(); len(sp) != 1 || sp[0] != 2 {
		t.Errorf("Spared = %v, want [2]", sp)
	}

	m.fails = 100
	if d.Transfer(Read, 2, buf) || d.LastError() != StatusIOError {
		t.Errorf("exhausted retries: status %v", d.LastError())
	}
}

func TestFileMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.raw")
	if err := os.WriteFile(path, rawImage(3, blocktag.BlockSize), 0o644); err != nil {
		t.Fatal(err)
	}
	fm, err := OpenFile(path, false)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer fm.Close()

	size, err := fm.Size()
	if err != nil || size != 3*blocktag.BlockSize {
		t.Fatalf("Size = %d, %v", size, err)
	}
	d := readyDrive(t, fm, LayoutRaw, DefaultParams)
	buf := make([]byte, blocktag.BlockSize)
	if !d.Transfer(Read, 1, buf) || !bytes.Equal(buf, testBlock(1)) {
		t.Fatalf("file read mismatch, status %v", d.LastError())
	}
	if d.Transfer(Write, 1, buf) || d.LastError() != StatusReadOnly {
		t.Errorf("write to read-only file: status %v", d.LastError())
	}
}

func TestFaulty(t *testing.T) {
	d := readyDrive(t, NewMemMedia(rawImage(5, blocktag.BlockSize)), LayoutRaw, DefaultParams)
	f := NewFaulty(d)
	f.FailBlocks[3] = true
	f.CorruptBlocks[1] = true

	buf := make([]byte, blocktag.BlockSize)
	if !f.Transfer(Read, 1, buf) {
		t.Fatalf("corrupt read should still succeed")
	}
	if bytes.Equal(buf, testBlock(1)) {
		t.Errorf("block 1 was not corrupted")
	}
	if f.Transfer(Read, 3, buf) || f.LastError() != StatusIOError {
		t.Errorf("injected failure: status %v", f.LastError())
	}
	if !f.Transfer(Read, 4, buf) || f.LastError() != StatusOK {
		t.Errorf("status should clear after a good read, got %v", f.LastError())
	}
	if len(f.Transfers) != 3 {
		t.Errorf("Transfers = %v", f.Transfers)
	}
}

func TestPermutedIndexIsPermutation(t *testing.T) {
	seen := make(map[uint32]bool)
	for i := uint32(0); i < 64; i++ {
		p := PermutedIndex(i)
		if p/32 != i/32 {
			t.Fatalf("block %d moved out of its group to %d", i, p)
		}
		if seen[p] {
			t.Fatalf("position %d used twice", p)
		}
		seen[p] = true
	}
}
