package ioprim

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrReadOnly is returned by media opened without write access.
var ErrReadOnly = errors.New("media is read-only")

// Media is the storage a Drive reads blocks from: an image file, a block
// device, or a buffer in memory.
type Media interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
}

// MemMedia is an in-memory image.
type MemMedia struct {
	buf      []byte
	ReadOnly bool
}

// NewMemMedia wraps b without copying it.
func NewMemMedia(b []byte) *MemMedia {
	return &MemMedia{buf: b}
}

// Bytes returns the backing buffer.
func (m *MemMedia) Bytes() []byte { return m.buf }

// Size returns the image length.
func (m *MemMedia) Size() (int64, error) { return int64(len(m.buf)), nil }

// ReadAt implements io.ReaderAt.
func (m *MemMedia) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. The image never grows.
func (m *MemMedia) WriteAt(p []byte, off int64) (int, error) {
	if m.ReadOnly {
		return 0, ErrReadOnly
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d past end of %d-byte image", len(p), off, len(m.buf))
	}
	return copy(m.buf[off:], p), nil
}

// FileMedia is an image file or block device.
type FileMedia struct {
	f        *os.File
	readOnly bool
}

// OpenFile opens an image file or device. Without writable, block writes
// fail with ErrReadOnly.
func OpenFile(path string, writable bool) (*FileMedia, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return &FileMedia{f: f, readOnly: !writable}, nil
}

// Close releases the file.
func (m *FileMedia) Close() error { return m.f.Close() }

// Size returns the file or device size.
func (m *FileMedia) Size() (int64, error) { return DeviceSize(m.f) }

// ReadAt reads len(p) bytes at off.
func (m *FileMedia) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		n, err := pread(m.f, p[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

// WriteAt writes p at off.
func (m *FileMedia) WriteAt(p []byte, off int64) (int, error) {
	if m.readOnly {
		return 0, ErrReadOnly
	}
	total := 0
	for total < len(p) {
		n, err := pwrite(m.f, p[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
