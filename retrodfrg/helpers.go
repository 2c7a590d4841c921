package retrodfrg

import (
	"fmt"
	"io"
	"time"
)

// WriteBlocks writes buf to w at offset zero in blockSize pieces, showing
// progress in the status block after every updateEvery blocks.
func WriteBlocks(w io.WriterAt, buf []byte, blockSize int, u *UI) error {
	if blockSize <= 0 {
		return fmt.Errorf("invalid block size %d", blockSize)
	}
	total := (len(buf) + blockSize - 1) / blockSize
	for i := 0; i < total; i++ {
		if u.IsStopped() {
			return ErrInterrupted
		}
		off := i * blockSize
		end := off + blockSize
		if end > len(buf) {
			end = len(buf)
		}
		if _, err := w.WriteAt(buf[off:end], int64(off)); err != nil {
			return fmt.Errorf("write block %d: %w", i, err)
		}
		if u.updateEvery <= 1 || i%u.updateEvery == 0 || i == total-1 {
			u.SetStatusLines([]string{
				fmt.Sprintf("Block %d of %d", i+1, total),
				fmt.Sprintf("%d of %d bytes (%.1f%%)", end, len(buf), 100*float64(end)/float64(len(buf))),
			})
			u.LayoutAndDraw()
		}
	}
	if s, ok := w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

// WaitWithStop waits for d while allowing early interruption.
func WaitWithStop(u *UI, d time.Duration) error {
	if d <= 0 {
		if u.IsStopped() {
			return ErrInterrupted
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-u.stopChan:
		return ErrInterrupted
	case <-timer.C:
		return nil
	}
}
