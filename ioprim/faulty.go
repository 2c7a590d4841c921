package ioprim

import (
	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
)

// Faulty wraps a Primitive and injects failures at chosen blocks: reads that
// report not-OK, and reads whose data comes back with one byte flipped.
type Faulty struct {
	Primitive

	FailBlocks    map[uint32]bool
	CorruptBlocks map[uint32]bool

	// Transfers records every block requested, in order.
	Transfers []uint32

	injected bool
}

// NewFaulty wraps p with no faults configured.
func NewFaulty(p Primitive) *Faulty {
	return &Faulty{
		Primitive:     p,
		FailBlocks:    make(map[uint32]bool),
		CorruptBlocks: make(map[uint32]bool),
	}
}

// Transfer implements Primitive.
func (f *Faulty) Transfer(cmd Command, block uint32, buf []byte) bool {
	f.Transfers = append(f.Transfers, block)
	f.injected = false
	if cmd == Read && f.FailBlocks[block] {
		log.Debugf("ioprim: injecting read failure at block %d", block)
		f.injected = true
		return false
	}
	ok := f.Primitive.Transfer(cmd, block, buf)
	if ok && cmd == Read && f.CorruptBlocks[block] && len(buf) >= blocktag.BlockSize {
		log.Debugf("ioprim: corrupting data of block %d", block)
		buf[blocktag.TagSize] ^= 0xFF
	}
	return ok
}

// LastError implements Primitive.
func (f *Faulty) LastError() Status {
	if f.injected {
		return StatusIOError
	}
	return f.Primitive.LastError()
}
