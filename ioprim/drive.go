package ioprim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
)

// Stats counts the work a Drive has done since Init.
type Stats struct {
	Reads   int
	Writes  int
	Retries int
}

// Drive is a Primitive backed by an image in one of the supported layouts.
type Drive struct {
	media  Media
	layout Layout
	params Params

	dev    DeviceID
	geo    geometry
	ready  bool
	last   Status
	stats  Stats
	spared map[uint32]int
}

// NewDrive returns a drive over m. Setup and Init must be called before
// transfers succeed.
func NewDrive(m Media, layout Layout, p Params) *Drive {
	if p.Retries < 0 {
		p.Retries = 0
	}
	return &Drive{media: m, layout: layout, params: p, last: StatusNotReady}
}

// Setup selects dev and sizes the image.
func (d *Drive) Setup(dev DeviceID) error {
	d.ready = false
	if _, ok := DefaultBlocks[dev]; !ok {
		d.last = StatusNoDevice
		return fmt.Errorf("setup: unknown device %q", dev)
	}
	geo, err := d.probe()
	if err != nil {
		d.last = StatusNotReady
		return fmt.Errorf("setup %s: %w", dev, err)
	}
	d.dev = dev
	d.geo = geo
	d.last = StatusOK
	log.Debugf("ioprim: %s image, %s layout, %d blocks", dev, d.layout, geo.blocks)
	return nil
}

func (d *Drive) probe() (geometry, error) {
	size, err := d.media.Size()
	if err != nil {
		return geometry{}, err
	}
	g := geometry{layout: d.layout}
	switch d.layout {
	case LayoutRaw:
		g.blocks = uint32(size / blocktag.BlockSize)
	case LayoutUsbWidEx:
		g.blocks = uint32(size / usbWidExStride)
	case LayoutDC42:
		hdr := make([]byte, DC42HeaderSize)
		if _, err := d.media.ReadAt(hdr, 0); err != nil {
			return g, fmt.Errorf("read dc42 header: %w", err)
		}
		dataLen := binary.BigEndian.Uint32(hdr[DC42DataLenOff:])
		tagLen := binary.BigEndian.Uint32(hdr[DC42TagLenOff:])
		if int64(DC42HeaderSize)+int64(dataLen)+int64(tagLen) > size {
			return g, fmt.Errorf("dc42 image truncated: header claims %d+%d bytes", dataLen, tagLen)
		}
		if dataLen/blocktag.DataSize != tagLen/blocktag.TagSize {
			return g, fmt.Errorf("dc42 data and tag areas disagree on block count")
		}
		g.dataLen = int64(dataLen)
		g.blocks = dataLen / blocktag.DataSize
	default:
		return g, fmt.Errorf("unsupported layout %q", d.layout)
	}
	if g.blocks == 0 {
		return g, errors.New("image holds no blocks")
	}
	return g, nil
}

// Init readies the device chosen by Setup and resets the counters.
func (d *Drive) Init() error {
	if d.dev == "" {
		d.last = StatusNotReady
		return errors.New("init: no device set up")
	}
	d.ready = true
	d.stats = Stats{}
	d.spared = make(map[uint32]int)
	d.last = StatusOK
	return nil
}

// Transfer implements Primitive.
func (d *Drive) Transfer(cmd Command, block uint32, buf []byte) bool {
	switch {
	case !d.ready:
		d.last = StatusNotReady
		return false
	case len(buf) < blocktag.BlockSize:
		d.last = StatusShortBuffer
		return false
	case block >= d.geo.blocks:
		d.last = StatusOutOfRange
		return false
	}

	var err error
	attempts := 0
	for attempts <= d.params.Retries {
		attempts++
		if err = d.move(cmd, block, buf); err == nil || errors.Is(err, ErrReadOnly) {
			break
		}
		d.stats.Retries++
		log.Debugf("ioprim: %s block %d attempt %d: %v", cmd, block, attempts, err)
	}
	if err != nil {
		if errors.Is(err, ErrReadOnly) {
			d.last = StatusReadOnly
		} else {
			d.last = StatusIOError
		}
		return false
	}
	if attempts > d.params.SpareThreshold+1 {
		d.spared[block] = attempts
		log.Warnf("ioprim: block %d needed %d attempts, marked spared", block, attempts)
	}
	if cmd == Write {
		d.stats.Writes++
	} else {
		d.stats.Reads++
	}
	d.last = StatusOK
	return true
}

func (d *Drive) move(cmd Command, block uint32, buf []byte) error {
	tagOff, dataOff := d.geo.tagOffset(block), d.geo.dataOffset(block)
	if d.geo.contiguous() {
		if cmd == Write {
			_, err := d.media.WriteAt(buf[:blocktag.BlockSize], tagOff)
			return err
		}
		_, err := d.media.ReadAt(buf[:blocktag.BlockSize], tagOff)
		return err
	}
	tag, data := buf[:blocktag.TagSize], buf[blocktag.TagSize:blocktag.BlockSize]
	if cmd == Write {
		if _, err := d.media.WriteAt(tag, tagOff); err != nil {
			return err
		}
		_, err := d.media.WriteAt(data, dataOff)
		return err
	}
	if _, err := d.media.ReadAt(tag, tagOff); err != nil {
		return err
	}
	_, err := d.media.ReadAt(data, dataOff)
	return err
}

// LastError implements Primitive.
func (d *Drive) LastError() Status { return d.last }

// Blocks returns the number of blocks in the image after Setup.
func (d *Drive) Blocks() uint32 { return d.geo.blocks }

// Stats returns the counters since Init.
func (d *Drive) Stats() Stats { return d.stats }

// Spared lists blocks that exceeded the sparing threshold, in order.
func (d *Drive) Spared() []uint32 {
	out := make([]uint32, 0, len(d.spared))
	for b := range d.spared {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
