// Package diskimage builds bootable hard disk images: the bootstrap image in
// blocks 0 and 1, then the program in 512-byte chunks, each with a tag
// carrying its checksum and a line of text to show while it loads. The last
// program block carries the terminator instead.
package diskimage

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
	"hdboot/ioprim"
)

// BootloaderSize is the size of two complete blocks.
const BootloaderSize = 2 * blocktag.BlockSize

var (
	// ErrEmptyProgram is returned when there is nothing to load.
	ErrEmptyProgram = errors.New("program is empty")
	// ErrTooLarge is returned when the program or bootloader does not fit.
	ErrTooLarge = errors.New("does not fit")
)

// Options controls image construction.
type Options struct {
	Device ioprim.DeviceID
	// Blocks is the total block count; zero means the device default, or
	// just enough blocks when Clip is set.
	Blocks uint32
	Clip   bool
	// Tags supplies display text for every program block but the last.
	Tags TagSource
	// Bootloader replaces the built-in bootstrap image.
	Bootloader []byte
}

// Image holds the tag and data of every block in linear order.
type Image struct {
	Device        ioprim.DeviceID
	Tags          [][]byte
	Data          [][]byte
	ProgramBlocks int
}

// Blocks returns the number of blocks in the image.
func (img *Image) Blocks() int { return len(img.Data) }

// Block returns block i in on-device order, [tag][data].
func (img *Image) Block(i int) []byte {
	b := make([]byte, 0, blocktag.BlockSize)
	b = append(b, img.Tags[i]...)
	return append(b, img.Data[i]...)
}

// Build lays out program behind the bootstrap image.
func Build(program []byte, opts Options) (*Image, error) {
	if opts.Device == "" {
		opts.Device = ioprim.ProFile
	}
	defBlocks, ok := ioprim.DefaultBlocks[opts.Device]
	if !ok {
		return nil, fmt.Errorf("invalid drive device type %q", opts.Device)
	}
	if len(program) == 0 {
		return nil, ErrEmptyProgram
	}
	if opts.Tags == nil {
		opts.Tags = &DefaultTags{}
	}

	boot := opts.Bootloader
	if boot == nil {
		boot = Bootloader()
	}
	if len(boot) > BootloaderSize {
		return nil, fmt.Errorf("bootloader is %d bytes, limit %d: %w", len(boot), BootloaderSize, ErrTooLarge)
	}
	boot = append(append([]byte(nil), boot...), make([]byte, BootloaderSize-len(boot))...)

	programBlocks := (len(program) + blocktag.DataSize - 1) / blocktag.DataSize
	blocks := int(opts.Blocks)
	switch {
	case blocks == 0 && opts.Clip:
		blocks = programBlocks + 2
	case blocks == 0:
		blocks = int(defBlocks)
	}
	if blocks < 3 {
		return nil, fmt.Errorf("a disk image of %d blocks has no room for any program data", blocks)
	}
	if space := (blocks - 2) * blocktag.DataSize; len(program) > space {
		return nil, fmt.Errorf("program of %d bytes exceeds the %d bytes available in a %d-block %s image: %w",
			len(program), space, blocks, opts.Device, ErrTooLarge)
	}

	img := &Image{Device: opts.Device, ProgramBlocks: programBlocks}
	img.Tags = append(img.Tags, boot[:blocktag.TagSize], boot[blocktag.BlockSize:blocktag.BlockSize+blocktag.TagSize])
	img.Data = append(img.Data, boot[blocktag.TagSize:blocktag.BlockSize], boot[blocktag.BlockSize+blocktag.TagSize:])

	for i := 0; i < blocks-2; i++ {
		data := make([]byte, blocktag.DataSize)
		if off := i * blocktag.DataSize; off < len(program) {
			copy(data, program[off:])
		}
		var tag blocktag.Tag
		switch {
		case i == programBlocks-1:
			tag = blocktag.NewTag(data, blocktag.Terminator)
		case i < programBlocks-1:
			line, err := opts.Tags.Next()
			if err != nil {
				return nil, fmt.Errorf("tag for block %d: %w", i+2, err)
			}
			msg, err := blocktag.PadMessage(line)
			if err != nil {
				return nil, fmt.Errorf("tag for block %d: %w", i+2, err)
			}
			tag = blocktag.NewTag(data, msg)
		}
		if i < programBlocks {
			img.Tags = append(img.Tags, tag.Bytes())
		} else {
			img.Tags = append(img.Tags, make([]byte, blocktag.TagSize))
		}
		img.Data = append(img.Data, data)
	}
	log.Debugf("diskimage: %d-byte program in %d blocks of a %d-block %s image", len(program), programBlocks, blocks, opts.Device)
	return img, nil
}
