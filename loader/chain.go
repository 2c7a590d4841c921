package loader

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
	"hdboot/ioprim"
	"hdboot/machine"
)

// State is a chain loader state.
type State int

// Chain loader states
const (
	Loading State = iota
	Displaying
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "LOADING"
	case Displaying:
		return "DISPLAYING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TagResult is the outcome of tag handling for one block.
type TagResult int

// Tag handling outcomes
const (
	TagContinue TagResult = iota
	TagTerminal
	TagBadChecksum
)

// ErrLoadBufferFull is returned when the next block would overwrite the
// relocated resident image.
var ErrLoadBufferFull = errors.New("load buffer reached the resident image")

// ErrFinished is returned by Step once the loader has left its terminal
// state.
var ErrFinished = errors.New("chain loader already finished")

// HandleTag turns a block just read, [tag][data], into [data][tag] in place,
// then checks the data against the tag's checksum through the firmware and
// looks for the terminator.
func HandleTag(host machine.Host, block []byte) (TagResult, blocktag.Tag, error) {
	if err := blocktag.Swap(block); err != nil {
		return TagContinue, blocktag.Tag{}, err
	}
	tag, err := blocktag.ParseTag(block[blocktag.DataSize:blocktag.BlockSize])
	if err != nil {
		return TagContinue, tag, err
	}
	if !host.VerifyChecksum(block[:blocktag.DataSize], tag.Checksum) {
		return TagBadChecksum, tag, nil
	}
	if tag.IsTerminal() {
		return TagTerminal, tag, nil
	}
	return TagContinue, tag, nil
}

// ChainLoader reads the program's blocks one after another into the load
// buffer at machine.LoadAddress.
type ChainLoader struct {
	m     *Machine
	step  uint32
	limit uint32

	State   State
	Block   uint32
	Cursor  uint32
	Failure FailureKind
	// Read lists the blocks requested from the device, in order.
	Read []uint32

	Progress func(Progress) error
	Program  ProgramFunc

	tag      blocktag.Tag
	finished bool
}

// NewChainLoader starts at block 2 with the cursor at the load address.
// limit is the first address the load buffer may not reach.
func NewChainLoader(m *Machine, step, limit uint32) *ChainLoader {
	if step == 0 {
		step = DefaultBlockStep
	}
	return &ChainLoader{
		m:       m,
		step:    step,
		limit:   limit,
		State:   Loading,
		Block:   FirstDataBlock,
		Cursor:  machine.LoadAddress,
		Program: func(HandleSet, []byte) error { return nil },
	}
}

// Loaded is the number of load buffer bytes filled so far.
func (c *ChainLoader) Loaded() int {
	n := int(c.Cursor - machine.LoadAddress)
	if c.State == Done {
		n += blocktag.DataSize
	}
	return n
}

// Run steps until the loader hands off or fails.
func (c *ChainLoader) Run() error {
	for {
		err := c.Step()
		if err != nil || c.finished {
			return err
		}
	}
}

// Step performs one state transition. In Done it transfers control to the
// program and in Failed it aborts to the firmware; both return the result of
// that transfer and end the loader.
func (c *ChainLoader) Step() error {
	if c.finished {
		return ErrFinished
	}
	switch c.State {
	case Loading:
		return c.load()
	case Displaying:
		c.m.Host.DisplayText(MessageRow, MessageCol, blocktag.DisplayText(c.tag.Message[:]))
		if c.Progress != nil {
			p := Progress{Block: c.Block, Loaded: c.Loaded() + blocktag.DataSize, Message: string(blocktag.DisplayText(c.tag.Message[:]))}
			if err := c.Progress(p); err != nil {
				c.finished = true
				return fmt.Errorf("block %d: %w", c.Block, err)
			}
		}
		c.Block += c.step
		c.Cursor += blocktag.DataSize
		c.State = Loading
		return nil
	case Done:
		c.finished = true
		return c.handoff()
	case Failed:
		c.finished = true
		log.Debugf("loader: %s at block %d", c.Failure, c.Block)
		return Abort(c.m.Host, c.Failure, c.Block)
	}
	return fmt.Errorf("chain loader in unknown state %v", c.State)
}

func (c *ChainLoader) load() error {
	if c.limit != 0 && c.Cursor+blocktag.BlockSize > c.limit {
		c.finished = true
		return fmt.Errorf("%w: block %d at $%06X", ErrLoadBufferFull, c.Block, c.Cursor)
	}
	buf, err := c.m.Mem.Slice(c.Cursor, blocktag.BlockSize)
	if err != nil {
		c.finished = true
		return fmt.Errorf("load block %d: %w", c.Block, err)
	}
	c.Read = append(c.Read, c.Block)
	if !c.m.IO.Transfer(ioprim.Read, c.Block, buf) {
		log.Debugf("loader: block %d: %v", c.Block, c.m.IO.LastError())
		c.Failure = ReadFailure
		c.State = Failed
		return nil
	}
	res, tag, err := HandleTag(c.m.Host, buf)
	if err != nil {
		c.finished = true
		return fmt.Errorf("block %d tag: %w", c.Block, err)
	}
	c.tag = tag
	switch res {
	case TagBadChecksum:
		c.Failure = ChecksumFailure
		c.State = Failed
	case TagTerminal:
		log.Debugf("loader: terminator at block %d", c.Block)
		c.State = Done
	default:
		log.Debugf("loader: block %d ok at $%06X", c.Block, c.Cursor)
		c.State = Displaying
	}
	return nil
}

func (c *ChainLoader) handoff() error {
	load, err := c.m.Mem.Slice(machine.LoadAddress, uint32(c.Loaded()))
	if err != nil {
		return err
	}
	h := newHandleSet(c.m.IO)
	program := c.Program
	c.m.Mem.Map(machine.LoadAddress, func() error { return program(h, load) })
	log.Debugf("loader: %d bytes loaded, jumping to $%06X", len(load), machine.LoadAddress)
	return c.m.Mem.Jump(machine.LoadAddress)
}
