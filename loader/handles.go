package loader

import "hdboot/ioprim"

// HandleSet is what the loaded program receives to do its own device I/O:
// the primitive's entry points and a reference to its last error code. A
// program reading from the boot device can skip Setup and Init.
type HandleSet struct {
	Setup     func(dev ioprim.DeviceID) error
	Init      func() error
	Transfer  func(cmd ioprim.Command, block uint32, buf []byte) bool
	LastError *ioprim.Status
}

func newHandleSet(p ioprim.Primitive) HandleSet {
	status := new(ioprim.Status)
	*status = p.LastError()
	return HandleSet{
		Setup: func(dev ioprim.DeviceID) error {
			err := p.Setup(dev)
			*status = p.LastError()
			return err
		},
		Init: func() error {
			err := p.Init()
			*status = p.LastError()
			return err
		},
		Transfer: func(cmd ioprim.Command, block uint32, buf []byte) bool {
			ok := p.Transfer(cmd, block, buf)
			*status = p.LastError()
			return ok
		},
		LastError: status,
	}
}
