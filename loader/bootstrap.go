package loader

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"hdboot/blocktag"
	"hdboot/ioprim"
)

// Bootstrap configures the I/O primitive for the boot device and reads
// block 1 into the staging area behind block 0. It does not retry; any
// failure goes to the firmware's generic fatal error with CodeBootFailure.
func Bootstrap(m *Machine, dev ioprim.DeviceID) error {
	if err := m.IO.Setup(dev); err != nil {
		log.Debugf("loader: setup %s: %v", dev, err)
		return m.Host.Fatal(CodeBootFailure)
	}
	if err := m.IO.Init(); err != nil {
		log.Debugf("loader: init %s: %v", dev, err)
		return m.Host.Fatal(CodeBootFailure)
	}
	buf, err := m.Mem.Slice(StagingAddress, blocktag.BlockSize)
	if err != nil {
		return fmt.Errorf("bootstrap staging: %w", err)
	}
	if !m.IO.Transfer(ioprim.Read, 1, buf) {
		log.Debugf("loader: read block 1: %v", m.IO.LastError())
		return m.Host.Fatal(CodeBootFailure)
	}
	log.Debugf("loader: block 1 staged at $%06X", StagingAddress)
	return nil
}
