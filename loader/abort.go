package loader

import "hdboot/machine"

// FailureKind is why the chain loader gave up.
type FailureKind int

// Failure kinds
const (
	NoFailure FailureKind = iota
	ReadFailure
	ChecksumFailure
)

// Messages shown by the firmware when the chain loader gives up.
const (
	ReadErrorMessage     = "READ ERROR... SECTOR NUM SHOWN IN ERROR CODE"
	ChecksumErrorMessage = "BAD CHECKSUM... SECTOR NUM SHOWN IN ERROR CODE"
)

func (k FailureKind) String() string {
	switch k {
	case ReadFailure:
		return "read error"
	case ChecksumFailure:
		return "checksum error"
	}
	return "none"
}

// Abort reports a chain loading failure with the low 16 bits of the block
// number and returns control to the firmware. The returned error is final.
func Abort(host machine.Host, kind FailureKind, block uint32) error {
	msg := ReadErrorMessage
	if kind == ChecksumFailure {
		msg = ChecksumErrorMessage
	}
	return host.ReturnToMonitor(msg, uint16(block))
}
