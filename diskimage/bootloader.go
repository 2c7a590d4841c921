package diskimage

import _ "embed"

// builtinBootloader is the bootstrap image placed in blocks 0 and 1 when no
// other bootloader is supplied: tag and data of block 0 followed by tag and
// data of block 1, zero padded to BootloaderSize.
//
//go:embed bootloader_hd.bin
var builtinBootloader []byte

// Bootloader returns a copy of the built-in bootstrap image.
func Bootloader() []byte {
	return append([]byte(nil), builtinBootloader...)
}
