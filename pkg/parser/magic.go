package parser

import (
	"bytes"
	"fmt"

	"migra/pkg/domain"
)

var (
	magicZip = []byte{'P', 'K', 0x03, 0x04}
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// textProbeSize bounds how much of a text file is checked for NUL bytes.
const textProbeSize = 8 << 10

// VerifyMagic checks that content carries the signature expected for the
// type its name was classified as. It is only consulted in strict sniffing
// mode; a mismatch is reported, never corrected.
func VerifyMagic(name string, kind FileType, data []byte) error {
	var ok bool
	switch kind {
	case Spreadsheet:
		if isLegacyExcel(name) {
			ok = bytes.HasPrefix(data, magicOLE)
		} else {
			ok = bytes.HasPrefix(data, magicZip)
		}
	case LegacyTable:
		ok = len(data) > dbfHeaderSize && dbfVersions[data[0]]
	case DelimitedText:
		ok = looksLikeText(data)
	default:
		ok = false
	}
	if !ok {
		return domain.NewUnparseableEntryError(name, fmt.Errorf("content does not match %s signature", kind))
	}
	return nil
}

func looksLikeText(data []byte) bool {
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		return true
	}
	probe := data
	if len(probe) > textProbeSize {
		probe = probe[:textProbeSize]
	}
	return bytes.IndexByte(probe, 0) < 0
}
