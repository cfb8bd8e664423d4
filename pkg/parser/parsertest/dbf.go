// Package parsertest builds in-memory fixtures for tests of the tabular
// readers and of the code that drives them.
package parsertest

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Field describes one DBF column.
type Field struct {
	Name     string
	Type     byte
	Length   int
	Decimals int
}

// Record is one DBF row: raw field values plus the deletion flag.
type Record struct {
	Values  []string
	Deleted bool
}

// DBF assembles a dBase III table. Values are written as raw bytes, padded to
// the field width: numbers right aligned, everything else left aligned.
func DBF(driver byte, fields []Field, records []Record) []byte {
	recordLen := 1
	for _, f := range fields {
		recordLen += f.Length
	}
	headerLen := 32 + 32*len(fields) + 1

	var buf bytes.Buffer
	header := make([]byte, 32)
	header[0] = 0x03
	header[1], header[2], header[3] = 124, 1, 1
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(records)))
	binary.LittleEndian.PutUint16(header[8:10], uint16(headerLen))
	binary.LittleEndian.PutUint16(header[10:12], uint16(recordLen))
	header[29] = driver
	buf.Write(header)

	for _, f := range fields {
		desc := make([]byte, 32)
		copy(desc[:11], f.Name)
		desc[11] = f.Type
		desc[16] = byte(f.Length)
		desc[17] = byte(f.Decimals)
		buf.Write(desc)
	}
	buf.WriteByte(0x0D)

	for _, r := range records {
		if r.Deleted {
			buf.WriteByte('*')
		} else {
			buf.WriteByte(' ')
		}
		for i, f := range fields {
			v := ""
			if i < len(r.Values) {
				v = r.Values[i]
			}
			buf.WriteString(pad(v, f))
		}
	}
	buf.WriteByte(0x1A)
	return buf.Bytes()
}

func pad(v string, f Field) string {
	if len(v) > f.Length {
		return v[:f.Length]
	}
	fill := strings.Repeat(" ", f.Length-len(v))
	if f.Type == 'N' || f.Type == 'F' {
		return fill + v
	}
	return v + fill
}
