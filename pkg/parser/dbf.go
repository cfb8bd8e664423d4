package parser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

const (
	dbfHeaderSize      = 32
	dbfFieldSize       = 32
	dbfFieldTerminator = 0x0D
	dbfEOF             = 0x1A
	dbfDeleted         = '*'

	// julianUnixEpoch is the Julian day number of 1970-01-01.
	julianUnixEpoch = 2440588
)

// dbfVersions are the first header bytes written by dBase, FoxBase, FoxPro
// and Visual FoxPro.
var dbfVersions = map[byte]bool{
	0x02: true, 0x03: true, 0x04: true, 0x05: true,
	0x30: true, 0x31: true, 0x32: true,
	0x43: true, 0x63: true, 0x83: true, 0x8B: true,
	0xCB: true, 0xE5: true, 0xF5: true, 0xFB: true,
}

type dbfField struct {
	name     string
	kind     byte
	length   int
	decimals int
}

// parseDBF decodes a dBase-family table. Row 0 of the grid holds the field
// names. Deleted records are skipped and a truncated record area is read up
// to its last complete record.
func parseDBF(data []byte) (Grid, error) {
	if len(data) < dbfHeaderSize+1 {
		return nil, errors.New("dbf: file shorter than its header")
	}
	if !dbfVersions[data[0]] {
		return nil, fmt.Errorf("dbf: unknown version byte 0x%02X", data[0])
	}

	recordCount := int(binary.LittleEndian.Uint32(data[4:8]))
	headerLen := int(binary.LittleEndian.Uint16(data[8:10]))
	recordLen := int(binary.LittleEndian.Uint16(data[10:12]))
	if headerLen <= dbfHeaderSize || headerLen > len(data) {
		return nil, fmt.Errorf("dbf: header length %d out of range", headerLen)
	}
	if recordLen < 1 {
		return nil, errors.New("dbf: zero record length")
	}

	dec := dbfEncoding(data[29]).NewDecoder()
	fields, err := readDBFFields(data[:headerLen], dec)
	if err != nil {
		return nil, err
	}

	width := 1
	for _, f := range fields {
		width += f.length
	}
	if width != recordLen {
		return nil, fmt.Errorf("dbf: fields span %d bytes, record length is %d", width, recordLen)
	}

	header := make(Row, 0, len(fields))
	for _, f := range fields {
		if f.kind == '0' {
			continue
		}
		header = append(header, TextCell(f.name))
	}
	grid := Grid{header}

	for i := 0; i < recordCount; i++ {
		start := headerLen + i*recordLen
		if start >= len(data) || data[start] == dbfEOF {
			break
		}
		if start+recordLen > len(data) {
			break
		}
		if data[start] == dbfDeleted {
			continue
		}

		row := make(Row, 0, len(header))
		pos := start + 1
		for _, f := range fields {
			raw := data[pos : pos+f.length]
			pos += f.length
			if f.kind == '0' {
				continue
			}
			row = append(row, dbfValue(f, raw, dec))
		}
		grid = append(grid, row)
	}
	return grid, nil
}

func readDBFFields(header []byte, dec *encoding.Decoder) ([]dbfField, error) {
	var fields []dbfField
	for off := dbfHeaderSize; off+dbfFieldSize <= len(header); off += dbfFieldSize {
		if header[off] == dbfFieldTerminator {
			break
		}
		desc := header[off : off+dbfFieldSize]
		name := desc[:11]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		decodedName, err := dec.Bytes(name)
		if err != nil {
			return nil, fmt.Errorf("dbf: field name: %w", err)
		}

		f := dbfField{
			name:     strings.TrimSpace(string(decodedName)),
			kind:     desc[11],
			length:   int(desc[16]),
			decimals: int(desc[17]),
		}
		// Clipper and FoxPro store long character widths in the decimals byte.
		if f.kind == 'C' {
			f.length = int(desc[16]) | int(desc[17])<<8
			f.decimals = 0
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, errors.New("dbf: no field descriptors")
	}
	return fields, nil
}

func dbfValue(f dbfField, raw []byte, dec *encoding.Decoder) Cell {
	switch f.kind {
	case 'C', 'V':
		text, err := dec.Bytes(bytes.TrimRight(raw, " \x00"))
		if err != nil || len(text) == 0 {
			return EmptyCell()
		}
		return TextCell(string(text))

	case 'N', 'F':
		s := strings.TrimSpace(string(raw))
		if s == "" || strings.Trim(s, "*") == "" {
			return EmptyCell()
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return numberText(v, s)
		}
		return TextCell(s)

	case 'D':
		s := strings.TrimSpace(string(raw))
		if s == "" || strings.Trim(s, "0") == "" {
			return EmptyCell()
		}
		if t, err := time.Parse("20060102", s); err == nil {
			return DateCell(t)
		}
		return TextCell(s)

	case 'L':
		if len(raw) == 0 {
			return EmptyCell()
		}
		switch raw[0] {
		case 'T', 't', 'Y', 'y':
			return BoolCell(true)
		case 'F', 'f', 'N', 'n':
			return BoolCell(false)
		}
		return EmptyCell()

	case 'I':
		if len(raw) != 4 {
			return EmptyCell()
		}
		return NumberCell(float64(int32(binary.LittleEndian.Uint32(raw))))

	case 'Y':
		if len(raw) != 8 {
			return EmptyCell()
		}
		return NumberCell(float64(int64(binary.LittleEndian.Uint64(raw))) / 10000)

	case 'B':
		if len(raw) != 8 {
			return EmptyCell()
		}
		return NumberCell(math.Float64frombits(binary.LittleEndian.Uint64(raw)))

	case 'T':
		if len(raw) != 8 {
			return EmptyCell()
		}
		day := int(int32(binary.LittleEndian.Uint32(raw[:4])))
		ms := int(int32(binary.LittleEndian.Uint32(raw[4:])))
		if day == 0 {
			return EmptyCell()
		}
		t := time.Unix(0, 0).UTC().
			AddDate(0, 0, day-julianUnixEpoch).
			Add(time.Duration(ms) * time.Millisecond)
		return DateCell(t)

	case 'M', 'G', 'P':
		// Memo content lives in a sidecar .dbt/.fpt file.
		return EmptyCell()

	default:
		s := strings.TrimSpace(string(raw))
		if s == "" {
			return EmptyCell()
		}
		return TextCell(s)
	}
}
