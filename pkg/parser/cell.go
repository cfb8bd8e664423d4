package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags the value held by a Cell.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "empty"
	}
}

// Cell is one value of a tabular grid. The zero value is an empty cell, which
// is also how holes in sparse sheets are represented.
//
// Numbers read from text keep that text, so "1.10" and "1E5" render and key
// exactly as the source wrote them.
type Cell struct {
	kind Kind
	text string
	num  float64
	date time.Time
	b    bool
}

// Row is one line of a grid. Rows are not required to share a length.
type Row []Cell

// Grid is a sheet laid out by position: row 0 is the header row.
type Grid []Row

func EmptyCell() Cell { return Cell{} }
func TextCell(s string) Cell { return Cell{kind: KindText, text: s} }
func NumberCell(f float64) Cell { return Cell{kind: KindNumber, num: f} }

// numberText is a number cell that remembers the literal it was parsed from.
func numberText(f float64, literal string) Cell {
	return Cell{kind: KindNumber, num: f, text: literal}
}

func DateCell(t time.Time) Cell { return Cell{kind: KindDate, date: t} }
func BoolCell(b bool) Cell { return Cell{kind: KindBool, b: b} }
func (c Cell) Kind() Kind { return c.kind }
func (c Cell) IsEmpty() bool { return c.kind == KindEmpty }
func (c Cell) Number() (float64, bool) { return c.num, c.kind == KindNumber }
func (c Cell) Time() (time.Time, bool) { return c.date, c.kind == KindDate }
func (c Cell) Bool() (bool, bool) { return c.b, c.kind == KindBool }

const dateLayout = "2006-01-02"

// String renders the cell the way it is shown in previews and used as a
// header label.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		if c.text != "" {
			return c.text
		}
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindDate:
		return formatDate(c.date)
	case KindBool:
		return strconv.FormatBool(c.b)
	default:
		return ""
	}
}

// Value returns the cell as a plain Go value: nil, string, float64,
// time.Time or bool.
func (c Cell) Value() any {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return c.num
	case KindDate:
		return c.date
	case KindBool:
		return c.b
	default:
		return nil
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindText:
		return json.Marshal(c.text)
	case KindNumber:
		if c.text != "" && json.Valid([]byte(c.text)) {
			return []byte(c.text), nil
		}
		return json.Marshal(c.num)
	case KindDate:
		return json.Marshal(formatDate(c.date))
	case KindBool:
		return json.Marshal(c.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON restores a cell from its native JSON form. Strings in ISO
// date or RFC 3339 form come back as dates. Number literals are kept as
// written.
func (c *Cell) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*c = EmptyCell()
	case bool:
		*c = BoolCell(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("unsupported cell value %s: %w", string(data), err)
		}
		*c = numberText(f, val.String())
	case string:
		if t, ok := parseISODate(val); ok {
			*c = DateCell(t)
		} else {
			*c = TextCell(val)
		}
	default:
		return fmt.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}

// Strings renders every cell of the row.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// inferCell types a value that arrived as text, as CSV and legacy Excel
// cells do. Codes with leading zeros stay text so "00123" keeps its form.
func inferCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return EmptyCell()
	}
	if strings.EqualFold(s, "true") {
		return BoolCell(true)
	}
	if strings.EqualFold(s, "false") {
		return BoolCell(false)
	}
	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return numberText(f, s)
		}
	}
	if t, ok := parseISODate(s); ok {
		return DateCell(t)
	}
	return TextCell(raw)
}

func looksNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == '.' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	if digits == 0 {
		return false
	}
	unsigned := strings.TrimLeft(s, "+-")
	if len(unsigned) > 1 && unsigned[0] == '0' && unsigned[1] >= '0' && unsigned[1] <= '9' {
		return false
	}
	return true
}

var isoLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseISODate(s string) (time.Time, bool) {
	if len(s) < len(dateLayout) || s[4] != '-' {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}
