package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// parseXLSX reads the first sheet of an Office Open XML workbook.
func parseXLSX(data []byte) (Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Grid{}, nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	grid := make(Grid, 0, len(rows))
	for r, values := range rows {
		row := make(Row, len(values))
		for c, raw := range values {
			if r == 0 {
				row[c] = headerCell(raw)
				continue
			}
			row[c] = xlsxCell(f, sheet, c+1, r+1, raw)
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// xlsxCell types a raw cell value using the cell type and, for numbers, the
// number format, since dates are stored as serial numbers.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) Cell {
	if raw == "" {
		return EmptyCell()
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return TextCell(raw)
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return inferCell(raw)
	}

	switch typ {
	case excelize.CellTypeBool:
		return BoolCell(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return TextCell(raw)
		}
		if isDateStyled(f, sheet, axis) {
			if t, err := excelize.ExcelDateToTime(v, false); err == nil {
				return DateCell(t)
			}
		}
		return numberText(v, raw)
	case excelize.CellTypeDate:
		if t, ok := parseISODate(raw); ok {
			return DateCell(t)
		}
		return TextCell(raw)
	case excelize.CellTypeFormula:
		return inferCell(raw)
	default:
		return TextCell(raw)
	}
}

func isDateStyled(f *excelize.File, sheet, axis string) bool {
	idx, err := f.GetCellStyle(sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	style, err := f.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltinDateFormat(style.NumFmt)
}

// isBuiltinDateFormat reports whether a built-in number format id renders a
// date or time.
func isBuiltinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormatCode looks for date tokens outside quoted literals and
// bracketed sections of a custom format code.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "yd") || (strings.Contains(s, "m") && strings.ContainsAny(s, "hs"))
}

// parseXLS reads the first sheet of a BIFF (Excel 97-2003) workbook. Cells
// come back as formatted strings and are typed like delimited text.
func parseXLS(data []byte) (Grid, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return Grid{}, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return Grid{}, nil
	}
	if sheet.MaxRow == 0 && sheet.Row(0) == nil {
		return Grid{}, nil
	}

	grid := make(Grid, 0, int(sheet.MaxRow)+1)
	for r := 0; r <= int(sheet.MaxRow); r++ {
		src := sheet.Row(r)
		if src == nil {
			grid = append(grid, Row{})
			continue
		}
		last := src.LastCol()
		row := make(Row, last)
		for c := 0; c < last; c++ {
			if r == 0 {
				row[c] = headerCell(src.Col(c))
			} else {
				row[c] = inferCell(src.Col(c))
			}
		}
		grid = append(grid, row)
	}
	return trimTrailingEmptyRows(grid), nil
}

func trimTrailingEmptyRows(grid Grid) Grid {
	for len(grid) > 0 && rowIsBlank(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	return grid
}

func rowIsBlank(row Row) bool {
	for _, c := range row {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
