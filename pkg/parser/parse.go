package parser

import (
	"fmt"

	"migra/pkg/domain"
)

// Parse decodes the content of one archive entry into a grid according to
// its sniffed type. Only the first sheet of a workbook is read. Any decoder
// failure, panics included, is reported as an unparseable entry so callers
// can drop the file and carry on with the rest of the batch.
func Parse(name string, kind FileType, data []byte) (grid Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid = nil
			err = domain.NewUnparseableEntryError(name, fmt.Errorf("decoder panic: %v", r))
		}
	}()

	switch kind {
	case DelimitedText:
		grid, err = parseDelimited(data)
	case LegacyTable:
		grid, err = parseDBF(data)
	case Spreadsheet:
		if isLegacyExcel(name) {
			grid, err = parseXLS(data)
		} else {
			grid, err = parseXLSX(data)
		}
	default:
		err = fmt.Errorf("no reader for type %q", kind)
	}
	if err != nil {
		return nil, domain.NewUnparseableEntryError(name, err)
	}
	return grid, nil
}
