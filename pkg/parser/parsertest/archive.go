package parsertest

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Member is one file (or directory, when Name ends in "/") of a test archive.
type Member struct {
	Name    string
	Content []byte
}

// File is shorthand for a member with string content.
func File(name, content string) Member {
	return Member{Name: name, Content: []byte(content)}
}

// Zip writes the members into a ZIP archive in the given order.
func Zip(members ...Member) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		f, err := w.Create(m.Name)
		if err != nil {
			panic(fmt.Sprintf("zip create %s: %v", m.Name, err))
		}
		if len(m.Content) > 0 {
			if _, err := f.Write(m.Content); err != nil {
				panic(fmt.Sprintf("zip write %s: %v", m.Name, err))
			}
		}
	}
	if err := w.Close(); err != nil {
		panic(fmt.Sprintf("zip close: %v", err))
	}
	return buf.Bytes()
}

// Sheet is one worksheet of a test workbook.
type Sheet struct {
	Name string
	Rows [][]any
}

// XLSX writes a workbook whose sheets appear in the given order.
func XLSX(sheets ...Sheet) []byte {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				panic(fmt.Sprintf("rename sheet: %v", err))
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			panic(fmt.Sprintf("new sheet %s: %v", s.Name, err))
		}
		for r, row := range s.Rows {
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				panic(err)
			}
			values := row
			if err := f.SetSheetRow(s.Name, axis, &values); err != nil {
				panic(fmt.Sprintf("set row %d: %v", r+1, err))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		panic(fmt.Sprintf("write workbook: %v", err))
	}
	return buf.Bytes()
}
