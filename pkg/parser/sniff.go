package parser

import (
	"path"
	"strings"
)

// FileType is the format of an archive entry as guessed from its name.
type FileType string

const (
	LegacyTable   FileType = "legacy_table"
	Spreadsheet   FileType = "spreadsheet"
	DelimitedText FileType = "delimited_text"
	Unknown       FileType = "unknown"
)

// extensionTypes maps lowercase file extensions to their tabular format.
var extensionTypes = map[string]FileType{
	".dbf":  LegacyTable,
	".xls":  Spreadsheet,
	".xlsx": Spreadsheet,
	".csv":  DelimitedText,
	".txt":  DelimitedText,
}

// Classify returns the format of an entry from its file extension alone.
// Content is never inspected, so a file with a misleading extension is
// classified by its name; see VerifyMagic for the opt-in content check.
func Classify(name string) FileType {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return Unknown
}

func isLegacyExcel(name string) bool {
	return strings.ToLower(path.Ext(name)) == ".xls"
}
