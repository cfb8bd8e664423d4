// Package importer persists the rows of reviewed files into the tenant's
// staging tables, either inline or through a work queue.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"migra/pkg/engine"
	"migra/pkg/parser"
	"migra/pkg/report"
	"migra/pkg/schema"
)

// FileRequest is one reviewed file and the mapping chosen for it.
type FileRequest struct {
	File   engine.DetectedFile
	Schema schema.Schema
	// Mapping is targetField -> sourceColumn.
	Mapping map[string]string
}

// Request is everything an import needs. UploadID names the stored archive
// for executors that re-read it later.
type Request struct {
	TenantID string
	UploadID string
	Files    []FileRequest
}

// Executor runs an import and reports per-file outcomes. Files that fail
// are reported, not returned as errors; an error means the import as a
// whole did not run.
type Executor interface {
	Execute(ctx context.Context, req Request) (*report.ImportReport, error)
}

// Record is one data row ready to be stored.
type Record struct {
	Key     string
	Payload []byte
}

type rowError struct {
	reason string
}

func (e *rowError) Error() string { return e.reason }

// plan resolves the mapping of a file into column positions once, so rows
// can be converted without looking names up again.
type plan struct {
	fields   []string
	columns  []int
	required map[string]bool
	key      string
}

func newPlan(fr FileRequest) (*plan, error) {
	positions := make(map[string]int, len(fr.File.Columns))
	for i, c := range fr.File.Columns {
		if _, seen := positions[c]; !seen {
			positions[c] = i
		}
	}

	p := &plan{required: make(map[string]bool), key: fr.Schema.Key}
	for _, f := range fr.Schema.Fields {
		if f.Required {
			p.required[f.Name] = true
		}
		column, ok := fr.Mapping[f.Name]
		if !ok || column == "" {
			if f.Required {
				return nil, fmt.Errorf("required field %q is not mapped", f.Name)
			}
			continue
		}
		pos, ok := positions[column]
		if !ok {
			return nil, fmt.Errorf("column %q mapped to %q is not in the file", column, f.Name)
		}
		p.fields = append(p.fields, f.Name)
		p.columns = append(p.columns, pos)
	}
	if len(p.fields) == 0 {
		return nil, fmt.Errorf("no fields mapped")
	}
	return p, nil
}

// record converts one data row. Cells past the end of a short row count as
// empty.
func (p *plan) record(row parser.Row) (Record, error) {
	payload := make(map[string]any, len(p.fields))
	keyValue := ""

	for i, field := range p.fields {
		cell := parser.EmptyCell()
		if pos := p.columns[i]; pos < len(row) {
			cell = row[pos]
		}

		text := strings.TrimSpace(cell.String())
		if text == "" {
			if p.required[field] {
				return Record{}, &rowError{reason: fmt.Sprintf("required field %q is empty", field)}
			}
			payload[field] = nil
			continue
		}
		// The cell marshals numbers as their source literal.
		payload[field] = cell
		if field == p.key {
			keyValue = text
		}
	}

	// Map keys are marshalled sorted, so equal rows hash alike.
	body, err := json.Marshal(payload)
	if err != nil {
		return Record{}, &rowError{reason: err.Error()}
	}
	if keyValue == "" {
		sum := sha256.Sum256(body)
		keyValue = hex.EncodeToString(sum[:])
	}
	return Record{Key: keyValue, Payload: body}, nil
}
