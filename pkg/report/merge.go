package report

import (
	"time"
)

// FileStatus is the outcome of importing one detected file.
type FileStatus string

const (
	// StatusImported means every row was stored or already present.
	StatusImported FileStatus = "imported"
	// StatusPartial means some rows were rejected.
	StatusPartial FileStatus = "partial"
	// StatusFailed means the file's transaction was rolled back.
	StatusFailed FileStatus = "failed"
	// StatusQueued means the file was handed to a worker.
	StatusQueued FileStatus = "queued"
)

// MaxIssues bounds the row issues kept per file.
const MaxIssues = 20

// RowIssue explains why a data row was not stored. Row is 1-based and
// counts data rows only.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// FileReport is the result of importing one file.
type FileReport struct {
	File     string     `json:"file"`
	Schema   string     `json:"schema"`
	Status   FileStatus `json:"status"`
	Rows     int        `json:"rows"`
	Inserted int        `json:"inserted"`
	// Skipped counts rows already imported earlier.
	Skipped int `json:"skipped"`
	// Rejected counts rows that could not be stored.
	Rejected int        `json:"rejected"`
	Issues   []RowIssue `json:"issues,omitempty"`
	Error    string     `json:"error,omitempty"`
	JobID    string     `json:"jobId,omitempty"`
}

// AddIssue counts a rejected row and keeps its reason while under MaxIssues.
func (f *FileReport) AddIssue(row int, reason string) {
	f.Rejected++
	if len(f.Issues) < MaxIssues {
		f.Issues = append(f.Issues, RowIssue{Row: row, Reason: reason})
	}
}

// Summary contains counts over all files of a report.
type Summary struct {
	Files    int `json:"files"`
	Imported int `json:"imported"`
	Partial  int `json:"partial"`
	Failed   int `json:"failed"`
	Queued   int `json:"queued"`
	Rows     int `json:"rows"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
}

// ImportReport is what the import step shows once execution returns.
type ImportReport struct {
	ID         string       `json:"id"`
	TenantID   string       `json:"tenantId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Files      []FileReport `json:"files"`
	Summary    Summary      `json:"summary"`
}

// HasFailures reports whether any file failed.
func (r *ImportReport) HasFailures() bool {
	return r.Summary.Failed > 0
}

// MergeResults compiles per-file results, in the order the files were
// submitted, into one report with totals.
func MergeResults(id, tenantID string, results []FileReport, startedAt, finishedAt time.Time) *ImportReport {
	report := &ImportReport{
		ID:         id,
		TenantID:   tenantID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Files:      make([]FileReport, 0, len(results)),
	}

	for _, fr := range results {
		report.Files = append(report.Files, fr)
		updateSummary(&report.Summary, fr)
	}

	return report
}

// updateSummary adds one file's counts to the summary.
func updateSummary(summary *Summary, fr FileReport) {
	summary.Files++
	summary.Rows += fr.Rows
	summary.Inserted += fr.Inserted
	summary.Skipped += fr.Skipped
	summary.Rejected += fr.Rejected

	switch fr.Status {
	case StatusImported:
		summary.Imported++
	case StatusPartial:
		summary.Partial++
	case StatusFailed:
		summary.Failed++
	case StatusQueued:
		summary.Queued++
	}
}
