package mocks

import (
	"context"
	"time"

	"migra/pkg/importer"
	"migra/pkg/report"
)

// MockExecutor is a mock implementation of importer.Executor
type MockExecutor struct {
	ExecuteFunc func(ctx context.Context, req importer.Request) (*report.ImportReport, error)

	Requests []importer.Request
}

// Execute mocks the Execute method. Without ExecuteFunc every file is
// reported as imported with all of its rows inserted.
func (m *MockExecutor) Execute(ctx context.Context, req importer.Request) (*report.ImportReport, error) {
	m.Requests = append(m.Requests, req)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, req)
	}

	results := make([]report.FileReport, 0, len(req.Files))
	for _, fr := range req.Files {
		results = append(results, report.FileReport{
			File:     fr.File.Name,
			Schema:   fr.Schema.Name,
			Status:   report.StatusImported,
			Rows:     fr.File.RowCount,
			Inserted: fr.File.RowCount,
		})
	}
	now := time.Now()
	return report.MergeResults("report-mock", req.TenantID, results, now, now), nil
}
