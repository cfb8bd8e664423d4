package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeResults(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)

	results := []FileReport{
		{File: "clientes.dbf", Schema: "customers", Status: StatusImported, Rows: 3, Inserted: 3},
		{File: "productos.xlsx", Schema: "products", Status: StatusPartial, Rows: 5, Inserted: 2, Skipped: 2, Rejected: 1},
		{File: "roto.csv", Schema: "products", Status: StatusFailed, Error: "boom"},
		{File: "cuentas.csv", Schema: "accounts", Status: StatusQueued, Rows: 10},
	}

	r := MergeResults("rep-1", "tenant-1", results, start, end)
	require.Len(t, r.Files, 4)
	assert.Equal(t, "clientes.dbf", r.Files[0].File)
	assert.Equal(t, "cuentas.csv", r.Files[3].File)

	assert.Equal(t, Summary{
		Files: 4, Imported: 1, Partial: 1, Failed: 1, Queued: 1,
		Rows: 18, Inserted: 5, Skipped: 2, Rejected: 1,
	}, r.Summary)
	assert.True(t, r.HasFailures())
	assert.Equal(t, "tenant-1", r.TenantID)
	assert.Equal(t, end, r.FinishedAt)
}

func TestMergeResultsEmpty(t *testing.T) {
	r := MergeResults("rep", "t", nil, time.Time{}, time.Time{})
	assert.NotNil(t, r.Files)
	assert.Equal(t, Summary{}, r.Summary)
	assert.False(t, r.HasFailures())
}

func TestAddIssueIsBounded(t *testing.T) {
	var fr FileReport
	for i := 1; i <= MaxIssues+5; i++ {
		fr.AddIssue(i, fmt.Sprintf("row %d", i))
	}
	assert.Equal(t, MaxIssues+5, fr.Rejected)
	assert.Len(t, fr.Issues, MaxIssues)
	assert.Equal(t, RowIssue{Row: 1, Reason: "row 1"}, fr.Issues[0])
}
