package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migra/pkg/archive"
	"migra/pkg/domain"
	"migra/pkg/parser"
	"migra/pkg/parser/parsertest"
	"migra/pkg/schema"
)

func clientesDBF() []byte {
	return parsertest.DBF(0x03,
		[]parsertest.Field{
			{Name: "COD", Type: 'C', Length: 4},
			{Name: "NOMBRE", Type: 'C', Length: 20},
		},
		[]parsertest.Record{
			{Values: []string{"C1", "Ana"}},
			{Values: []string{"C2", "Luis"}},
			{Values: []string{"C3", "Marta"}},
		},
	)
}

func csvWithRows(n int) string {
	var b strings.Builder
	b.WriteString("code,name\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "P%d,item %d\n", i, i)
	}
	return b.String()
}

func newTestAnalyzer(opts Options) *Analyzer {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	}
	return NewAnalyzer(opts)
}

func TestBuildDetectedFile(t *testing.T) {
	entry := archive.Entry{Name: "x.csv"}

	t.Run("empty grid", func(t *testing.T) {
		f := BuildDetectedFile(entry, parser.DelimitedText, nil)
		assert.Equal(t, 0, f.RowCount)
		assert.Equal(t, []string{}, f.Columns)
		assert.Empty(t, f.Preview)
		assert.Empty(t, f.Data)
	})

	t.Run("header only", func(t *testing.T) {
		grid := parser.Grid{{parser.TextCell("a"), parser.TextCell("b")}}
		f := BuildDetectedFile(entry, parser.DelimitedText, grid)
		assert.Equal(t, []string{"a", "b"}, f.Columns)
		assert.Equal(t, 0, f.RowCount)
	})

	t.Run("ragged rows pass through", func(t *testing.T) {
		grid := parser.Grid{
			{parser.TextCell("a"), parser.TextCell("b")},
			{parser.NumberCell(1)},
			{parser.NumberCell(1), parser.NumberCell(2), parser.NumberCell(3)},
		}
		f := BuildDetectedFile(entry, parser.DelimitedText, grid)
		assert.Equal(t, 2, f.RowCount)
		assert.Len(t, f.Data[0], 1)
		assert.Len(t, f.Data[1], 3)
	})

	t.Run("keeps the entry", func(t *testing.T) {
		f := BuildDetectedFile(entry, parser.DelimitedText, nil)
		got, ok := f.Entry()
		require.True(t, ok)
		assert.Equal(t, "x.csv", got.Name)
	})
}

func TestPreviewBound(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 6, 12} {
		t.Run(fmt.Sprintf("%d rows", n), func(t *testing.T) {
			data := parsertest.Zip(parsertest.File("p.csv", csvWithRows(n)))
			a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
			require.NoError(t, err)
			require.Len(t, a.Files, 1)

			f := a.Files[0]
			assert.Equal(t, n, f.RowCount)
			assert.Len(t, f.Data, n)
			assert.Len(t, f.Preview, min(PreviewRows, n))
			assert.Equal(t, f.Data[:len(f.Preview)], f.Preview)
		})
	}
}

func TestAnalyzeRowAndColumnCounts(t *testing.T) {
	header := []any{"CODIGO", "DESCRIPCION", "PRECIO"}
	rows := [][]any{header}
	for i := 0; i < 7; i++ {
		rows = append(rows, []any{fmt.Sprintf("P-%d", i), "item", float64(i)})
	}
	data := parsertest.Zip(parsertest.Member{
		Name:    "productos.xlsx",
		Content: parsertest.XLSX(parsertest.Sheet{Name: "Hoja1", Rows: rows}),
	})

	a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, a.Files, 1)
	assert.Equal(t, 7, a.Files[0].RowCount)
	assert.Equal(t, []string{"CODIGO", "DESCRIPCION", "PRECIO"}, a.Files[0].Columns)
	assert.Equal(t, parser.Spreadsheet, a.Files[0].Type)
}

func TestAnalyzePartialFailure(t *testing.T) {
	var logs bytes.Buffer
	data := parsertest.Zip(
		parsertest.File("roto.dbf", "this is not a dbase table, only text pretending"),
		parsertest.File("ok.csv", csvWithRows(2)),
	)

	a, err := NewAnalyzer(Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))}).
		Analyze(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, a.Files, 1)
	assert.Equal(t, "ok.csv", a.Files[0].Name)

	require.Len(t, a.Failures, 1)
	assert.Equal(t, "roto.dbf", a.Failures[0].Name)
	assert.Equal(t, parser.LegacyTable, a.Failures[0].Type)
	assert.NotEmpty(t, a.Failures[0].Reason)
	assert.Contains(t, logs.String(), "file=roto.dbf")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestAnalyzeEmptyArchive(t *testing.T) {
	data := parsertest.Zip(
		parsertest.Member{Name: "empresa/"},
		parsertest.Member{Name: "empresa/datos/"},
	)

	a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Entries)
	assert.Empty(t, a.Files)
}

func TestAnalyzeInvalidArchive(t *testing.T) {
	_, err := newTestAnalyzer(Options{}).Analyze(context.Background(), []byte("definitely not a zip"))
	require.Error(t, err)
	assert.True(t, domain.IsInvalidArchive(err))
}

func TestAnalyzePreservesOrderAndSkipsUnknown(t *testing.T) {
	data := parsertest.Zip(
		parsertest.File("c.csv", csvWithRows(1)),
		parsertest.File("manual.pdf", "%PDF-1.4"),
		parsertest.File("a.txt", "x\n1\n"),
		parsertest.Member{Name: "b.dbf", Content: clientesDBF()},
	)

	a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
	require.NoError(t, err)

	var names []string
	for _, f := range a.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"c.csv", "a.txt", "b.dbf"}, names)
	assert.Equal(t, []string{"manual.pdf"}, a.Skipped)
	assert.Equal(t, 4, a.Entries)
}

func TestAnalyzeDBFAndReadme(t *testing.T) {
	data := parsertest.Zip(
		parsertest.Member{Name: "clientes.dbf", Content: clientesDBF()},
		parsertest.File("README.txt", "This is readme"),
	)

	a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, a.Files, 2)

	assert.Equal(t, "clientes.dbf", a.Files[0].Name)
	assert.Equal(t, 3, a.Files[0].RowCount)
	assert.Equal(t, []string{"COD", "NOMBRE"}, a.Files[0].Columns)

	// A single line is read as the header of a one column table.
	assert.Equal(t, "README.txt", a.Files[1].Name)
	assert.Equal(t, []string{"This is readme"}, a.Files[1].Columns)
	assert.Equal(t, 0, a.Files[1].RowCount)
}

func TestAnalyzeStrictSniffing(t *testing.T) {
	data := parsertest.Zip(parsertest.File("binario.csv", "a,b\n1,\x00\x01\n"))

	a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
	require.NoError(t, err)
	assert.Len(t, a.Files, 1)

	a, err = newTestAnalyzer(Options{StrictSniffing: true}).Analyze(context.Background(), data)
	require.NoError(t, err)
	assert.Empty(t, a.Files)
	require.Len(t, a.Failures, 1)
	assert.Equal(t, "binario.csv", a.Failures[0].Name)
}

func TestAnalyzeReportsProgress(t *testing.T) {
	data := parsertest.Zip(
		parsertest.File("a.csv", csvWithRows(1)),
		parsertest.File("skip.doc", "x"),
		parsertest.File("bad.xlsx", "not a workbook"),
	)

	var got []Progress
	a, err := newTestAnalyzer(Options{OnFile: func(p Progress) { got = append(got, p) }}).
		Analyze(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, a.Files, 1)

	require.Len(t, got, 2)
	assert.Equal(t, Progress{Index: 0, Total: 3, Name: "a.csv", Type: parser.DelimitedText}, got[0])
	assert.Equal(t, "bad.xlsx", got[1].Name)
	assert.NotEmpty(t, got[1].Err)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := parsertest.Zip(parsertest.File("a.csv", csvWithRows(1)))
	_, err := newTestAnalyzer(Options{}).Analyze(ctx, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeEntry(t *testing.T) {
	entries, err := archive.Load(parsertest.Zip(
		parsertest.File("a.csv", csvWithRows(3)),
		parsertest.File("b.doc", "x"),
	))
	require.NoError(t, err)

	an := newTestAnalyzer(Options{})
	f, err := an.AnalyzeEntry(entries[0])
	require.NoError(t, err)
	assert.Equal(t, 3, f.RowCount)

	_, err = an.AnalyzeEntry(entries[1])
	assert.True(t, domain.IsUnparseableEntry(err))
}

func TestReviewMapping(t *testing.T) {
	target := schema.Schema{
		Name: "customers",
		Fields: []schema.Field{
			{Name: "tax_id", Required: true},
			{Name: "name", Required: true},
			{Name: "email"},
		},
	}
	file := DetectedFile{Name: "clientes.csv", Columns: []string{"RIF", "NOMBRE", "NOMBRE_CORTO", "CORREO"}}

	suggestion := schema.Suggestion{
		Mapping:   map[string]string{"name": "NOMBRE_CORTO"},
		Conflicts: []schema.Conflict{{Field: "name", Replaced: "NOMBRE", Winner: "NOMBRE_CORTO"}},
	}
	r := ReviewMapping(file, target, suggestion)
	assert.Equal(t, []string{"tax_id"}, r.MissingRequired)
	assert.Equal(t, []string{"RIF", "NOMBRE", "CORREO"}, r.UnmatchedColumns)
	assert.Len(t, r.Conflicts, 1)
	assert.False(t, r.Ready)

	suggestion.Mapping["tax_id"] = "RIF"
	suggestion.Mapping["email"] = "EMAIL"
	r = ReviewMapping(file, target, suggestion)
	assert.Empty(t, r.MissingRequired)
	assert.Equal(t, []string{"EMAIL"}, r.UnknownColumns)
	assert.False(t, r.Ready)

	delete(suggestion.Mapping, "email")
	r = ReviewMapping(file, target, suggestion)
	assert.True(t, r.Ready)
}

func TestSerializeAnalysis(t *testing.T) {
	data := parsertest.Zip(
		parsertest.File("a.csv", csvWithRows(7)),
		parsertest.File("bad.dbf", "garbage garbage garbage garbage garbage"),
	)
	a, err := newTestAnalyzer(Options{}).Analyze(context.Background(), data)
	require.NoError(t, err)

	full, err := DeserializeAnalysis([]byte(SerializeAnalysis(a, true)))
	require.NoError(t, err)
	require.Len(t, full.Files, 1)
	assert.Equal(t, 7, full.Files[0].RowCount)
	assert.Len(t, full.Files[0].Data, 7)
	assert.Equal(t, a.Files[0].Data[3].Strings(), full.Files[0].Data[3].Strings())
	assert.Equal(t, a.Failures, full.Failures)
	_, ok := full.Files[0].Entry()
	assert.False(t, ok)

	summary, err := DeserializeAnalysis([]byte(SerializeAnalysis(a, false)))
	require.NoError(t, err)
	assert.Empty(t, summary.Files[0].Data)
	assert.Len(t, summary.Files[0].Preview, PreviewRows)
	assert.Equal(t, 7, summary.Files[0].RowCount)

	_, err = DeserializeAnalysis([]byte("{"))
	assert.Error(t, err)
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"codigo", "code", 3},
		{"año", "ano", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshteinDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
		assert.Equal(t, tt.want, levenshteinDistance(tt.b, tt.a), "%q vs %q", tt.b, tt.a)
	}
	assert.Equal(t, 1.0, similarity("", ""))
	assert.InDelta(t, 0.5, similarity("codigo", "code"), 1e-9)
}

func TestNearMatches(t *testing.T) {
	columns := []string{"Nombre", "Codigo", "CODE_X"}
	assert.Equal(t, []string{"CODE_X", "Codigo"}, NearMatches("code", columns))
	assert.Empty(t, NearMatches("barcode", []string{"Telefono"}))
	assert.Nil(t, NearMatches("  ", columns))
}

func keyedFile(keys ...string) DetectedFile {
	f := DetectedFile{Name: "p.csv", Columns: []string{"code", "name"}}
	for _, k := range keys {
		f.Data = append(f.Data, parser.Row{parser.TextCell(k), parser.TextCell("x")})
	}
	return f
}

func TestBuildKeyIndex(t *testing.T) {
	file := keyedFile("A", " A ", "B", "", "C", "B")

	index, ok := BuildKeyIndex(file, "code")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, index.ByKey["A"])
	assert.Equal(t, []int{3, 6}, index.ByKey["B"])
	assert.Equal(t, KeyStats{
		Column:        "code",
		TotalRows:     6,
		UniqueKeys:    3,
		DuplicateRows: 2,
		BlankKeys:     1,
		Duplicates:    []string{"A", "B"},
	}, index.Stats)

	_, ok = BuildKeyIndex(file, "missing")
	assert.False(t, ok)
}

func TestReviewMappingHints(t *testing.T) {
	target := schema.Schema{
		Name: "products",
		Key:  "code",
		Fields: []schema.Field{
			{Name: "code", Required: true},
			{Name: "name", Required: true},
		},
	}
	file := keyedFile("P1", "P1", "P2")
	file.Columns = []string{"Codigo", "name"}

	r := ReviewMapping(file, target, schema.Suggestion{Mapping: map[string]string{"name": "name"}})
	assert.Equal(t, []string{"code"}, r.MissingRequired)
	assert.Equal(t, map[string][]string{"code": {"Codigo"}}, r.NearMatches)
	assert.Nil(t, r.Keys)

	r = ReviewMapping(file, target, schema.Suggestion{Mapping: map[string]string{"name": "name", "code": "Codigo"}})
	assert.True(t, r.Ready)
	assert.Nil(t, r.NearMatches)
	require.NotNil(t, r.Keys)
	assert.Equal(t, 1, r.Keys.DuplicateRows)
	assert.Equal(t, []string{"P1"}, r.Keys.Duplicates)
}
