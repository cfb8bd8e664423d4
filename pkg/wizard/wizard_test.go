package wizard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migra/pkg/domain"
	"migra/pkg/importer"
	"migra/pkg/mocks"
	"migra/pkg/parser/parsertest"
	"migra/pkg/report"
	"migra/pkg/storage"
	"migra/pkg/tenant"
)

const customersCSV = "tax_id,name,phone\nJ-1,Acme,555\nJ-2,Beta,556\n"

func sampleArchive() []byte {
	return parsertest.Zip(
		parsertest.File("clientes.csv", customersCSV),
		parsertest.File("README.txt", "This is readme"),
	)
}

type fixture struct {
	ctrl     *Controller
	tenants  *mocks.MockTenantRepository
	executor *mocks.MockExecutor
	archives *storage.MemoryStore
	events   []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tenants: &mocks.MockTenantRepository{
			ListTenantsFunc: func(context.Context) ([]*tenant.Tenant, error) {
				return []*tenant.Tenant{
					{ID: "active-1", Name: "Activa", CurrencySymbol: tenant.DefaultCurrencySymbol},
					{ID: "other-9", Name: "Otra", CurrencySymbol: "$"},
				}, nil
			},
		},
		executor: &mocks.MockExecutor{},
		archives: storage.NewMemoryStore(),
	}
	f.ctrl = New(Options{
		Tenants:        f.tenants,
		Importer:       f.executor,
		Archives:       f.archives,
		ActiveTenantID: "active-1",
		Logger:         slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	f.ctrl.Subscribe(func(ev Event) { f.events = append(f.events, ev) })
	return f
}

func (f *fixture) toMap(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ctrl.Upload(ctx, "legacy.zip", sampleArchive()))
	require.NoError(t, f.ctrl.SetSelection([]int{0}))
	require.NoError(t, f.ctrl.ConfirmSelection())
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting}))
	require.Equal(t, StepMap, f.ctrl.Step())
}

func (f *fixture) steps() []Step {
	var out []Step
	for _, ev := range f.events {
		if ev.Type == EventStepChanged {
			out = append(out, ev.Step)
		}
	}
	return out
}

func TestStepPrevious(t *testing.T) {
	tests := []struct {
		step Step
		want Step
		ok   bool
	}{
		{StepUpload, "", false},
		{StepAnalyze, StepUpload, true},
		{StepTargetSelection, StepAnalyze, true},
		{StepMap, StepTargetSelection, true},
		{StepImport, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			got, ok := tt.step.Previous()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUploadSelectsAllFiles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Upload(context.Background(), "Legacy.ZIP", sampleArchive()))

	assert.Equal(t, StepAnalyze, f.ctrl.Step())
	assert.Equal(t, []int{0, 1}, f.ctrl.Selected())
	assert.True(t, f.ctrl.CanConfirmSelection())

	stored, err := f.archives.Get(context.Background(), f.ctrl.UploadID())
	require.NoError(t, err)
	assert.Equal(t, sampleArchive(), stored)

	var analyzed []string
	for _, ev := range f.events {
		if ev.Type == EventFileAnalyzed {
			analyzed = append(analyzed, ev.Message)
		}
	}
	assert.Equal(t, []string{"clientes.csv", "README.txt"}, analyzed)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		data  []byte
		check func(error) bool
	}{
		{"not a zip name", "data.rar", sampleArchive(), domain.IsInvalidInput},
		{"empty upload", "data.zip", nil, domain.IsInvalidInput},
		{"corrupt archive", "data.zip", []byte("PK garbage"), domain.IsInvalidArchive},
		{"nothing readable", "data.zip", parsertest.Zip(parsertest.File("logo.png", "png")), domain.IsEmptyArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.ctrl.Upload(context.Background(), tt.file, tt.data)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, StepUpload, f.ctrl.Step())
			assert.Equal(t, err, f.ctrl.Err())
			assert.NotEmpty(t, f.ctrl.Snapshot().Error)
		})
	}
}

func TestSelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Upload(context.Background(), "a.zip", sampleArchive()))

	require.NoError(t, f.ctrl.Toggle(1))
	assert.Equal(t, []int{0}, f.ctrl.Selected())

	require.NoError(t, f.ctrl.ClearSelection())
	assert.False(t, f.ctrl.CanConfirmSelection())
	err := f.ctrl.ConfirmSelection()
	assert.True(t, domain.IsEmptySelection(err))
	assert.Equal(t, StepAnalyze, f.ctrl.Step())

	require.NoError(t, f.ctrl.SelectAll())
	assert.Equal(t, []int{0, 1}, f.ctrl.Selected())

	assert.True(t, domain.IsInvalidInput(f.ctrl.Toggle(7)))
	assert.True(t, domain.IsInvalidInput(f.ctrl.SetSelection([]int{0, -1})))
	assert.Equal(t, []int{0, 1}, f.ctrl.Selected())

	require.NoError(t, f.ctrl.SetSelection([]int{1}))
	require.NoError(t, f.ctrl.ConfirmSelection())
	require.Len(t, f.ctrl.Files(), 1)
	assert.Equal(t, "README.txt", f.ctrl.Files()[0].Name)
	assert.Equal(t, StepTargetSelection, f.ctrl.Step())
}

func TestActionsFromWrongStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, domain.IsInvalidTransition(f.ctrl.Toggle(0)))
	assert.True(t, domain.IsInvalidTransition(f.ctrl.ConfirmSelection()))
	assert.True(t, domain.IsInvalidTransition(f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting})))
	assert.True(t, domain.IsInvalidTransition(f.ctrl.ConfirmImport(ctx)))
	assert.True(t, domain.IsInvalidTransition(f.ctrl.Back()))

	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	assert.True(t, domain.IsInvalidTransition(f.ctrl.Upload(ctx, "a.zip", sampleArchive())))
}

func TestChooseNewTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, f.ctrl.ConfirmSelection())

	err := f.ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "  "}})
	assert.True(t, domain.IsInvalidInput(err))
	assert.Empty(t, f.tenants.CreateCalls)

	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "Acme"}}))
	_, chosen := f.ctrl.Target()
	require.NotNil(t, chosen)
	assert.Equal(t, "tenant-Acme", chosen.ID)
	assert.Equal(t, StepMap, f.ctrl.Step())

	m, ok := f.ctrl.Mapping(0)
	require.True(t, ok)
	assert.Equal(t, "customers", m.Schema)
	assert.Equal(t, map[string]string{"tax_id": "tax_id", "name": "name", "phone": "phone"}, m.Mapping)

	readme, ok := f.ctrl.Mapping(1)
	require.True(t, ok)
	assert.Empty(t, readme.Schema)

	// Going back and forward again reuses the company created before.
	require.NoError(t, f.ctrl.Back())
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "acme "}}))
	assert.Len(t, f.tenants.CreateCalls, 1)
	_, chosen = f.ctrl.Target()
	assert.Equal(t, "tenant-Acme", chosen.ID)
}

func TestTenantCreationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tenants.CreateTenantFunc = func(context.Context, tenant.CreateRequest) (*tenant.Tenant, error) {
		return nil, errors.New("connection refused")
	}
	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, f.ctrl.ConfirmSelection())

	err := f.ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "Acme"}})
	require.Error(t, err)
	assert.True(t, domain.IsTenantCreationFailed(err))
	assert.Equal(t, StepTargetSelection, f.ctrl.Step())
	assert.Len(t, f.ctrl.Files(), 2)

	// Nothing was remembered, so a retry calls the repository again.
	f.tenants.CreateTenantFunc = nil
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "Acme"}}))
	assert.Len(t, f.tenants.CreateCalls, 2)
}

func TestChooseExistingTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, f.ctrl.ConfirmSelection())

	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting, TenantID: "other-9"}))
	_, chosen := f.ctrl.Target()
	assert.Equal(t, "other-9", chosen.ID)
	assert.Equal(t, "Otra", chosen.Name)
	assert.Empty(t, f.tenants.CreateCalls)

	require.NoError(t, f.ctrl.Back())
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting}))
	_, chosen = f.ctrl.Target()
	assert.Equal(t, "active-1", chosen.ID)

	require.NoError(t, f.ctrl.Back())
	err := f.ctrl.ChooseTarget(ctx, Target{Kind: "somewhere"})
	assert.True(t, domain.IsInvalidInput(err))
}

func TestChooseExistingTenantMustBeListed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, f.ctrl.ConfirmSelection())

	err := f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting, TenantID: "ghost"})
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, StepTargetSelection, f.ctrl.Step())
	assert.Equal(t, err, f.ctrl.Err())

	listErr := errors.New("connection reset")
	f.tenants.ListTenantsFunc = func(context.Context) ([]*tenant.Tenant, error) { return nil, listErr }
	err = f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting})
	assert.ErrorIs(t, err, listErr)
	assert.Equal(t, StepTargetSelection, f.ctrl.Step())
}

func TestMissingCollaborators(t *testing.T) {
	ctx := context.Background()
	ctrl := New(Options{
		ActiveTenantID: "active-1",
		Logger:         slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	require.NoError(t, ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, ctrl.SetSelection([]int{0}))
	require.NoError(t, ctrl.ConfirmSelection())

	assert.True(t, domain.IsInvalidInput(ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting})))
	assert.True(t, domain.IsInvalidInput(ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "Acme"}})))
	assert.Equal(t, StepTargetSelection, ctrl.Step())

	ctrl = New(Options{
		Tenants: &mocks.MockTenantRepository{},
		Logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	require.NoError(t, ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, ctrl.SetSelection([]int{0}))
	require.NoError(t, ctrl.ConfirmSelection())
	require.NoError(t, ctrl.ChooseTarget(ctx, Target{Kind: TargetNew, Company: tenant.CreateRequest{Name: "Acme"}}))

	err := ctrl.ConfirmImport(ctx)
	assert.True(t, domain.IsInvalidInput(err))
	assert.Equal(t, StepMap, ctrl.Step())
}

func TestMapEditing(t *testing.T) {
	f := newFixture(t)
	f.toMap(t)

	require.NoError(t, f.ctrl.ClearField(0, "tax_id"))
	review, err := f.ctrl.Review(0)
	require.NoError(t, err)
	assert.False(t, review.Ready)
	assert.Equal(t, []string{"tax_id"}, review.MissingRequired)
	assert.Equal(t, []string{"tax_id"}, review.UnmatchedColumns)

	assert.True(t, domain.IsNotFound(f.ctrl.SetField(0, "tax_id", "missing")))
	assert.True(t, domain.IsNotFound(f.ctrl.SetField(0, "nope", "tax_id")))
	require.NoError(t, f.ctrl.SetField(0, "tax_id", "tax_id"))
	review, err = f.ctrl.Review(0)
	require.NoError(t, err)
	assert.True(t, review.Ready)

	assert.True(t, domain.IsNotFound(f.ctrl.SetSchema(0, "invoices")))
	require.NoError(t, f.ctrl.SetSchema(0, "suppliers"))
	m, _ := f.ctrl.Mapping(0)
	assert.Equal(t, "suppliers", m.Schema)
	assert.Equal(t, "tax_id", m.Mapping["tax_id"])

	require.NoError(t, f.ctrl.SetSchema(0, ""))
	review, err = f.ctrl.Review(0)
	require.NoError(t, err)
	assert.False(t, review.Ready)
	assert.True(t, domain.IsInvalidInput(f.ctrl.SetField(0, "name", "name")))

	assert.True(t, domain.IsInvalidInput(f.ctrl.SetPage(3)))
	require.NoError(t, f.ctrl.SetPage(0))
	assert.Equal(t, 0, f.ctrl.Page())
}

func TestConfirmImport(t *testing.T) {
	f := newFixture(t)
	f.toMap(t)

	require.NoError(t, f.ctrl.ConfirmImport(context.Background()))
	assert.Equal(t, StepImport, f.ctrl.Step())

	require.Len(t, f.executor.Requests, 1)
	req := f.executor.Requests[0]
	assert.Equal(t, "active-1", req.TenantID)
	assert.Equal(t, f.ctrl.UploadID(), req.UploadID)
	require.Len(t, req.Files, 1)
	assert.Equal(t, "customers", req.Files[0].Schema.Name)
	assert.Len(t, req.Files[0].File.Data, 2)

	rep := f.ctrl.Report()
	require.NotNil(t, rep)
	assert.Equal(t, 2, rep.Summary.Inserted)

	// Import is terminal.
	assert.True(t, domain.IsInvalidTransition(f.ctrl.Back()))
	assert.Equal(t,
		[]Step{StepAnalyze, StepTargetSelection, StepMap, StepImport},
		f.steps())
}

func TestConfirmImportNeedsReadyMappings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	require.NoError(t, f.ctrl.ConfirmSelection())
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting}))

	// README.txt matches no schema.
	err := f.ctrl.ConfirmImport(ctx)
	assert.True(t, domain.IsInvalidInput(err))
	assert.Equal(t, StepMap, f.ctrl.Step())
	assert.Empty(t, f.executor.Requests)
}

func TestConfirmImportFailureStaysInMap(t *testing.T) {
	f := newFixture(t)
	f.toMap(t)
	f.executor.ExecuteFunc = func(context.Context, importer.Request) (*report.ImportReport, error) {
		return nil, errors.New("database unavailable")
	}

	err := f.ctrl.ConfirmImport(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepMap, f.ctrl.Step())
	assert.Nil(t, f.ctrl.Report())
	assert.Equal(t, err, f.ctrl.Err())
}

func TestBackDiscardsOnlyCurrentStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Upload(ctx, "a.zip", sampleArchive()))
	uploadID := f.ctrl.UploadID()
	require.NoError(t, f.ctrl.SetSelection([]int{0}))
	require.NoError(t, f.ctrl.ConfirmSelection())
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting}))
	require.NoError(t, f.ctrl.SetField(0, "phone", "name"))

	// map -> target selection drops the mappings, keeps the carried files.
	require.NoError(t, f.ctrl.Back())
	assert.Equal(t, StepTargetSelection, f.ctrl.Step())
	_, ok := f.ctrl.Mapping(0)
	assert.False(t, ok)
	assert.Len(t, f.ctrl.Files(), 1)

	// Choosing again starts from a fresh suggestion.
	require.NoError(t, f.ctrl.ChooseTarget(ctx, Target{Kind: TargetExisting}))
	m, _ := f.ctrl.Mapping(0)
	assert.Equal(t, "phone", m.Mapping["phone"])
	require.NoError(t, f.ctrl.Back())

	// target selection -> analyze keeps the selection.
	require.NoError(t, f.ctrl.Back())
	assert.Equal(t, StepAnalyze, f.ctrl.Step())
	assert.Nil(t, f.ctrl.Files())
	assert.Equal(t, []int{0}, f.ctrl.Selected())

	// analyze -> upload forgets the archive.
	require.NoError(t, f.ctrl.Back())
	assert.Equal(t, StepUpload, f.ctrl.Step())
	assert.Nil(t, f.ctrl.Analysis())
	_, err := f.archives.Get(ctx, uploadID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.toMap(t)

	s := f.ctrl.Snapshot()
	assert.Equal(t, StepMap, s.Step)
	require.Len(t, s.Files, 2)
	assert.Nil(t, s.Files[0].Data)
	assert.Len(t, s.Files[0].Preview, 2)
	assert.Equal(t, []int{0}, s.Selected)
	require.Len(t, s.Mappings, 1)
	assert.True(t, s.Mappings[0].Review.Ready)
	assert.Equal(t, "active-1", s.Tenant.ID)
}

func TestSubscribeRemovesObserver(t *testing.T) {
	ctrl := New(Options{Tenants: &mocks.MockTenantRepository{}, Importer: &mocks.MockExecutor{}})
	var count int
	stop := ctrl.Subscribe(func(Event) { count++ })
	require.NoError(t, ctrl.Upload(context.Background(), "a.zip", sampleArchive()))
	seen := count
	assert.Positive(t, seen)

	stop()
	require.NoError(t, ctrl.Back())
	assert.Equal(t, seen, count)
}
