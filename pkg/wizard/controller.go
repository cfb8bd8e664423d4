// Package wizard drives one migration session through its steps:
// upload, analyze, target selection, map and import.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"migra/pkg/domain"
	"migra/pkg/engine"
	"migra/pkg/importer"
	"migra/pkg/report"
	"migra/pkg/schema"
	"migra/pkg/storage"
	"migra/pkg/tenant"
)

// Analyzer runs the analysis pass over an uploaded archive.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*engine.Analysis, error)
}

// TargetKind tells whether the import goes to a new or an existing company.
type TargetKind string

const (
	TargetNew      TargetKind = "new"
	TargetExisting TargetKind = "existing"
)

// Target is the destination chosen in the target selection step.
type Target struct {
	Kind TargetKind `json:"kind"`
	// TenantID picks an existing company; empty means the active one. It
	// must be listed by the tenant repository.
	TenantID string `json:"tenantId,omitempty"`
	// Company describes the company to create for TargetNew.
	Company tenant.CreateRequest `json:"company"`
}

// FileMapping is the schema and mapping under review for one carried file.
type FileMapping struct {
	Schema    string            `json:"schema"`
	Mapping   map[string]string `json:"mapping"`
	Conflicts []schema.Conflict `json:"conflicts,omitempty"`
}

// Options are the collaborators of a Controller.
type Options struct {
	// NewAnalyzer builds the analyzer for an upload; onFile reports progress.
	NewAnalyzer func(onFile func(engine.Progress)) Analyzer
	Tenants     tenant.Repository
	Importer    importer.Executor
	Catalog     *schema.Catalog
	// Archives, when set, keeps each upload for workers that re-read it.
	Archives       storage.Store
	ActiveTenantID string
	Logger         *slog.Logger
}

// Controller holds the state of one wizard session. It is not safe for
// concurrent use.
type Controller struct {
	opts   Options
	logger *slog.Logger

	step Step
	err  error

	uploadName string
	uploadID   string
	analysis   *engine.Analysis
	selected   []bool

	carried []engine.DetectedFile

	target   *Target
	tenant   *tenant.Tenant
	created  map[string]*tenant.Tenant
	mappings []FileMapping
	page     int

	report *report.ImportReport

	observers map[int]Observer
	nextObs   int
}

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = schema.DefaultCatalog()
	}
	if opts.NewAnalyzer == nil {
		opts.NewAnalyzer = func(onFile func(engine.Progress)) Analyzer {
			return engine.NewAnalyzer(engine.Options{Logger: logger, OnFile: onFile})
		}
	}
	return &Controller{
		opts:      opts,
		logger:    logger,
		step:      StepUpload,
		created:   make(map[string]*tenant.Tenant),
		observers: make(map[int]Observer),
	}
}

// Step returns the current step.
func (c *Controller) Step() Step { return c.step }

// Err returns the inline error of the last failed action, if any.
func (c *Controller) Err() error { return c.err }

// Subscribe registers an observer and returns a function removing it.
func (c *Controller) Subscribe(o Observer) func() {
	id := c.nextObs
	c.nextObs++
	c.observers[id] = o
	return func() { delete(c.observers, id) }
}

func (c *Controller) emit(t EventType, message string, data any) {
	ev := Event{Type: t, Step: c.step, Message: message, Data: data, Time: time.Now().UTC()}
	for _, o := range c.observers {
		o(ev)
	}
}

func (c *Controller) moveTo(s Step) {
	c.step = s
	c.emit(EventStepChanged, string(s), nil)
}

// fail records err as the inline error and tells observers.
func (c *Controller) fail(err error) error {
	c.err = err
	c.emit(EventError, domain.UserMessage(err), nil)
	return err
}

func (c *Controller) expect(action string, s Step) error {
	if c.step != s {
		return domain.NewInvalidTransitionError(action, string(c.step))
	}
	return nil
}

// Upload analyzes an archive. The wizard moves to analyze with every file
// selected; an invalid archive or one without readable files keeps it in
// upload with the error recorded.
func (c *Controller) Upload(ctx context.Context, name string, data []byte) error {
	if err := c.expect("upload", StepUpload); err != nil {
		return err
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".zip") {
		return c.fail(domain.NewInvalidInputError("the file must be a .zip archive"))
	}
	if len(data) == 0 {
		return c.fail(domain.NewInvalidInputError("the uploaded file is empty"))
	}

	analyzer := c.opts.NewAnalyzer(func(p engine.Progress) {
		c.emit(EventFileAnalyzed, p.Name, p)
	})
	analysis, err := analyzer.Analyze(ctx, data)
	if err != nil {
		return c.fail(err)
	}
	if len(analysis.Files) == 0 {
		return c.fail(domain.NewEmptyArchiveError())
	}

	uploadID := uuid.NewString()
	if c.opts.Archives != nil {
		if err := c.opts.Archives.Put(ctx, uploadID, data); err != nil {
			return c.fail(fmt.Errorf("store upload: %w", err))
		}
	}

	c.err = nil
	c.uploadName = name
	c.uploadID = uploadID
	c.analysis = analysis
	c.selected = make([]bool, len(analysis.Files))
	for i := range c.selected {
		c.selected[i] = true
	}

	c.logger.Info("archive analyzed",
		"upload", uploadID,
		"name", name,
		"files", len(analysis.Files),
		"failures", len(analysis.Failures),
	)
	c.moveTo(StepAnalyze)
	return nil
}

// Analysis returns the result of the accepted upload.
func (c *Controller) Analysis() *engine.Analysis { return c.analysis }

// UploadID identifies the stored archive of the accepted upload.
func (c *Controller) UploadID() string { return c.uploadID }

func (c *Controller) checkIndex(i int) error {
	if i < 0 || i >= len(c.selected) {
		return domain.NewInvalidInputError(fmt.Sprintf("file index %d is out of range", i))
	}
	return nil
}

// Toggle flips the selection of file i.
func (c *Controller) Toggle(i int) error {
	if err := c.expect("toggle", StepAnalyze); err != nil {
		return err
	}
	if err := c.checkIndex(i); err != nil {
		return err
	}
	c.selected[i] = !c.selected[i]
	return nil
}

// SetSelection replaces the selection with indices.
func (c *Controller) SetSelection(indices []int) error {
	if err := c.expect("select", StepAnalyze); err != nil {
		return err
	}
	for _, i := range indices {
		if err := c.checkIndex(i); err != nil {
			return err
		}
	}
	for i := range c.selected {
		c.selected[i] = false
	}
	for _, i := range indices {
		c.selected[i] = true
	}
	return nil
}

func (c *Controller) SelectAll() error {
	if err := c.expect("select", StepAnalyze); err != nil {
		return err
	}
	for i := range c.selected {
		c.selected[i] = true
	}
	return nil
}

func (c *Controller) ClearSelection() error {
	if err := c.expect("select", StepAnalyze); err != nil {
		return err
	}
	for i := range c.selected {
		c.selected[i] = false
	}
	return nil
}

// Selected returns the selected file indices in ascending order.
func (c *Controller) Selected() []int {
	out := []int{}
	for i, on := range c.selected {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// CanConfirmSelection reports whether continuing is enabled.
func (c *Controller) CanConfirmSelection() bool {
	return c.step == StepAnalyze && slices.Contains(c.selected, true)
}

// ConfirmSelection carries the selected files, in archive order, to target
// selection. Unselected files are dropped.
func (c *Controller) ConfirmSelection() error {
	if err := c.expect("confirm selection", StepAnalyze); err != nil {
		return err
	}
	if !c.CanConfirmSelection() {
		return c.fail(domain.NewEmptySelectionError())
	}

	c.carried = make([]engine.DetectedFile, 0, len(c.selected))
	for i, on := range c.selected {
		if on {
			c.carried = append(c.carried, c.analysis.Files[i])
		}
	}
	c.err = nil
	c.moveTo(StepTargetSelection)
	return nil
}

// Files returns the files carried past the selection step.
func (c *Controller) Files() []engine.DetectedFile { return c.carried }

// ChooseTarget resolves the destination company and prepares a suggested
// mapping for every carried file. A new company is created first; if that
// fails the wizard stays in target selection. A company created earlier in
// this session under the same name is reused.
func (c *Controller) ChooseTarget(ctx context.Context, t Target) error {
	if err := c.expect("choose target", StepTargetSelection); err != nil {
		return err
	}

	var chosen *tenant.Tenant
	switch t.Kind {
	case TargetNew:
		if err := t.Company.Validate(); err != nil {
			return c.fail(err)
		}
		key := strings.ToLower(strings.TrimSpace(t.Company.Name))
		if existing, ok := c.created[key]; ok {
			chosen = existing
			break
		}
		if c.opts.Tenants == nil {
			return c.fail(domain.NewInvalidInputError("no company repository is configured"))
		}
		created, err := c.opts.Tenants.CreateTenant(ctx, t.Company)
		if err != nil {
			c.logger.Warn("tenant creation failed", "name", t.Company.Name, "error", err)
			return c.fail(domain.NewTenantCreationError(t.Company.Name, err))
		}
		c.created[key] = created
		chosen = created
		c.emit(EventTenantCreated, created.Name, created)
	case TargetExisting:
		id := firstNonEmpty(t.TenantID, c.opts.ActiveTenantID)
		if id == "" {
			return c.fail(domain.NewInvalidInputError("no active company to import into"))
		}
		found, err := c.lookupTenant(ctx, id)
		if err != nil {
			return c.fail(err)
		}
		chosen = found
	default:
		return c.fail(domain.NewInvalidInputError(fmt.Sprintf("unknown target kind %q", t.Kind)))
	}

	c.target = &t
	c.tenant = chosen
	c.mappings = make([]FileMapping, len(c.carried))
	for i, f := range c.carried {
		if s, ok := c.opts.Catalog.Guess(f.Name, f.Columns); ok {
			c.mappings[i] = suggest(f, s)
		} else {
			c.mappings[i] = FileMapping{Mapping: map[string]string{}}
		}
	}
	c.page = 0
	c.err = nil
	c.moveTo(StepMap)
	return nil
}

// lookupTenant finds an existing company by id.
func (c *Controller) lookupTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	if c.opts.Tenants == nil {
		return nil, domain.NewInvalidInputError("no company repository is configured")
	}
	tenants, err := c.opts.Tenants.ListTenants(ctx)
	if err != nil {
		c.logger.Warn("listing companies failed", "error", err)
		return nil, fmt.Errorf("list companies: %w", err)
	}
	for _, t := range tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.NewNotFoundError("company", id)
}

// Target returns the chosen destination and company.
func (c *Controller) Target() (*Target, *tenant.Tenant) { return c.target, c.tenant }

func suggest(f engine.DetectedFile, s schema.Schema) FileMapping {
	sg := schema.SuggestMappingTrace(f.Columns, s.FieldNames())
	return FileMapping{Schema: s.Name, Mapping: sg.Mapping, Conflicts: sg.Conflicts}
}

func (c *Controller) mapped(action string, i int) error {
	if err := c.expect(action, StepMap); err != nil {
		return err
	}
	if i < 0 || i >= len(c.mappings) {
		return domain.NewInvalidInputError(fmt.Sprintf("file index %d is out of range", i))
	}
	return nil
}

// Page returns the index of the file under review.
func (c *Controller) Page() int { return c.page }

// SetPage moves the review to file i.
func (c *Controller) SetPage(i int) error {
	if err := c.mapped("page", i); err != nil {
		return err
	}
	c.page = i
	return nil
}

// Mapping returns the mapping under review for file i.
func (c *Controller) Mapping(i int) (FileMapping, bool) {
	if i < 0 || i >= len(c.mappings) {
		return FileMapping{}, false
	}
	return c.mappings[i], true
}

// SetSchema changes the target schema of file i and suggests a new mapping.
// An empty name clears it.
func (c *Controller) SetSchema(i int, name string) error {
	if err := c.mapped("set schema", i); err != nil {
		return err
	}
	if name == "" {
		c.mappings[i] = FileMapping{Mapping: map[string]string{}}
		return nil
	}
	s, ok := c.opts.Catalog.Get(name)
	if !ok {
		return domain.NewNotFoundError("schema", name)
	}
	c.mappings[i] = suggest(c.carried[i], s)
	return nil
}

// SetField maps field of file i to column, replacing any suggestion.
func (c *Controller) SetField(i int, field, column string) error {
	if err := c.mapped("set field", i); err != nil {
		return err
	}
	m := &c.mappings[i]
	s, ok := c.opts.Catalog.Get(m.Schema)
	if !ok {
		return domain.NewInvalidInputError("choose a schema first")
	}
	if !s.HasField(field) {
		return domain.NewNotFoundError("field", field)
	}
	if !slices.Contains(c.carried[i].Columns, column) {
		return domain.NewNotFoundError("column", column)
	}
	m.Mapping[field] = column
	m.Conflicts = dropConflicts(m.Conflicts, field)
	return nil
}

// ClearField leaves field of file i unmapped.
func (c *Controller) ClearField(i int, field string) error {
	if err := c.mapped("clear field", i); err != nil {
		return err
	}
	m := &c.mappings[i]
	delete(m.Mapping, field)
	m.Conflicts = dropConflicts(m.Conflicts, field)
	return nil
}

func dropConflicts(conflicts []schema.Conflict, field string) []schema.Conflict {
	return slices.DeleteFunc(conflicts, func(cf schema.Conflict) bool { return cf.Field == field })
}

// Review checks the mapping of file i. A file without a schema is never
// ready.
func (c *Controller) Review(i int) (engine.MappingReview, error) {
	if err := c.mapped("review", i); err != nil {
		return engine.MappingReview{}, err
	}
	return c.review(i), nil
}

func (c *Controller) review(i int) engine.MappingReview {
	m := c.mappings[i]
	s, ok := c.opts.Catalog.Get(m.Schema)
	if !ok {
		return engine.MappingReview{
			File:             c.carried[i].Name,
			Mapping:          map[string]string{},
			UnmatchedColumns: c.carried[i].Columns,
		}
	}
	return engine.ReviewMapping(c.carried[i], s, schema.Suggestion{Mapping: m.Mapping, Conflicts: m.Conflicts})
}

// ConfirmImport runs the import of every carried file, in order. Every file
// must have a ready mapping. On success the wizard moves to import with the
// report; otherwise it stays in map with the error.
func (c *Controller) ConfirmImport(ctx context.Context) error {
	if err := c.expect("import", StepMap); err != nil {
		return err
	}

	req := importer.Request{
		TenantID: c.tenant.ID,
		UploadID: c.uploadID,
		Files:    make([]importer.FileRequest, 0, len(c.carried)),
	}
	if c.opts.Archives == nil {
		req.UploadID = ""
	}
	for i, f := range c.carried {
		if !c.review(i).Ready {
			return c.fail(domain.NewInvalidInputError(fmt.Sprintf("the mapping of '%s' is incomplete", f.Name)))
		}
		s, _ := c.opts.Catalog.Get(c.mappings[i].Schema)
		req.Files = append(req.Files, importer.FileRequest{
			File:    f,
			Schema:  s,
			Mapping: c.mappings[i].Mapping,
		})
	}

	if c.opts.Importer == nil {
		return c.fail(domain.NewInvalidInputError("no importer is configured"))
	}
	rep, err := c.opts.Importer.Execute(ctx, req)
	if err != nil {
		c.logger.Error("import failed", "tenant", req.TenantID, "error", err)
		return c.fail(err)
	}

	c.report = rep
	c.err = nil
	c.emit(EventImportFinished, rep.ID, rep.Summary)
	c.moveTo(StepImport)
	return nil
}

// Report returns the outcome of the import step.
func (c *Controller) Report() *report.ImportReport { return c.report }

// Back returns to the previous step, discarding what was done in the
// current one. Choices made in earlier steps are kept.
func (c *Controller) Back() error {
	prev, ok := c.step.Previous()
	if !ok {
		return domain.NewInvalidTransitionError("back", string(c.step))
	}

	switch c.step {
	case StepAnalyze:
		if c.opts.Archives != nil && c.uploadID != "" {
			if err := c.opts.Archives.Delete(context.Background(), c.uploadID); err != nil {
				c.logger.Warn("failed to delete stored upload", "upload", c.uploadID, "error", err)
			}
		}
		c.uploadName, c.uploadID = "", ""
		c.analysis, c.selected = nil, nil
	case StepTargetSelection:
		c.carried = nil
	case StepMap:
		c.mappings = nil
		c.page = 0
		c.tenant = nil
	}

	c.err = nil
	c.moveTo(prev)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
