// Package server exposes the migration wizard over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"migra/pkg/cache"
	"migra/pkg/domain"
	"migra/pkg/engine"
	"migra/pkg/importer"
	"migra/pkg/logger"
	"migra/pkg/schema"
	"migra/pkg/storage"
	"migra/pkg/tenant"
	"migra/pkg/wizard"
)

// DefaultMaxArchiveBytes bounds uploads when Options leave it unset.
const DefaultMaxArchiveBytes = 64 << 20

// Options are the dependencies shared by every session.
type Options struct {
	Catalog  *schema.Catalog
	Tenants  tenant.Repository
	Importer importer.Executor
	// Archives is optional; queued imports need it.
	Archives storage.Store
	// Cache is optional and shared across sessions.
	Cache *cache.AnalysisCache

	StrictSniffing  bool
	MaxArchiveBytes int64
	ActiveTenantID  string
	MaxSessions     int
	SessionTTL      time.Duration
	Logger          *slog.Logger
}

type Handler struct {
	opts     Options
	sessions *SessionStore
	logger   *slog.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog = schema.DefaultCatalog()
	}
	if opts.MaxArchiveBytes <= 0 {
		opts.MaxArchiveBytes = DefaultMaxArchiveBytes
	}
	return &Handler{
		opts:     opts,
		sessions: NewSessionStore(opts.MaxSessions, opts.SessionTTL),
		logger:   opts.Logger,
	}
}

// Routes returns the API with its middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("GET /api/schemas", h.handleSchemas)
	mux.HandleFunc("GET /api/tenants", h.handleTenants)
	mux.HandleFunc("POST /api/suggest-mapping", h.handleSuggest)

	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/upload", h.handleUpload)
	mux.HandleFunc("PUT /api/sessions/{id}/selection", h.handleSelection)
	mux.HandleFunc("POST /api/sessions/{id}/selection/confirm", h.handleConfirmSelection)
	mux.HandleFunc("POST /api/sessions/{id}/target", h.handleTarget)
	mux.HandleFunc("PUT /api/sessions/{id}/page", h.handlePage)
	mux.HandleFunc("PUT /api/sessions/{id}/files/{index}/schema", h.handleSchema)
	mux.HandleFunc("PUT /api/sessions/{id}/files/{index}/mapping", h.handleMapping)
	mux.HandleFunc("GET /api/sessions/{id}/files/{index}/review", h.handleReview)
	mux.HandleFunc("POST /api/sessions/{id}/import", h.handleImport)
	mux.HandleFunc("POST /api/sessions/{id}/back", h.handleBack)
	mux.HandleFunc("GET /api/sessions/{id}/events", h.handleEvents)

	return CORS(Logger(h.logger, Recovery(mux)))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

func (h *Handler) handleSchemas(w http.ResponseWriter, _ *http.Request) {
	successResponse(w, h.opts.Catalog.Schemas())
}

func (h *Handler) handleTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.opts.Tenants.ListTenants(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list tenants", "error", err)
		errorResponse(w, err)
		return
	}
	successResponse(w, tenants)
}

type suggestRequest struct {
	Columns []string `json:"columns"`
	// Either Schema names a catalog entry or Fields lists the targets.
	Schema string   `json:"schema,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fields := req.Fields
	if req.Schema != "" {
		s, ok := h.opts.Catalog.Get(req.Schema)
		if !ok {
			errorResponse(w, domain.NewNotFoundError("schema", req.Schema))
			return
		}
		fields = s.FieldNames()
	}
	successResponse(w, schema.SuggestMappingTrace(req.Columns, fields))
}

type sessionResponse struct {
	ID string `json:"id"`
	wizard.Snapshot
}

func (h *Handler) newController(log *slog.Logger) *wizard.Controller {
	return wizard.New(wizard.Options{
		NewAnalyzer: func(onFile func(engine.Progress)) wizard.Analyzer {
			analyzer := engine.NewAnalyzer(engine.Options{
				StrictSniffing: h.opts.StrictSniffing,
				Logger:         log,
				OnFile:         onFile,
			})
			return cache.NewCachedAnalyzer(analyzer, h.opts.Cache)
		},
		Tenants:        h.opts.Tenants,
		Importer:       h.opts.Importer,
		Catalog:        h.opts.Catalog,
		Archives:       h.opts.Archives,
		ActiveTenantID: h.opts.ActiveTenantID,
		Logger:         log,
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Create(func(id string) *wizard.Controller {
		log := logger.WithSession(h.logger, id)
		log.Info("wizard session created")
		return h.newController(log)
	})

	createdResponse(w, sessionResponse{ID: session.ID, Snapshot: session.ctrl.Snapshot()})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := r.PathValue("id")
	session, ok := h.sessions.Get(id)
	if !ok {
		errorResponse(w, domain.NewNotFoundError("session", id))
		return nil, false
	}
	return session, true
}

// act runs fn on the session and replies with the resulting snapshot.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, fn func(*wizard.Controller) error) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var snap wizard.Snapshot
	err := session.Do(func(c *wizard.Controller) error {
		if err := fn(c); err != nil {
			return err
		}
		snap = c.Snapshot()
		return nil
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	successResponse(w, sessionResponse{ID: session.ID, Snapshot: snap})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(*wizard.Controller) error { return nil })
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.sessions.Remove(id) {
		errorResponse(w, domain.NewNotFoundError("session", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload accepts the archive as a multipart "archive" field or as the
// raw body with the file name in the "name" query parameter.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxArchiveBytes+1<<20)

	name, data, err := readUpload(r, h.opts.MaxArchiveBytes)
	if err != nil {
		errorResponse(w, err)
		return
	}
	h.act(w, r, func(c *wizard.Controller) error {
		return c.Upload(r.Context(), name, data)
	})
}

func readUpload(r *http.Request, limit int64) (string, []byte, error) {
	var (
		name string
		src  io.Reader
	)
	if file, header, err := r.FormFile("archive"); err == nil {
		defer func(f multipart.File) { _ = f.Close() }(file)
		name, src = header.Filename, file
	} else if errors.Is(err, http.ErrNotMultipart) {
		name, src = r.URL.Query().Get("name"), r.Body
	} else if errors.Is(err, http.ErrMissingFile) {
		return "", nil, domain.NewInvalidInputError("the 'archive' field is required")
	} else {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return "", nil, &http.MaxBytesError{Limit: limit}
	}
	return name, data, nil
}

type selectionRequest struct {
	Selected []int `json:"selected"`
	All      bool  `json:"all,omitempty"`
	Toggle   *int  `json:"toggle,omitempty"`
}

func (h *Handler) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.act(w, r, func(c *wizard.Controller) error {
		switch {
		case req.Toggle != nil:
			return c.Toggle(*req.Toggle)
		case req.All:
			return c.SelectAll()
		default:
			return c.SetSelection(req.Selected)
		}
	})
}

func (h *Handler) handleConfirmSelection(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(c *wizard.Controller) error { return c.ConfirmSelection() })
}

func (h *Handler) handleTarget(w http.ResponseWriter, r *http.Request) {
	var target wizard.Target
	if !decodeJSON(w, r, &target) {
		return
	}
	h.act(w, r, func(c *wizard.Controller) error { return c.ChooseTarget(r.Context(), target) })
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page int `json:"page"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.act(w, r, func(c *wizard.Controller) error { return c.SetPage(req.Page) })
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	index, ok := fileIndex(w, r)
	if !ok {
		return
	}
	var req struct {
		Schema string `json:"schema"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.act(w, r, func(c *wizard.Controller) error { return c.SetSchema(index, req.Schema) })
}

// handleMapping sets one field; an empty column clears it.
func (h *Handler) handleMapping(w http.ResponseWriter, r *http.Request) {
	index, ok := fileIndex(w, r)
	if !ok {
		return
	}
	var req struct {
		Field  string `json:"field"`
		Column string `json:"column"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Field == "" {
		badRequestResponse(w, "field is required")
		return
	}
	h.act(w, r, func(c *wizard.Controller) error {
		if req.Column == "" {
			return c.ClearField(index, req.Field)
		}
		return c.SetField(index, req.Field, req.Column)
	})
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	index, ok := fileIndex(w, r)
	if !ok {
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var review engine.MappingReview
	err := session.Do(func(c *wizard.Controller) error {
		var err error
		review, err = c.Review(index)
		return err
	})
	if err != nil {
		errorResponse(w, err)
		return
	}
	successResponse(w, review)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(c *wizard.Controller) error { return c.ConfirmImport(r.Context()) })
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, func(c *wizard.Controller) error { return c.Back() })
}

func fileIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		badRequestResponse(w, "file index must be a number")
		return 0, false
	}
	return index, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequestResponse(w, "invalid request body")
		return false
	}
	return true
}
