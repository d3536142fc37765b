package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/pkg/httputil"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/ignite/paybench/internal/sheet"
)

// AuditLister lists past uploads. *postgres.UploadRepo satisfies it.
type AuditLister interface {
	ListAudits(ctx context.Context, workspaceID string, limit int) ([]domain.UploadAudit, error)
}

// ImportHandlers serves the import session workflow: upload a file, fix the
// proposed mapping, validate, exclude rows and commit.
type ImportHandlers struct {
	svc       *ingest.Service
	audits    AuditLister
	maxUpload int64
	maxRows   int
	log       *logger.Logger
}

// NewImportHandlers creates the handlers. audits may be nil.
func NewImportHandlers(svc *ingest.Service, audits AuditLister, maxUploadBytes int64, maxRows int, log *logger.Logger) *ImportHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = sheet.MaxBytes
	}
	if maxRows <= 0 {
		maxRows = sheet.MaxRows
	}
	if log == nil {
		log = logger.Default()
	}
	return &ImportHandlers{svc: svc, audits: audits, maxUpload: maxUploadBytes, maxRows: maxRows, log: log.With("api")}
}

// RegisterRoutes mounts the import routes. The caller applies
// RequireWorkspace.
func (h *ImportHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/imports", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Put("/mapping", h.HandleAssign)
			r.Delete("/mapping/{index}", h.HandleUnassign)
			r.Post("/validate", h.HandleValidate)
			r.Post("/reset", h.HandleReset)
			r.Put("/exclusions", h.HandleExclusions)
			r.Get("/summary", h.HandleSummary)
			r.Post("/commit", h.HandleCommit)
			r.Get("/progress", h.HandleProgress)
		})
	})
	r.Get("/audits", h.HandleAudits)
}

// SessionView is the client's picture of a session. Raw rows stay on the
// server; only rows with issues are listed.
type SessionView struct {
	ID            string             `json:"id"`
	WorkspaceID   string             `json:"workspace_id"`
	FileName      string             `json:"file_name"`
	DataType      domain.DataType    `json:"data_type"`
	State         ingest.State       `json:"state"`
	Headers       []string           `json:"headers"`
	RowCount      int                `json:"row_count"`
	ParseWarnings []string           `json:"parse_warnings,omitempty"`
	Mapping       *ingest.Mapping    `json:"mapping"`
	Conflicts     []ingest.Conflict  `json:"conflicts,omitempty"`
	Missing       []string           `json:"missing,omitempty"`
	Summary       *ingest.Summary    `json:"summary,omitempty"`
	Issues        []ingest.RowResult `json:"issues,omitempty"`
	Excluded      []int              `json:"excluded"`
	Result        *upload.Result     `json:"result,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// NewSessionView renders a session for API clients and the CLI.
func NewSessionView(ctx context.Context, svc *ingest.Service, sess *ingest.Session) (*SessionView, error) {
	v := &SessionView{
		ID:            sess.ID,
		WorkspaceID:   sess.WorkspaceID,
		FileName:      sess.FileName,
		DataType:      sess.DataType,
		State:         sess.State,
		Headers:       sess.Headers,
		RowCount:      len(sess.Rows),
		ParseWarnings: sess.ParseWarnings,
		Mapping:       sess.Mapping,
		Conflicts:     sess.Mapping.Conflicts(),
		Excluded:      sess.Excluded,
		Result:        sess.Result,
	}
	if schema, err := svc.Schemas().For(sess.DataType); err == nil {
		v.Missing = sess.Mapping.Missing(schema)
	}
	for _, r := range sess.Results {
		if len(r.Issues) > 0 {
			v.Issues = append(v.Issues, r)
		}
	}
	if sess.Results != nil {
		sum, err := svc.Summary(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		v.Summary = sum
	}
	return v, nil
}

func (h *ImportHandlers) respond(w http.ResponseWriter, r *http.Request, status int, sess *ingest.Session, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := NewSessionView(r.Context(), h.svc, sess)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, status, v)
}

// HandleCreate parses a multipart upload and opens a session.
//
//	POST /api/imports  (file, data_type?, sheet?)
func (h *ImportHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, fmt.Errorf("%w: limit is %d bytes", sheet.ErrFileTooLarge, h.maxUpload))
			return
		}
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	dt := domain.DataType(strings.TrimSpace(r.FormValue("data_type")))
	if dt != "" && !dt.Valid() {
		writeError(w, fmt.Errorf("%w: %q", ingest.ErrUnknownDataType, dt))
		return
	}

	opts := []sheet.Option{sheet.WithMaxRows(h.maxRows)}
	if name := r.FormValue("sheet"); name != "" {
		opts = append(opts, sheet.WithSheet(name))
	}
	tbl, err := sheet.Parse(header.Filename, file, opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.svc.Open(r.Context(), ingest.OpenRequest{
		FileName:      header.Filename,
		FileSize:      header.Size,
		DataType:      dt,
		Headers:       tbl.Headers,
		Rows:          tbl.Rows,
		ParseWarnings: tbl.Warnings,
	})
	h.respond(w, r, http.StatusCreated, sess, err)
}

//	GET /api/imports/{id}
func (h *ImportHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, sess, err)
}

//	DELETE /api/imports/{id}
func (h *ImportHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// AssignRequest maps one source column to a target field.
type AssignRequest struct {
	Column int    `json:"column"`
	Field  string `json:"field"`
}

//	PUT /api/imports/{id}/mapping  {"column": 2, "field": "location"}
func (h *ImportHandlers) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		httputil.BadRequest(w, "field is required")
		return
	}
	sess, err := h.svc.Assign(r.Context(), chi.URLParam(r, "id"), req.Column, req.Field)
	h.respond(w, r, http.StatusOK, sess, err)
}

//	DELETE /api/imports/{id}/mapping/{index}
func (h *ImportHandlers) HandleUnassign(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httputil.BadRequest(w, "column index must be a number")
		return
	}
	sess, err := h.svc.Unassign(r.Context(), chi.URLParam(r, "id"), idx)
	h.respond(w, r, http.StatusOK, sess, err)
}

//	POST /api/imports/{id}/validate
func (h *ImportHandlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Validate(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, sess, err)
}

//	POST /api/imports/{id}/reset
func (h *ImportHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Reset(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, sess, err)
}

// ExclusionsRequest replaces the excluded row set.
type ExclusionsRequest struct {
	Rows []int `json:"rows"`
}

//	PUT /api/imports/{id}/exclusions  {"rows": [3, 7]}
func (h *ImportHandlers) HandleExclusions(w http.ResponseWriter, r *http.Request) {
	var req ExclusionsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	sess, err := h.svc.SetExcluded(r.Context(), chi.URLParam(r, "id"), req.Rows)
	h.respond(w, r, http.StatusOK, sess, err)
}

//	GET /api/imports/{id}/summary
func (h *ImportHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, sum)
}

// HandleCommit runs the upload synchronously and ignores request
// cancellation, so every batch is attempted even if the client goes away.
// When some records reached storage
// the session view is returned with the error attached, so the client still
// sees what was inserted.
//
//	POST /api/imports/{id}/commit
func (h *ImportHandlers) HandleCommit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Commit(context.WithoutCancel(r.Context()), chi.URLParam(r, "id"))
	if err != nil && (sess == nil || sess.Result == nil) {
		writeError(w, err)
		return
	}
	v, verr := NewSessionView(r.Context(), h.svc, sess)
	if verr != nil {
		writeError(w, verr)
		return
	}
	if err != nil {
		h.log.Warn("commit finished with error", "session", sess.ID, "error", err.Error())
		v.Error = err.Error()
	}
	httputil.OK(w, v)
}

//	GET /api/imports/{id}/progress
func (h *ImportHandlers) HandleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, p)
}

//	GET /api/audits?limit=20
func (h *ImportHandlers) HandleAudits(w http.ResponseWriter, r *http.Request) {
	if h.audits == nil {
		httputil.NotFound(w, "upload history is not available")
		return
	}
	ws, ok := upload.WorkspaceFrom(r.Context())
	if !ok {
		writeError(w, upload.ErrNoWorkspace)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	audits, err := h.audits.ListAudits(r.Context(), ws, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if audits == nil {
		audits = []domain.UploadAudit{}
	}
	httputil.OK(w, map[string]interface{}{"audits": audits})
}
