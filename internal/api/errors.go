package api

import (
	"net/http"

	"github.com/ignite/paybench/internal/pkg/httputil"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/ignite/paybench/internal/sheet"
	"github.com/ignite/paybench/internal/taxonomy"
)

// serviceErrors maps service sentinels to responses. Unlisted errors are
// logged and answered with a bare 500.
var serviceErrors = httputil.ErrorMap{
	{Err: ingest.ErrSessionNotFound, Status: http.StatusNotFound, Code: "session_not_found"},
	{Err: ingest.ErrSessionBusy, Status: http.StatusConflict, Code: "session_busy"},
	{Err: ingest.ErrAlreadyCommitted, Status: http.StatusConflict, Code: "already_committed"},
	{Err: ingest.ErrNotValidated, Status: http.StatusConflict, Code: "not_validated"},
	{Err: ingest.ErrDuplicateTarget, Status: http.StatusUnprocessableEntity, Code: "duplicate_target"},
	{Err: ingest.ErrMissingRequired, Status: http.StatusUnprocessableEntity, Code: "missing_required"},
	{Err: ingest.ErrUnknownField, Status: http.StatusBadRequest, Code: "unknown_field"},
	{Err: ingest.ErrUnknownDataType, Status: http.StatusBadRequest, Code: "unknown_data_type"},
	{Err: ingest.ErrColumnOutOfRange, Status: http.StatusBadRequest, Code: "column_out_of_range"},
	{Err: ingest.ErrRowOutOfRange, Status: http.StatusBadRequest, Code: "row_out_of_range"},
	{Err: ingest.ErrNoHeaders, Status: http.StatusBadRequest, Code: "no_headers"},
	{Err: sheet.ErrNoHeaders, Status: http.StatusBadRequest, Code: "no_headers"},
	{Err: sheet.ErrSheetNotFound, Status: http.StatusBadRequest, Code: "sheet_not_found"},
	{Err: sheet.ErrTooManyRows, Status: http.StatusRequestEntityTooLarge, Code: "too_many_rows"},
	{Err: sheet.ErrFileTooLarge, Status: http.StatusRequestEntityTooLarge, Code: "file_too_large"},
	{Err: sheet.ErrUnsupportedFormat, Status: http.StatusUnsupportedMediaType, Code: "unsupported_format"},
	{Err: upload.ErrNoWorkspace, Status: http.StatusBadRequest, Code: "no_workspace"},
	{Err: upload.ErrCancelled, Status: http.StatusServiceUnavailable, Code: "cancelled"},
	{Err: taxonomy.ErrUnknownKind, Status: http.StatusNotFound, Code: "unknown_kind"},
}

func writeError(w http.ResponseWriter, err error) {
	serviceErrors.Write(w, err)
}
