package ingest

import "errors"

// Sentinel errors for the ingest service layer.
var (
	ErrDuplicateTarget  = errors.New("field mapped from more than one column")
	ErrMissingRequired  = errors.New("required field not mapped")
	ErrUnknownDataType  = errors.New("unknown data type")
	ErrUnknownField     = errors.New("unknown target field")
	ErrColumnOutOfRange = errors.New("column index out of range")
	ErrRowOutOfRange    = errors.New("row index out of range")
	ErrNoHeaders        = errors.New("file has no header row")
	ErrSessionNotFound  = errors.New("import session not found")
	ErrSessionBusy      = errors.New("import session is being committed")
	ErrAlreadyCommitted = errors.New("import session already committed")
	ErrNotValidated     = errors.New("import session has not been validated")
)
