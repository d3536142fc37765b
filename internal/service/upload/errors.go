package upload

import "errors"

// Sentinel errors for the upload service layer.
var (
	ErrNoWorkspace = errors.New("no workspace in context")
	ErrCancelled   = errors.New("upload cancelled")
)
