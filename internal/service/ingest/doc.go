// Package ingest turns a parsed spreadsheet into committed records.
//
// An import session moves through four stages: a column mapping is inferred
// from the headers, the user may edit it, every row is validated against the
// data type's schema, and the surviving rows are transformed into typed
// records and handed to the upload service in batches.
//
// Validation is never incremental. Any mapping edit discards the previous
// results and the next Validate call recomputes every row. The service layer
// depends on the SessionStore, ProgressStore and Uploader interfaces in
// repository.go and never imports net/http or database/sql directly.
package ingest
