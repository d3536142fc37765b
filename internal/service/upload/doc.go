// Package upload commits transformed records to storage in fixed-size
// batches.
//
// Batches are sent one at a time, in order. A failed batch is recorded as
// "batch N: message" and the run moves on to the next one, so a partial
// success is a normal outcome. Context cancellation is honored between
// batches, never inside one. Every attempt that reaches storage ends with
// exactly one audit record.
//
// The service layer depends on the Repository interface defined in
// repository.go and never imports database/sql directly.
package upload
