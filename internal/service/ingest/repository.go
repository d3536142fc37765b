package ingest

import (
	"context"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/service/upload"
)

// SessionStore persists import sessions between requests.
type SessionStore interface {
	// Save creates or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Load returns ErrSessionNotFound when the id is unknown or expired.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
}

// ProgressStore publishes commit progress so other requests can poll it.
type ProgressStore interface {
	Publish(ctx context.Context, sessionID string, p upload.Progress) error

	// Get returns ErrSessionNotFound when nothing has been published.
	Get(ctx context.Context, sessionID string) (*upload.Progress, error)
}

// Uploader sends records to storage in batches. *upload.Service satisfies it.
type Uploader interface {
	UploadEmployees(ctx context.Context, m upload.Manifest, records []domain.Employee, onProgress upload.ProgressFunc) (*upload.Result, error)
	UploadBenchmarks(ctx context.Context, m upload.Manifest, records []domain.Benchmark, onProgress upload.ProgressFunc) (*upload.Result, error)
	UploadCompensationUpdates(ctx context.Context, m upload.Manifest, records []domain.CompensationUpdate, onProgress upload.ProgressFunc) (*upload.Result, error)
}
