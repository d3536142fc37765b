package upload

import (
	"context"

	"github.com/ignite/paybench/internal/domain"
)

// Repository is the storage boundary. Each batch method receives at most
// BatchSize records and reports how many it stored; an error means the whole
// batch was rejected.
type Repository interface {
	InsertEmployees(ctx context.Context, workspaceID string, batch []domain.Employee) (int, error)
	UpsertBenchmarks(ctx context.Context, workspaceID string, batch []domain.Benchmark) (int, error)
	ApplyCompensationUpdates(ctx context.Context, workspaceID string, batch []domain.CompensationUpdate) (int, error)
	WriteAudit(ctx context.Context, audit *domain.UploadAudit) error
}
