package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/pkg/metrics"
)

// BatchSize is the number of records sent to storage per call.
const BatchSize = 50

// Manifest describes the file behind an upload, for the audit record.
type Manifest struct {
	UploadType domain.DataType
	FileName   string
	FileSize   int64
	RowCount   int
}

// Progress is reported after every batch, failed or not.
type Progress struct {
	Batch     int     `json:"batch"`
	Batches   int     `json:"batches"`
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Inserted  int     `json:"inserted"`
	Percent   float64 `json:"percent"`
}

// ProgressFunc receives progress updates. It runs on the upload goroutine
// and must not block for long.
type ProgressFunc func(Progress)

// Result is the outcome of one upload run.
type Result struct {
	Success       bool     `json:"success"`
	InsertedCount int      `json:"inserted_count"`
	Errors        []string `json:"errors"`
}

// Service implements the batched commit. It is safe for concurrent use;
// each call is an independent run.
type Service struct {
	repo    Repository
	metrics *metrics.Manager
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Manager) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *logger.Logger) Option    { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates an upload service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, log: logger.Default().With("upload"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadEmployees inserts employees. Re-uploading the same file creates
// duplicates.
func (s *Service) UploadEmployees(ctx context.Context, m Manifest, records []domain.Employee, onProgress ProgressFunc) (*Result, error) {
	return run(ctx, s, m, records, onProgress, s.repo.InsertEmployees)
}

// UploadBenchmarks upserts benchmarks on (role, location, level, effective
// date) so re-uploads merge.
func (s *Service) UploadBenchmarks(ctx context.Context, m Manifest, records []domain.Benchmark, onProgress ProgressFunc) (*Result, error) {
	return run(ctx, s, m, records, onProgress, s.repo.UpsertBenchmarks)
}

// UploadCompensationUpdates applies pay changes to existing employees.
func (s *Service) UploadCompensationUpdates(ctx context.Context, m Manifest, records []domain.CompensationUpdate, onProgress ProgressFunc) (*Result, error) {
	return run(ctx, s, m, records, onProgress, s.repo.ApplyCompensationUpdates)
}

type sendFunc[T any] func(ctx context.Context, workspaceID string, batch []T) (int, error)

func run[T any](ctx context.Context, s *Service, m Manifest, records []T, onProgress ProgressFunc, send sendFunc[T]) (*Result, error) {
	workspaceID, ok := WorkspaceFrom(ctx)
	if !ok {
		return nil, ErrNoWorkspace
	}

	start := s.now()
	dataType := string(m.UploadType)
	total := len(records)
	batches := (total + BatchSize - 1) / BatchSize
	res := &Result{Errors: []string{}}

	var runErr error
	for i := 0; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: not attempted: %v", i+1, err))
			runErr = fmt.Errorf("%w after %d of %d batches: %w", ErrCancelled, i, batches, err)
			break
		}

		lo := i * BatchSize
		hi := min(lo+BatchSize, total)
		n, err := send(ctx, workspaceID, records[lo:hi])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d: %v", i+1, err))
			s.log.Warn("batch failed", "data_type", dataType, "batch", i+1, "size", hi-lo, "error", err)
			s.metrics.Batch(dataType, false)
		} else {
			res.InsertedCount += n
			s.metrics.Batch(dataType, true)
		}

		if onProgress != nil {
			onProgress(Progress{
				Batch:     i + 1,
				Batches:   batches,
				Processed: hi,
				Total:     total,
				Inserted:  res.InsertedCount,
				Percent:   float64(hi) / float64(total) * 100,
			})
		}
	}
	res.Success = len(res.Errors) == 0

	s.metrics.RecordsCommitted(dataType, res.InsertedCount)
	s.metrics.UploadDuration(dataType, s.now().Sub(start))
	s.log.Info("upload finished",
		"data_type", dataType,
		"workspace", workspaceID,
		"records", total,
		"inserted", res.InsertedCount,
		"failed_batches", len(res.Errors),
	)

	s.audit(ctx, workspaceID, m, total, res)
	return res, runErr
}

// audit records the attempt. A failed audit write is logged, not returned:
// the records are already committed and the caller must see that result.
func (s *Service) audit(ctx context.Context, workspaceID string, m Manifest, attempted int, res *Result) {
	rowCount := m.RowCount
	if rowCount == 0 {
		rowCount = attempted
	}
	a := &domain.UploadAudit{
		WorkspaceID:  workspaceID,
		UploadType:   m.UploadType,
		FileName:     m.FileName,
		FileSize:     m.FileSize,
		RowCount:     rowCount,
		SuccessCount: res.InsertedCount,
		ErrorCount:   attempted - res.InsertedCount,
		Errors:       res.Errors,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.WriteAudit(context.WithoutCancel(ctx), a); err != nil {
		s.log.Error("audit write failed", "data_type", string(m.UploadType), "file", m.FileName, "error", err)
	}
}
