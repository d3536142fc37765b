package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/paybench/internal/datanorm"
	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/pkg/distlock"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/pkg/metrics"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/service/upload"
)

// DefaultLockTTL bounds how long a crashed commit can hold a session.
const DefaultLockTTL = 10 * time.Minute

// Service runs import sessions. It is safe for concurrent use; commits of
// the same session are serialized through a distributed lock.
type Service struct {
	res        *resolve.Resolver
	schemas    *Schemas
	sessions   SessionStore
	progress   ProgressStore
	uploader   Uploader
	locks      distlock.Factory
	lockTTL    time.Duration
	classifier *datanorm.Classifier
	metrics    *metrics.Manager
	log        *logger.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocks sets the lock factory used by Commit. The default is an
// in-process lock table.
func WithLocks(f distlock.Factory) Option { return func(s *Service) { s.locks = f } }

// WithLockTTL sets how long a commit may run before its session is
// considered abandoned. It should match the TTL of the lock factory.
func WithLockTTL(d time.Duration) Option { return func(s *Service) { s.lockTTL = d } }

// WithProgress sets where commit progress is published.
func WithProgress(p ProgressStore) Option { return func(s *Service) { s.progress = p } }

func WithMetrics(m *metrics.Manager) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *logger.Logger) Option    { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates an ingest service.
func NewService(res *resolve.Resolver, sessions SessionStore, uploader Uploader, opts ...Option) *Service {
	s := &Service{
		res:        res,
		sessions:   sessions,
		uploader:   uploader,
		classifier: datanorm.NewClassifier(),
		lockTTL:    DefaultLockTTL,
		log:        logger.Default().With("ingest"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = distlock.NewFactory(nil, nil, s.lockTTL)
	}
	s.schemas = NewSchemas(res, s.now)
	return s
}

// Schemas exposes the import schemas.
func (s *Service) Schemas() *Schemas { return s.schemas }

// OpenRequest is a parsed file ready to become a session.
type OpenRequest struct {
	WorkspaceID string
	FileName    string
	FileSize    int64
	// DataType is optional; when empty it is guessed from the file name and
	// headers.
	DataType      domain.DataType
	Headers       []string
	Rows          [][]string
	ParseWarnings []string
}

// Open starts a session and proposes a mapping. The workspace comes from the
// request or, failing that, from ctx.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	workspaceID := strings.TrimSpace(req.WorkspaceID)
	if workspaceID == "" {
		ws, ok := upload.WorkspaceFrom(ctx)
		if !ok {
			return nil, upload.ErrNoWorkspace
		}
		workspaceID = ws
	}
	if len(req.Headers) == 0 {
		return nil, ErrNoHeaders
	}

	dt := req.DataType
	if dt == "" {
		dt = s.classifier.Classify(req.FileName, req.Headers)
	}
	schema, err := s.schemas.For(dt)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		DataType:      dt,
		Headers:       req.Headers,
		Rows:          req.Rows,
		ParseWarnings: req.ParseWarnings,
		Mapping:       InferMapping(schema, req.Headers, req.Rows),
		Excluded:      []int{},
		State:         StateMapping,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.metrics.SessionEvent(string(dt), "open")
	s.metrics.MappingConfidence(string(dt), sess.Mapping.MeanConfidence())
	s.log.Info("import opened",
		"session", sess.ID,
		"workspace", workspaceID,
		"data_type", string(dt),
		"columns", len(req.Headers),
		"rows", len(req.Rows),
	)
	return sess, nil
}

// Get loads a session. A session owned by another workspace than the one in
// ctx is reported as not found.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws, ok := upload.WorkspaceFrom(ctx); ok && ws != sess.WorkspaceID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// update loads a mutable session, applies fn and saves the result.
func (s *Service) update(ctx context.Context, id string, fn func(*Session, *Schema) error) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case StateCommitting:
		if !s.abandoned(sess) {
			return nil, ErrSessionBusy
		}
		sess.State = StateValidated
	case StateCommitted:
		return nil, ErrAlreadyCommitted
	}
	schema, err := s.schemas.For(sess.DataType)
	if err != nil {
		return nil, err
	}
	if err := fn(sess, schema); err != nil {
		return nil, err
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Assign maps one column to field and discards validation results.
func (s *Service) Assign(ctx context.Context, id string, column int, field string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session, schema *Schema) error {
		if err := sess.Mapping.Assign(schema, column, field); err != nil {
			return err
		}
		sess.clearValidation()
		return nil
	})
}

// Unassign clears one column's target and discards validation results.
func (s *Service) Unassign(ctx context.Context, id string, column int) (*Session, error) {
	return s.update(ctx, id, func(sess *Session, _ *Schema) error {
		if err := sess.Mapping.Unassign(column); err != nil {
			return err
		}
		sess.clearValidation()
		return nil
	})
}

// Validate recomputes every row. A mapping that is not ready fails with
// ErrDuplicateTarget or ErrMissingRequired and leaves the session unchanged.
func (s *Service) Validate(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session, schema *Schema) error {
		results, err := Validate(schema, sess.Mapping, sess.Rows)
		if err != nil {
			return err
		}
		sess.Results = results
		sess.State = StateValidated

		set := BuildCommitSet(sess.DataType, sess.Mapping, sess.Rows, results, sess.Excluded, s.transformer(sess))
		sess.Dropped = set.Dropped

		dt := string(sess.DataType)
		for i := range results {
			s.metrics.RowValidated(dt, string(results[i].Status()))
		}
		s.metrics.SessionEvent(dt, "validate")
		return nil
	})
}

// SetExcluded replaces the exclusion set. Indices are zero-based data rows.
// Excluding an invalid row is accepted and has no effect.
func (s *Service) SetExcluded(ctx context.Context, id string, rows []int) (*Session, error) {
	return s.update(ctx, id, func(sess *Session, _ *Schema) error {
		excluded, err := normalizeRows(rows, len(sess.Rows))
		if err != nil {
			return err
		}
		sess.Excluded = excluded
		if sess.State == StateValidated {
			set := BuildCommitSet(sess.DataType, sess.Mapping, sess.Rows, sess.Results, excluded, s.transformer(sess))
			sess.Dropped = set.Dropped
		}
		return nil
	})
}

// Summary counts rows by outcome. The session must be validated.
func (s *Service) Summary(ctx context.Context, id string) (*Summary, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Results == nil {
		return nil, ErrNotValidated
	}
	set := BuildCommitSet(sess.DataType, sess.Mapping, sess.Rows, sess.Results, sess.Excluded, s.transformer(sess))
	return summarize(sess.Results, set), nil
}

// Reset re-infers the mapping and clears exclusions and results.
func (s *Service) Reset(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, id, func(sess *Session, schema *Schema) error {
		sess.Mapping = InferMapping(schema, sess.Headers, sess.Rows)
		sess.Excluded = []int{}
		sess.clearValidation()
		return nil
	})
}

// Delete discards a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, id)
}

// Progress returns the last published commit progress.
func (s *Service) Progress(ctx context.Context, id string) (*upload.Progress, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.progress == nil {
		return nil, fmt.Errorf("%w: no progress for %s", ErrSessionNotFound, id)
	}
	return s.progress.Get(ctx, id)
}

// Commit sends the session's valid, included, transformable rows to storage.
// Only one commit per session runs at a time; a concurrent call gets
// ErrSessionBusy. Partial batch failures are part of the returned result,
// not an error.
func (s *Service) Commit(ctx context.Context, id string) (*Session, error) {
	var out *Session
	err := distlock.Do(ctx, s.locks("import:"+id), func(ctx context.Context) error {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		switch sess.State {
		case StateCommitted:
			return ErrAlreadyCommitted
		case StateCommitting:
			if !s.abandoned(sess) {
				return ErrSessionBusy
			}
			s.log.Warn("retrying abandoned commit", "session", sess.ID, "since", sess.UpdatedAt.Format(time.RFC3339))
		case StateMapping:
			return ErrNotValidated
		}
		schema, err := s.schemas.For(sess.DataType)
		if err != nil {
			return err
		}

		// Rows are validated again so the commit never trusts stored results.
		results, err := Validate(schema, sess.Mapping, sess.Rows)
		if err != nil {
			return err
		}
		sess.Results = results
		set := BuildCommitSet(sess.DataType, sess.Mapping, sess.Rows, results, sess.Excluded, s.transformer(sess))
		sess.Dropped = set.Dropped

		sess.State = StateCommitting
		sess.UpdatedAt = s.now().UTC()
		if err := s.sessions.Save(ctx, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		res, upErr := s.upload(upload.WithWorkspace(ctx, sess.WorkspaceID), sess, set)
		if res == nil {
			// Nothing reached storage; the session can be committed again.
			sess.State = StateValidated
		} else {
			sess.State = StateCommitted
			sess.Result = res
		}
		sess.UpdatedAt = s.now().UTC()
		if err := s.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
			return errors.Join(upErr, fmt.Errorf("save session: %w", err))
		}

		dt := string(sess.DataType)
		s.metrics.RecordsDropped(dt, len(set.Dropped))
		s.metrics.SessionEvent(dt, "commit")
		out = sess
		return upErr
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return nil, ErrSessionBusy
	}
	return out, err
}

// abandoned reports whether a commit in progress has outlived its lock, which
// only happens when the committing process died.
func (s *Service) abandoned(sess *Session) bool {
	return sess.State == StateCommitting && s.now().Sub(sess.UpdatedAt) > s.lockTTL
}

func (s *Service) upload(ctx context.Context, sess *Session, set *CommitSet) (*upload.Result, error) {
	m := upload.Manifest{
		UploadType: sess.DataType,
		FileName:   sess.FileName,
		FileSize:   sess.FileSize,
		RowCount:   len(sess.Rows),
	}
	onProgress := func(p upload.Progress) {
		if s.progress == nil {
			return
		}
		if err := s.progress.Publish(ctx, sess.ID, p); err != nil {
			s.log.Warn("publish progress failed", "session", sess.ID, "error", err)
		}
	}

	s.log.Info("commit started",
		"session", sess.ID,
		"data_type", string(sess.DataType),
		"records", set.Len(),
		"excluded", len(set.Excluded),
		"dropped", len(set.Dropped),
		"invalid", set.Invalid,
	)
	switch sess.DataType {
	case domain.DataEmployee:
		return s.uploader.UploadEmployees(ctx, m, set.Employees, onProgress)
	case domain.DataBenchmark:
		return s.uploader.UploadBenchmarks(ctx, m, set.Benchmarks, onProgress)
	case domain.DataCompensationUpdate:
		return s.uploader.UploadCompensationUpdates(ctx, m, set.Updates, onProgress)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, sess.DataType)
}

func (s *Service) transformer(sess *Session) *Transformer {
	return NewTransformer(s.res, sess.CreatedAt)
}
