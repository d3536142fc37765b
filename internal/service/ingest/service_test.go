package ingest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/pkg/distlock"
	"github.com/ignite/paybench/internal/pkg/logger"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu         sync.Mutex
	employees  []domain.Employee
	benchmarks []domain.Benchmark
	updates    []domain.CompensationUpdate
	audits     []*domain.UploadAudit
	failNext   error
}

func (r *memRepo) InsertEmployees(_ context.Context, ws string, b []domain.Employee) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return 0, err
	}
	for _, e := range b {
		e.WorkspaceID = ws
		r.employees = append(r.employees, e)
	}
	return len(b), nil
}

func (r *memRepo) UpsertBenchmarks(_ context.Context, ws string, b []domain.Benchmark) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.benchmarks = append(r.benchmarks, b...)
	return len(b), nil
}

func (r *memRepo) ApplyCompensationUpdates(_ context.Context, ws string, b []domain.CompensationUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, b...)
	return len(b), nil
}

func (r *memRepo) WriteAudit(_ context.Context, a *domain.UploadAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, a)
	return nil
}

type fixture struct {
	svc   *Service
	repo  *memRepo
	store *MemoryStore
	locks distlock.Factory
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	quiet := logger.New(&bytes.Buffer{}, logger.ERROR, true)
	clock := func() time.Time { return fixedNow }

	repo := &memRepo{}
	store := NewMemoryStore()
	locks := distlock.NewFactory(nil, nil, time.Minute)
	uploader := upload.NewService(repo, upload.WithLogger(quiet), upload.WithClock(clock))
	svc := NewService(testResolver(t), store, uploader,
		WithProgress(store),
		WithLocks(locks),
		WithLogger(quiet),
		WithClock(clock),
	)
	return &fixture{
		svc:   svc,
		repo:  repo,
		store: store,
		locks: locks,
		ctx:   upload.WithWorkspace(context.Background(), "acme"),
	}
}

func TestEndToEndEmployeeImport(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.Open(f.ctx, OpenRequest{
		FileName: "people.csv",
		FileSize: 64,
		DataType: domain.DataEmployee,
		Headers:  []string{"Name", "Dept", "City", "Annual Salary"},
		Rows:     [][]string{{"Jane Doe", "Engineering", "Dubai", "180000"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", sess.WorkspaceID)
	assert.Equal(t, StateMapping, sess.State)
	assert.Equal(t, []string{FieldFullName, FieldDepartment, FieldLocation, FieldBaseSalary}, targets(sess.Mapping))

	sess, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateValidated, sess.State)
	require.Len(t, sess.Results, 1)
	assert.Equal(t, RowValid, sess.Results[0].Status())

	sum, err := f.svc.Summary(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Total: 1, Valid: 1, Ready: 1}, sum)

	sess, err = f.svc.Commit(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, sess.State)
	require.NotNil(t, sess.Result)
	assert.True(t, sess.Result.Success)
	assert.Equal(t, 1, sess.Result.InsertedCount)

	require.Len(t, f.repo.employees, 1)
	e := f.repo.employees[0]
	assert.Equal(t, "acme", e.WorkspaceID)
	assert.Equal(t, "Jane", e.FirstName)
	assert.Equal(t, "Doe", e.LastName)
	assert.Equal(t, "Engineering", *e.Department)
	assert.Equal(t, "dubai", e.LocationID)
	assert.True(t, decimal.NewFromInt(180000).Equal(e.BaseSalary))
	assert.Equal(t, "swe", e.RoleID)
	assert.Equal(t, "ic3", e.LevelID)
	assert.Equal(t, domain.StatusActive, e.Status)
	assert.Equal(t, domain.EmploymentLocal, e.EmploymentType)

	require.Len(t, f.repo.audits, 1)
	a := f.repo.audits[0]
	assert.Equal(t, domain.DataEmployee, a.UploadType)
	assert.Equal(t, "people.csv", a.FileName)
	assert.Equal(t, int64(64), a.FileSize)
	assert.Equal(t, 1, a.RowCount)
	assert.Equal(t, 1, a.SuccessCount)

	p, err := f.svc.Progress(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Percent)

	_, err = f.svc.Commit(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
	_, err = f.svc.Assign(f.ctx, sess.ID, 0, FieldFirstName)
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
}

func TestOpenClassifiesAndRequiresWorkspace(t *testing.T) {
	f := newFixture(t)
	req := OpenRequest{
		FileName: "gulf-benchmarks-2025.xlsx",
		Headers:  []string{"Role", "Location", "Level", "P10", "P25", "P50", "P75", "P90"},
	}

	sess, err := f.svc.Open(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.DataBenchmark, sess.DataType)

	_, err = f.svc.Open(context.Background(), req)
	assert.ErrorIs(t, err, upload.ErrNoWorkspace)

	req.WorkspaceID = "explicit"
	sess, err = f.svc.Open(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "explicit", sess.WorkspaceID)

	_, err = f.svc.Open(f.ctx, OpenRequest{FileName: "x.csv"})
	assert.ErrorIs(t, err, ErrNoHeaders)

	_, err = f.svc.Open(f.ctx, OpenRequest{Headers: []string{"a"}, DataType: "payroll"})
	assert.ErrorIs(t, err, ErrUnknownDataType)
}

func TestSessionIsScopedToWorkspace(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{DataType: domain.DataEmployee, Headers: []string{"Name"}})
	require.NoError(t, err)

	other := upload.WithWorkspace(context.Background(), "globex")
	_, err = f.svc.Get(other, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.Delete(other, sess.ID), ErrSessionNotFound)

	_, err = f.svc.Get(f.ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, f.svc.Delete(f.ctx, sess.ID))
	_, err = f.svc.Get(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMappingEditsDiscardValidation(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{
		DataType: domain.DataEmployee,
		Headers:  []string{"Name", "City", "Office", "Salary"},
		Rows:     [][]string{{"Jane Doe", "Dubai", "Riyadh", "1000"}},
	})
	require.NoError(t, err)

	sess, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sess.Results)

	sess, err = f.svc.Assign(f.ctx, sess.ID, 2, FieldLocation)
	require.NoError(t, err)
	assert.Equal(t, StateMapping, sess.State)
	assert.Nil(t, sess.Results)

	_, err = f.svc.Validate(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrDuplicateTarget)
	_, err = f.svc.Commit(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotValidated)
	_, err = f.svc.Summary(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotValidated)

	_, err = f.svc.Unassign(f.ctx, sess.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, err)
	sess, err = f.svc.Commit(f.ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, f.repo.employees, 1)
	assert.Equal(t, "riyadh", f.repo.employees[0].LocationID)

	_, err = f.svc.Reset(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrAlreadyCommitted)
}

func TestExclusionsAndSummary(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{
		DataType: domain.DataEmployee,
		Headers:  []string{"Name", "City", "Salary", "Status"},
		Rows: [][]string{
			{"A One", "Dubai", "1000", ""},
			{"B Two", "Doha", "2000", "probation"},
			{"C Three", "", "3000", ""},
			{"D Four", "Muscat", "4000", ""},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.SetExcluded(f.ctx, sess.ID, []int{9})
	assert.ErrorIs(t, err, ErrRowOutOfRange)

	sess, err = f.svc.SetExcluded(f.ctx, sess.ID, []int{3, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, sess.Excluded)

	_, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)
	sum, err := f.svc.Summary(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Valid)
	assert.Equal(t, 1, sum.WithWarnings)
	assert.Equal(t, 1, sum.Invalid)
	assert.Equal(t, 1, sum.Excluded, "the invalid row's exclusion does not count")
	assert.Equal(t, 2, sum.Ready)

	sess, err = f.svc.Commit(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Result.InsertedCount)
	names := []string{f.repo.employees[0].FirstName, f.repo.employees[1].FirstName}
	assert.Equal(t, []string{"A", "B"}, names, "rows with warnings commit by default")
}

func TestResetRestoresInferredMapping(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{DataType: domain.DataEmployee, Headers: []string{"Name", "City", "Salary"}, Rows: [][]string{{"a", "b", "c"}}})
	require.NoError(t, err)

	_, err = f.svc.Unassign(f.ctx, sess.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.SetExcluded(f.ctx, sess.ID, []int{0})
	require.NoError(t, err)

	sess, err = f.svc.Reset(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, FieldLocation, sess.Mapping.Columns[1].TargetField)
	assert.Empty(t, sess.Excluded)
	assert.Equal(t, StateMapping, sess.State)
}

func TestCommitIsExclusive(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{
		DataType: domain.DataEmployee,
		Headers:  []string{"Name", "City", "Salary"},
		Rows:     [][]string{{"Jane Doe", "Dubai", "1000"}},
	})
	require.NoError(t, err)
	_, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)

	held := f.locks("import:" + sess.ID)
	ok, err := held.Acquire(f.ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Commit(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Empty(t, f.repo.employees)

	require.NoError(t, held.Release(f.ctx))
	_, err = f.svc.Commit(f.ctx, sess.ID)
	assert.NoError(t, err)
}

func TestPartialFailureIsCommitted(t *testing.T) {
	f := newFixture(t)
	rows := make([][]string, 60)
	for i := range rows {
		rows[i] = []string{"Jane Doe", "Dubai", "1000"}
	}
	sess, err := f.svc.Open(f.ctx, OpenRequest{DataType: domain.DataEmployee, Headers: []string{"Name", "City", "Salary"}, Rows: rows})
	require.NoError(t, err)
	_, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)

	f.repo.failNext = errors.New("unique violation")
	sess, err = f.svc.Commit(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, sess.State)
	assert.False(t, sess.Result.Success)
	assert.Equal(t, 10, sess.Result.InsertedCount)
	assert.Equal(t, []string{"batch 1: unique violation"}, sess.Result.Errors)

	loaded, err := f.svc.Get(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Result, loaded.Result)
}

func TestBenchmarkWithoutP90IsDropped(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{
		DataType: domain.DataBenchmark,
		Headers:  []string{"Role", "Location", "Level", "P10", "P25", "P50", "P75", "P90"},
		Rows: [][]string{
			{"Software Engineer", "Dubai", "IC3", "1", "2", "3", "4", "5"},
			{"Software Engineer", "Dubai", "IC4", "1", "2", "3", "4", ""},
		},
	})
	require.NoError(t, err)
	sess, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, RowInvalid, sess.Results[1].Status())

	sess, err = f.svc.Commit(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Result.InsertedCount)
	require.Len(t, f.repo.benchmarks, 1)
	assert.Equal(t, "ic3", f.repo.benchmarks[0].LevelID)
}

func TestAbandonedCommitCanBeRetried(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{
		DataType: domain.DataEmployee,
		Headers:  []string{"Name", "City", "Salary"},
		Rows:     [][]string{{"Jane Doe", "Dubai", "1000"}},
	})
	require.NoError(t, err)
	sess, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)

	// A commit that died after marking the session.
	sess.State = StateCommitting
	sess.UpdatedAt = fixedNow.Add(-time.Minute)
	require.NoError(t, f.store.Save(f.ctx, sess))

	_, err = f.svc.Commit(f.ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionBusy)
	_, err = f.svc.SetExcluded(f.ctx, sess.ID, nil)
	assert.ErrorIs(t, err, ErrSessionBusy)

	sess.UpdatedAt = fixedNow.Add(-DefaultLockTTL - time.Second)
	require.NoError(t, f.store.Save(f.ctx, sess))

	sess, err = f.svc.Commit(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, sess.State)
	assert.Equal(t, 1, sess.Result.InsertedCount)
	assert.Len(t, f.repo.employees, 1)
}

func TestAbandonedCommitAllowsEdits(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Open(f.ctx, OpenRequest{
		DataType: domain.DataEmployee,
		Headers:  []string{"Name", "City", "Salary"},
		Rows:     [][]string{{"Jane Doe", "Dubai", "1000"}, {"John Roe", "Doha", "2000"}},
	})
	require.NoError(t, err)
	sess, err = f.svc.Validate(f.ctx, sess.ID)
	require.NoError(t, err)

	sess.State = StateCommitting
	sess.UpdatedAt = fixedNow.Add(-2 * DefaultLockTTL)
	require.NoError(t, f.store.Save(f.ctx, sess))

	sess, err = f.svc.SetExcluded(f.ctx, sess.ID, []int{1})
	require.NoError(t, err)
	assert.NotEqual(t, StateCommitting, sess.State)
	assert.Equal(t, []int{1}, sess.Excluded)
}
