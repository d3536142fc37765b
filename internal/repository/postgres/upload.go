package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/paybench/internal/domain"
	"github.com/lib/pq"
)

// UploadRepo implements upload.Repository against PostgreSQL. Each batch
// runs in its own transaction, so a failed batch leaves nothing behind.
type UploadRepo struct{ db *sql.DB }

// NewUploadRepo creates a Postgres-backed upload repository.
func NewUploadRepo(db *sql.DB) *UploadRepo { return &UploadRepo{db: db} }

const employeeColumns = 19

// InsertEmployees adds every employee of the batch with one multi-row
// INSERT. Employees are never deduplicated.
func (r *UploadRepo) InsertEmployees(ctx context.Context, workspaceID string, batch []domain.Employee) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO employees (id, workspace_id, employee_number, first_name, last_name, email,
		department, role_id, level_id, location_id, base_salary, currency, housing_allowance,
		transport_allowance, bonus_target_pct, hire_date, status, employment_type, performance_rating,
		created_at, updated_at) VALUES `)

	args := make([]interface{}, 0, len(batch)*employeeColumns)
	for i := range batch {
		e := &batch[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, i*employeeColumns, employeeColumns, "NOW(), NOW()")
		args = append(args,
			e.ID, workspaceID, e.EmployeeNumber, e.FirstName, e.LastName, e.Email,
			e.Department, e.RoleID, e.LevelID, e.LocationID, e.BaseSalary, e.Currency, e.HousingAllowance,
			e.TransportAllowance, e.BonusTargetPct, e.HireDate, string(e.Status), string(e.EmploymentType), e.PerformanceRating,
		)
	}

	return r.execInTx(ctx, "insert employees", sb.String(), args)
}

const benchmarkColumns = 14

// UpsertBenchmarks merges the batch on (workspace, role, location, level,
// effective date). Duplicates inside one batch collapse to the last one,
// since Postgres refuses to update the same row twice in one statement.
// Every record of a successful batch counts as stored.
func (r *UploadRepo) UpsertBenchmarks(ctx context.Context, workspaceID string, batch []domain.Benchmark) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	last := make(map[string]int, len(batch))
	for i := range batch {
		last[batch[i].Key()] = i
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO benchmarks (id, workspace_id, role_id, location_id, level_id, currency,
		p10, p25, p50, p75, p90, sample_size, source, effective_date, created_at, updated_at) VALUES `)

	args := make([]interface{}, 0, len(last)*benchmarkColumns)
	n := 0
	for i := range batch {
		b := &batch[i]
		if last[b.Key()] != i {
			continue
		}
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		writePlaceholders(&sb, n*benchmarkColumns, benchmarkColumns, "NOW(), NOW()")
		args = append(args,
			b.ID, workspaceID, b.RoleID, b.LocationID, b.LevelID, b.Currency,
			b.P10, b.P25, b.P50, b.P75, b.P90, b.SampleSize, b.Source, b.EffectiveDate,
		)
		n++
	}
	sb.WriteString(`
		ON CONFLICT (workspace_id, role_id, location_id, level_id, effective_date) DO UPDATE SET
			currency = EXCLUDED.currency,
			p10 = EXCLUDED.p10, p25 = EXCLUDED.p25, p50 = EXCLUDED.p50,
			p75 = EXCLUDED.p75, p90 = EXCLUDED.p90,
			sample_size = EXCLUDED.sample_size,
			source = EXCLUDED.source,
			updated_at = NOW()`)

	if _, err := r.execInTx(ctx, "upsert benchmarks", sb.String(), args); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// ApplyCompensationUpdates changes pay for existing employees, matched by
// employee number or case-insensitive email. Updates that match no employee
// are not counted.
func (r *UploadRepo) ApplyCompensationUpdates(ctx context.Context, workspaceID string, batch []domain.CompensationUpdate) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("apply compensation updates: begin: %w", err)
	}
	defer tx.Rollback()

	matched := 0
	for i := range batch {
		u := &batch[i]
		res, err := tx.ExecContext(ctx, `
			UPDATE employees SET
				base_salary = $1,
				bonus_target_pct = COALESCE($2, bonus_target_pct),
				level_id = COALESCE($3, level_id),
				performance_rating = COALESCE($4, performance_rating),
				salary_effective_date = $5,
				updated_at = NOW()
			WHERE workspace_id = $6
			  AND (employee_number = $7 OR LOWER(email) = $8)
		`, u.BaseSalary, u.BonusTargetPct, u.LevelID, u.PerformanceRating, u.EffectiveDate,
			workspaceID, u.EmployeeNumber, u.Email)
		if err != nil {
			return 0, fmt.Errorf("apply compensation update for %s: %w", u.Reference(), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			matched++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("apply compensation updates: commit: %w", err)
	}
	return matched, nil
}

// WriteAudit appends one upload audit row.
func (r *UploadRepo) WriteAudit(ctx context.Context, a *domain.UploadAudit) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	errs := a.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_audits
			(id, workspace_id, upload_type, file_name, file_size, row_count,
			 success_count, error_count, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.WorkspaceID, string(a.UploadType), a.FileName, a.FileSize, a.RowCount,
		a.SuccessCount, a.ErrorCount, pq.Array(errs), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("write upload audit: %w", err)
	}
	return nil
}

// ListAudits returns the most recent audits of a workspace, newest first.
func (r *UploadRepo) ListAudits(ctx context.Context, workspaceID string, limit int) ([]domain.UploadAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, upload_type, file_name, file_size, row_count,
		       success_count, error_count, errors, created_at
		FROM upload_audits
		WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list upload audits: %w", err)
	}
	defer rows.Close()

	var out []domain.UploadAudit
	for rows.Next() {
		var a domain.UploadAudit
		var uploadType string
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &uploadType, &a.FileName, &a.FileSize, &a.RowCount,
			&a.SuccessCount, &a.ErrorCount, pq.Array(&a.Errors), &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload audit: %w", err)
		}
		a.UploadType = domain.DataType(uploadType)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *UploadRepo) execInTx(ctx context.Context, op, query string, args []interface{}) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// writePlaceholders writes "($base+1, ..., $base+n, tail)".
func writePlaceholders(sb *strings.Builder, base, n int, tail string) {
	sb.WriteByte('(')
	for j := 1; j <= n; j++ {
		if j > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+j)
	}
	if tail != "" {
		sb.WriteString(", ")
		sb.WriteString(tail)
	}
	sb.WriteByte(')')
}
