package ingest

import (
	"fmt"
	"sort"

	"github.com/ignite/paybench/internal/domain"
)

// CommitSet is what will be sent to storage for one session. Exactly one of
// the record slices is populated, matching the data type.
type CommitSet struct {
	DataType   domain.DataType
	Employees  []domain.Employee
	Benchmarks []domain.Benchmark
	Updates    []domain.CompensationUpdate

	// Rows holds the source row index of each record, in order.
	Rows []int
	// Excluded holds valid rows the user removed.
	Excluded []int
	// Dropped holds valid, included rows whose transform failed.
	Dropped []int
	// Invalid counts rows with at least one error.
	Invalid int
}

// Len is the number of records to commit.
func (c *CommitSet) Len() int { return len(c.Rows) }

// BuildCommitSet selects rows that are valid and not excluded, and transforms
// them. Exclusions of invalid rows have no effect because those rows are
// never committed anyway.
func BuildCommitSet(dt domain.DataType, m *Mapping, rows [][]string, results []RowResult, excluded []int, t *Transformer) *CommitSet {
	skip := make(map[int]bool, len(excluded))
	for _, i := range excluded {
		skip[i] = true
	}

	set := &CommitSet{DataType: dt}
	for i, r := range results {
		if !r.IsValid {
			set.Invalid++
			continue
		}
		if skip[i] {
			set.Excluded = append(set.Excluded, i)
			continue
		}
		if i >= len(rows) {
			continue
		}
		v := m.Project(rows[i])

		ok := false
		switch dt {
		case domain.DataEmployee:
			if e := t.Employee(v.EmployeeRow()); e != nil {
				set.Employees = append(set.Employees, *e)
				ok = true
			}
		case domain.DataBenchmark:
			if b := t.Benchmark(v.BenchmarkRow()); b != nil {
				set.Benchmarks = append(set.Benchmarks, *b)
				ok = true
			}
		case domain.DataCompensationUpdate:
			if u := t.CompensationUpdate(v.CompensationRow()); u != nil {
				set.Updates = append(set.Updates, *u)
				ok = true
			}
		}
		if ok {
			set.Rows = append(set.Rows, i)
		} else {
			set.Dropped = append(set.Dropped, i)
		}
	}
	return set
}

// normalizeRows sorts, deduplicates and range-checks row indices.
func normalizeRows(rows []int, total int) ([]int, error) {
	seen := make(map[int]bool, len(rows))
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if r < 0 || r >= total {
			return nil, fmt.Errorf("%w: %d (file has %d rows)", ErrRowOutOfRange, r, total)
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out, nil
}
