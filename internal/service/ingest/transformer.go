package ingest

import (
	"strings"
	"time"

	"github.com/ignite/paybench/internal/datanorm"
	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Transformer turns typed partial rows into storage records. A nil result
// is a structural failure: a mandatory value is missing or unresolvable and
// the row is dropped from the commit.
type Transformer struct {
	res  *resolve.Resolver
	asOf time.Time
}

// NewTransformer returns a Transformer that dates benchmarks and updates
// without an effective date at asOf.
func NewTransformer(res *resolve.Resolver, asOf time.Time) *Transformer {
	y, m, d := asOf.UTC().Date()
	return &Transformer{res: res, asOf: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Employee requires a first name, a resolvable location and a base salary.
// Every other field falls back to its default.
func (t *Transformer) Employee(row EmployeeRow) *domain.Employee {
	var first, last string
	switch {
	case row.FirstName != nil:
		first = *row.FirstName
		if row.LastName != nil {
			last = *row.LastName
		}
	case row.FullName != nil:
		first, last = datanorm.SplitFullName(*row.FullName)
	}
	if first == "" {
		return nil
	}

	if row.Location == nil {
		return nil
	}
	loc, ok := t.res.Location(*row.Location)
	if !ok {
		return nil
	}

	if row.BaseSalary == nil {
		return nil
	}
	salary, ok := datanorm.ParseNumber(*row.BaseSalary)
	if !ok {
		return nil
	}

	e := &domain.Employee{
		EmployeeNumber:     row.EmployeeID,
		FirstName:          first,
		LastName:           last,
		Email:              lowerPtr(row.Email),
		RoleID:             domain.DefaultRoleID,
		LevelID:            domain.DefaultLevelID,
		LocationID:         loc.ID,
		BaseSalary:         salary,
		Currency:           t.currency(row.Currency, loc),
		HousingAllowance:   numberPtr(row.HousingAllowance),
		TransportAllowance: numberPtr(row.TransportAllowance),
		BonusTargetPct:     percentPtr(row.BonusTarget),
		HireDate:           datePtr(row.HireDate),
		Status:             t.res.Status(deref(row.Status)),
		EmploymentType:     t.res.EmploymentType(deref(row.EmploymentType)),
		PerformanceRating:  t.res.PerformanceRating(deref(row.PerformanceRating)),
	}
	if row.Department != nil {
		d := t.res.Department(*row.Department)
		e.Department = &d
	}
	if role := t.res.MatchRole(deref(row.Role)); role != "" {
		e.RoleID = role
	}
	if row.Level != nil {
		if id, ok := t.res.MatchLevel(*row.Level); ok {
			e.LevelID = id
		}
	}
	return e
}

// Benchmark requires a taxonomy role, location and level plus all five
// percentiles. Only currency and effective date have defaults.
func (t *Transformer) Benchmark(row BenchmarkRow) *domain.Benchmark {
	if row.Role == nil || row.Location == nil || row.Level == nil {
		return nil
	}
	role, ok := t.res.Match(taxonomy.KindRole, *row.Role)
	if !ok {
		return nil
	}
	loc, ok := t.res.Location(*row.Location)
	if !ok {
		return nil
	}
	level, ok := t.res.MatchLevel(*row.Level)
	if !ok {
		return nil
	}

	var pcts [5]decimal.Decimal
	for i, cell := range []*string{row.P10, row.P25, row.P50, row.P75, row.P90} {
		if cell == nil {
			return nil
		}
		n, ok := datanorm.ParseNumber(*cell)
		if !ok {
			return nil
		}
		pcts[i] = n
	}

	b := &domain.Benchmark{
		RoleID:        role,
		LocationID:    loc.ID,
		LevelID:       level,
		Currency:      t.currency(row.Currency, loc),
		P10:           pcts[0],
		P25:           pcts[1],
		P50:           pcts[2],
		P75:           pcts[3],
		P90:           pcts[4],
		Source:        row.Source,
		EffectiveDate: t.effective(row.EffectiveDate),
	}
	if row.SampleSize != nil {
		if n, ok := datanorm.ParseNumber(*row.SampleSize); ok && n.IsInteger() {
			size := int(n.IntPart())
			b.SampleSize = &size
		}
	}
	return b
}

// CompensationUpdate requires an employee reference and a new base salary.
func (t *Transformer) CompensationUpdate(row CompensationRow) *domain.CompensationUpdate {
	if row.EmployeeID == nil && row.Email == nil {
		return nil
	}
	if row.BaseSalary == nil {
		return nil
	}
	salary, ok := datanorm.ParseNumber(*row.BaseSalary)
	if !ok {
		return nil
	}

	u := &domain.CompensationUpdate{
		EmployeeNumber:    row.EmployeeID,
		Email:             lowerPtr(row.Email),
		BaseSalary:        salary,
		BonusTargetPct:    percentPtr(row.BonusTarget),
		PerformanceRating: t.res.PerformanceRating(deref(row.PerformanceRating)),
		EffectiveDate:     t.effective(row.EffectiveDate),
	}
	if row.Level != nil {
		if id, ok := t.res.MatchLevel(*row.Level); ok {
			u.LevelID = &id
		}
	}
	return u
}

func (t *Transformer) currency(cell *string, loc taxonomy.Entity) string {
	if cell != nil && datanorm.IsCurrencyCode(*cell) {
		return strings.ToUpper(strings.TrimSpace(*cell))
	}
	return loc.Currency
}

func (t *Transformer) effective(cell *string) time.Time {
	if d := datePtr(cell); d != nil {
		return *d
	}
	return t.asOf
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.ToLower(*s)
	return &v
}

func numberPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	n, ok := datanorm.ParseNumber(*s)
	if !ok {
		return nil
	}
	return &n
}

func percentPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	n, ok := datanorm.ParsePercent(*s)
	if !ok {
		return nil
	}
	return &n
}

func datePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	d, ok := datanorm.ParseDate(*s)
	if !ok {
		return nil
	}
	return &d
}
