package ingest

import (
	"testing"
	"time"

	"github.com/ignite/paybench/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestTransformEmployeeDefaults(t *testing.T) {
	tr := NewTransformer(testResolver(t), fixedNow)

	e := tr.Employee(EmployeeRow{
		FullName:   ptr("Jane Doe"),
		Department: ptr("Engineering"),
		Location:   ptr("Dubai"),
		BaseSalary: ptr("180000"),
	})
	require.NotNil(t, e)
	assert.Equal(t, "Jane", e.FirstName)
	assert.Equal(t, "Doe", e.LastName)
	require.NotNil(t, e.Department)
	assert.Equal(t, "Engineering", *e.Department)
	assert.Equal(t, "dubai", e.LocationID)
	assert.True(t, decimal.NewFromInt(180000).Equal(e.BaseSalary))
	assert.Equal(t, "swe", e.RoleID)
	assert.Equal(t, "ic3", e.LevelID)
	assert.Equal(t, "AED", e.Currency)
	assert.Equal(t, domain.StatusActive, e.Status)
	assert.Equal(t, domain.EmploymentLocal, e.EmploymentType)
	assert.Nil(t, e.PerformanceRating)
	assert.Nil(t, e.HireDate)
	assert.Nil(t, e.Email)
}

func TestTransformEmployeeExplicitFields(t *testing.T) {
	tr := NewTransformer(testResolver(t), fixedNow)

	e := tr.Employee(EmployeeRow{
		EmployeeID:        ptr("E-7"),
		FullName:          ptr("ignored name"),
		FirstName:         ptr("Mary Ann"),
		LastName:          ptr("van der Berg"),
		Email:             ptr("Mary@Example.COM"),
		Role:              ptr("Sr. Data Scientist"),
		Level:             ptr("Senior"),
		Location:          ptr("riyadh"),
		BaseSalary:        ptr("SAR 25,000"),
		Currency:          ptr("usd"),
		HousingAllowance:  ptr("5,000"),
		BonusTarget:       ptr("15%"),
		HireDate:          ptr("15/03/2021"),
		Status:            ptr("On Leave"),
		EmploymentType:    ptr("Expat"),
		PerformanceRating: ptr("Exceeds Expectations"),
	})
	require.NotNil(t, e)
	assert.Equal(t, "Mary Ann", e.FirstName)
	assert.Equal(t, "van der Berg", e.LastName)
	assert.Equal(t, "E-7", *e.EmployeeNumber)
	assert.Equal(t, "mary@example.com", *e.Email)
	assert.Equal(t, "data-scientist", e.RoleID)
	assert.Equal(t, "ic4", e.LevelID)
	assert.Equal(t, "riyadh", e.LocationID)
	assert.True(t, decimal.NewFromInt(25000).Equal(e.BaseSalary))
	assert.Equal(t, "USD", e.Currency)
	assert.True(t, decimal.NewFromInt(5000).Equal(*e.HousingAllowance))
	assert.Nil(t, e.TransportAllowance)
	assert.True(t, decimal.NewFromInt(15).Equal(*e.BonusTargetPct))
	assert.Equal(t, time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC), *e.HireDate)
	assert.Equal(t, domain.StatusOnLeave, e.Status)
	assert.Equal(t, domain.EmploymentExpat, e.EmploymentType)
	assert.Equal(t, domain.RatingExceeds, *e.PerformanceRating)
}

func TestTransformEmployeeAsymmetry(t *testing.T) {
	tr := NewTransformer(testResolver(t), fixedNow)
	base := func() EmployeeRow {
		return EmployeeRow{FullName: ptr("Jane Doe"), Location: ptr("Dubai"), BaseSalary: ptr("1000")}
	}

	row := base()
	row.Role = ptr("  Quxzzy123 ")
	row.Level = ptr("Quxzzy123")
	e := tr.Employee(row)
	require.NotNil(t, e, "unknown role and level do not block the row")
	assert.Equal(t, "Quxzzy123", e.RoleID, "unknown roles are kept as custom roles")
	assert.Equal(t, "ic3", e.LevelID)

	row = base()
	row.Location = ptr("Quxzzy123")
	assert.Nil(t, tr.Employee(row), "location is mandatory")

	row = base()
	row.Location = nil
	assert.Nil(t, tr.Employee(row))

	row = base()
	row.BaseSalary = ptr("n/a")
	assert.Nil(t, tr.Employee(row), "salary is mandatory")

	row = base()
	row.FullName = nil
	assert.Nil(t, tr.Employee(row), "a first name is mandatory")

	row = base()
	row.FullName = ptr("Cher")
	e = tr.Employee(row)
	require.NotNil(t, e)
	assert.Equal(t, "Cher", e.FirstName)
	assert.Equal(t, "", e.LastName)
}

func fullBenchmark() BenchmarkRow {
	return BenchmarkRow{
		Role:     ptr("Software Engineer"),
		Location: ptr("Doha"),
		Level:    ptr("Senior"),
		P10:      ptr("10,000"),
		P25:      ptr("12,000"),
		P50:      ptr("15,000"),
		P75:      ptr("18,000"),
		P90:      ptr("22,000"),
	}
}

func TestTransformBenchmark(t *testing.T) {
	tr := NewTransformer(testResolver(t), time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC))

	row := fullBenchmark()
	row.SampleSize = ptr("42")
	row.Source = ptr("Gulf Pay Survey")
	b := tr.Benchmark(row)
	require.NotNil(t, b)
	assert.Equal(t, "swe", b.RoleID)
	assert.Equal(t, "doha", b.LocationID)
	assert.Equal(t, "ic4", b.LevelID)
	assert.Equal(t, "QAR", b.Currency)
	assert.True(t, decimal.NewFromInt(15000).Equal(b.P50))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), b.EffectiveDate)
	require.NotNil(t, b.SampleSize)
	assert.Equal(t, 42, *b.SampleSize)
	assert.Equal(t, "Gulf Pay Survey", *b.Source)

	row = fullBenchmark()
	row.EffectiveDate = ptr("2024-01-31")
	b = tr.Benchmark(row)
	require.NotNil(t, b)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), b.EffectiveDate)
}

func TestTransformBenchmarkHasNoDefaults(t *testing.T) {
	tr := NewTransformer(testResolver(t), fixedNow)

	cases := map[string]func(*BenchmarkRow){
		"missing p90":      func(r *BenchmarkRow) { r.P90 = nil },
		"missing p10":      func(r *BenchmarkRow) { r.P10 = nil },
		"bad p50":          func(r *BenchmarkRow) { r.P50 = ptr("n/a") },
		"custom role":      func(r *BenchmarkRow) { r.Role = ptr("Quxzzy123") },
		"unknown city":     func(r *BenchmarkRow) { r.Location = ptr("Quxzzy123") },
		"unknown level":    func(r *BenchmarkRow) { r.Level = ptr("Quxzzy123") },
		"missing role":     func(r *BenchmarkRow) { r.Role = nil },
		"missing level":    func(r *BenchmarkRow) { r.Level = nil },
		"missing location": func(r *BenchmarkRow) { r.Location = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			row := fullBenchmark()
			mutate(&row)
			assert.Nil(t, tr.Benchmark(row))
		})
	}
}

func TestTransformCompensationUpdate(t *testing.T) {
	tr := NewTransformer(testResolver(t), fixedNow)

	u := tr.CompensationUpdate(CompensationRow{
		Email:       ptr("A@B.CO"),
		BaseSalary:  ptr("20,000"),
		BonusTarget: ptr("10"),
		Level:       ptr("Staff"),
	})
	require.NotNil(t, u)
	assert.Nil(t, u.EmployeeNumber)
	assert.Equal(t, "a@b.co", *u.Email)
	assert.Equal(t, "a@b.co", u.Reference())
	assert.Equal(t, "ic5", *u.LevelID)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), u.EffectiveDate)

	u = tr.CompensationUpdate(CompensationRow{EmployeeID: ptr("E-1"), BaseSalary: ptr("1"), Level: ptr("Quxzzy123")})
	require.NotNil(t, u)
	assert.Nil(t, u.LevelID, "an unknown level leaves the level unchanged")

	assert.Nil(t, tr.CompensationUpdate(CompensationRow{BaseSalary: ptr("1")}))
	assert.Nil(t, tr.CompensationUpdate(CompensationRow{EmployeeID: ptr("E-1")}))
}

func TestBuildCommitSetDropsFailedTransforms(t *testing.T) {
	res := testResolver(t)
	sc := testSchema(t, domain.DataBenchmark)
	headers := []string{"Role", "Location", "Level", "P10", "P25", "P50", "P75", "P90"}
	m := InferMapping(sc, headers, nil)
	rows := [][]string{
		{"Software Engineer", "Dubai", "IC3", "1", "2", "3", "4", "5"},
		{"Software Engineer", "Dubai", "IC4", "1", "2", "3", "4", ""},
		{"Software Engineer", "Dubai", "IC5", "1", "2", "3", "4", "5"},
		{"Software Engineer", "Dubai", "IC6", "1", "2", "3", "4", "5"},
	}
	// Row 1 is marked warning-only although its p90 is blank.
	results := []RowResult{
		{RowIndex: 0, IsValid: true},
		{RowIndex: 1, IsValid: true, HasWarnings: true},
		{RowIndex: 2, IsValid: false},
		{RowIndex: 3, IsValid: true},
	}

	set := BuildCommitSet(domain.DataBenchmark, m, rows, results, []int{2, 3}, NewTransformer(res, fixedNow))
	assert.Equal(t, []int{0}, set.Rows)
	assert.Equal(t, []int{1}, set.Dropped)
	assert.Equal(t, []int{3}, set.Excluded, "excluding an invalid row has no effect")
	assert.Equal(t, 1, set.Invalid)
	require.Len(t, set.Benchmarks, 1)
	assert.Equal(t, "ic3", set.Benchmarks[0].LevelID)
	assert.Equal(t, 1, set.Len())
}

func TestNormalizeRows(t *testing.T) {
	got, err := normalizeRows([]int{7, 3, 7, 0}, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 7}, got)

	_, err = normalizeRows([]int{8}, 8)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = normalizeRows([]int{-1}, 8)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}
