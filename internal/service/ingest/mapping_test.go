package ingest

import (
	"testing"
	"time"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	ix, err := taxonomy.Default()
	require.NoError(t, err)
	return resolve.New(ix)
}

func testSchema(t *testing.T, dt domain.DataType) *Schema {
	t.Helper()
	sc, err := NewSchemas(testResolver(t), func() time.Time { return fixedNow }).For(dt)
	require.NoError(t, err)
	return sc
}

func targets(m *Mapping) []string {
	out := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		out[i] = c.TargetField
	}
	return out
}

func TestInferMappingAliases(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)
	headers := []string{"Name", "Dept", "City", "Annual Salary"}
	rows := [][]string{{"Jane Doe", "Engineering", "Dubai", "180000"}}

	m := InferMapping(sc, headers, rows)
	require.Len(t, m.Columns, 4)
	assert.Equal(t, []string{FieldFullName, FieldDepartment, FieldLocation, FieldBaseSalary}, targets(m))
	for i, c := range m.Columns {
		assert.Equal(t, i, c.SourceIndex)
		assert.Equal(t, headers[i], c.SourceColumn)
		assert.Equal(t, TierExact, c.Tier)
		assert.Equal(t, 1.0, c.Confidence)
	}
	assert.Equal(t, []string{"Dubai"}, m.Columns[2].SampleValues)
	assert.NoError(t, m.Ready(sc))
}

func TestExactLabelHasMaxConfidence(t *testing.T) {
	for _, dt := range domain.DataTypes {
		sc := testSchema(t, dt)
		for _, f := range sc.Fields {
			m := InferMapping(sc, []string{f.Label}, nil)
			require.Len(t, m.Columns, 1)
			assert.Equal(t, f.Key, m.Columns[0].TargetField, "%s %q", dt, f.Label)
			assert.Equal(t, TierExact, m.Columns[0].Tier, "%s %q", dt, f.Label)
			assert.Equal(t, 1.0, m.Columns[0].Confidence)
		}
	}
}

func TestInferMappingTiers(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)

	m := InferMapping(sc, []string{"Monthly Base Salary (AED)", "Hire Dt", "Favourite Colour"}, nil)
	assert.Equal(t, FieldBaseSalary, m.Columns[0].TargetField)
	assert.Equal(t, TierSubstring, m.Columns[0].Tier)
	assert.Equal(t, 0.6, m.Columns[0].Confidence)

	assert.Equal(t, FieldHireDate, m.Columns[1].TargetField)
	assert.Equal(t, TierFuzzy, m.Columns[1].Tier)
	assert.Equal(t, 0.3, m.Columns[1].Confidence)

	assert.False(t, m.Columns[2].Mapped())
	assert.Equal(t, TierNone, m.Columns[2].Tier)
	assert.Zero(t, m.Columns[2].Confidence)
}

func TestInferMappingNeverProposesDuplicates(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)

	m := InferMapping(sc, []string{"Salary", "Base Salary", "Location", "City"}, nil)
	assert.Equal(t, FieldBaseSalary, m.Columns[0].TargetField, "earlier header wins a tie")
	assert.False(t, m.Columns[1].Mapped())
	assert.Equal(t, FieldLocation, m.Columns[2].TargetField)
	assert.False(t, m.Columns[3].Mapped())
	assert.Empty(t, m.Conflicts())
}

func TestInferMappingShortHeadersNeedExactMatch(t *testing.T) {
	sc := testSchema(t, domain.DataBenchmark)

	m := InferMapping(sc, []string{"N", "p5", "ID"}, nil)
	assert.Equal(t, FieldSampleSize, m.Columns[0].TargetField)
	assert.False(t, m.Columns[1].Mapped(), "two-rune header must not substring-match p50")
	assert.False(t, m.Columns[2].Mapped())
}

func TestSampleValues(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)
	rows := [][]string{{"a"}, {" "}, {}, {"b"}, {"c"}, {"d"}, {"e"}, {"f"}}

	m := InferMapping(sc, []string{"Name"}, rows)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, m.Columns[0].SampleValues)
}

func TestDuplicateTargetBlocksValidation(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)
	m := InferMapping(sc, []string{"Name", "City", "Office", "Salary"}, nil)
	require.NoError(t, m.Ready(sc))

	require.NoError(t, m.Assign(sc, 2, FieldLocation))
	assert.Equal(t, TierManual, m.Columns[2].Tier)
	assert.Equal(t, 1.0, m.Columns[2].Confidence)

	conflicts := m.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, Conflict{Field: FieldLocation, Columns: []int{1, 2}}, conflicts[0])

	err := m.Ready(sc)
	assert.ErrorIs(t, err, ErrDuplicateTarget)
	assert.Contains(t, err.Error(), `"City"`)

	_, err = Validate(sc, m, [][]string{{"Jane", "Dubai", "Dubai", "1"}})
	assert.ErrorIs(t, err, ErrDuplicateTarget)

	require.NoError(t, m.Unassign(1))
	assert.NoError(t, m.Ready(sc))
}

func TestMissingRequired(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)

	m := InferMapping(sc, []string{"Dept", "Salary"}, nil)
	err := m.Ready(sc)
	require.ErrorIs(t, err, ErrMissingRequired)
	assert.Contains(t, err.Error(), "Location")
	assert.Contains(t, err.Error(), "Full Name or First Name")
	assert.NotContains(t, err.Error(), "Base Salary")
	assert.Equal(t, []string{"Location", "Full Name or First Name"}, m.Missing(sc))
}

func TestAssignErrors(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)
	m := InferMapping(sc, []string{"A", "B"}, nil)

	assert.ErrorIs(t, m.Assign(sc, 2, FieldLocation), ErrColumnOutOfRange)
	assert.ErrorIs(t, m.Assign(sc, -1, FieldLocation), ErrColumnOutOfRange)
	assert.ErrorIs(t, m.Assign(sc, 0, FieldP90), ErrUnknownField)
	assert.ErrorIs(t, m.Unassign(5), ErrColumnOutOfRange)
}

func TestProjectShortRow(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)
	m := InferMapping(sc, []string{"Name", "City", "Notes", "Salary"}, nil)

	v := m.Project([]string{" Jane Doe ", "Dubai"})
	assert.Equal(t, Values{FieldFullName: "Jane Doe", FieldLocation: "Dubai", FieldBaseSalary: ""}, v)
}

func TestCloneIsDeep(t *testing.T) {
	sc := testSchema(t, domain.DataEmployee)
	m := InferMapping(sc, []string{"Name"}, [][]string{{"x"}})
	c := m.Clone()
	require.NoError(t, c.Unassign(0))
	c.Columns[0].SampleValues[0] = "y"

	assert.Equal(t, FieldFullName, m.Columns[0].TargetField)
	assert.Equal(t, "x", m.Columns[0].SampleValues[0])
}
