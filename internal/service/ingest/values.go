package ingest

import "strings"

// Values is one row projected through a mapping: trimmed cell text keyed by
// target field. Unmapped fields are absent.
type Values map[string]string

// cell returns a pointer to the value of key, or nil when the field is
// unmapped or blank.
func (v Values) cell(key string) *string {
	s, ok := v[key]
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// filled reports whether key holds a non-blank value.
func (v Values) filled(key string) bool {
	return v.cell(key) != nil
}

// EmployeeRow is the typed partial shape of an employee row. A nil cell
// means the column is unmapped or empty.
type EmployeeRow struct {
	EmployeeID         *string
	FullName           *string
	FirstName          *string
	LastName           *string
	Email              *string
	Department         *string
	Role               *string
	Level              *string
	Location           *string
	BaseSalary         *string
	Currency           *string
	HousingAllowance   *string
	TransportAllowance *string
	BonusTarget        *string
	HireDate           *string
	Status             *string
	EmploymentType     *string
	PerformanceRating  *string
}

// BenchmarkRow is the typed partial shape of a benchmark row.
type BenchmarkRow struct {
	Role          *string
	Location      *string
	Level         *string
	P10           *string
	P25           *string
	P50           *string
	P75           *string
	P90           *string
	Currency      *string
	EffectiveDate *string
	SampleSize    *string
	Source        *string
}

// CompensationRow is the typed partial shape of a compensation update row.
type CompensationRow struct {
	EmployeeID        *string
	Email             *string
	BaseSalary        *string
	BonusTarget       *string
	Level             *string
	PerformanceRating *string
	EffectiveDate     *string
}

func (v Values) EmployeeRow() EmployeeRow {
	return EmployeeRow{
		EmployeeID:         v.cell(FieldEmployeeID),
		FullName:           v.cell(FieldFullName),
		FirstName:          v.cell(FieldFirstName),
		LastName:           v.cell(FieldLastName),
		Email:              v.cell(FieldEmail),
		Department:         v.cell(FieldDepartment),
		Role:               v.cell(FieldRole),
		Level:              v.cell(FieldLevel),
		Location:           v.cell(FieldLocation),
		BaseSalary:         v.cell(FieldBaseSalary),
		Currency:           v.cell(FieldCurrency),
		HousingAllowance:   v.cell(FieldHousingAllowance),
		TransportAllowance: v.cell(FieldTransportAllowance),
		BonusTarget:        v.cell(FieldBonusTarget),
		HireDate:           v.cell(FieldHireDate),
		Status:             v.cell(FieldStatus),
		EmploymentType:     v.cell(FieldEmploymentType),
		PerformanceRating:  v.cell(FieldPerformanceRating),
	}
}

func (v Values) BenchmarkRow() BenchmarkRow {
	return BenchmarkRow{
		Role:          v.cell(FieldRole),
		Location:      v.cell(FieldLocation),
		Level:         v.cell(FieldLevel),
		P10:           v.cell(FieldP10),
		P25:           v.cell(FieldP25),
		P50:           v.cell(FieldP50),
		P75:           v.cell(FieldP75),
		P90:           v.cell(FieldP90),
		Currency:      v.cell(FieldCurrency),
		EffectiveDate: v.cell(FieldEffectiveDate),
		SampleSize:    v.cell(FieldSampleSize),
		Source:        v.cell(FieldSource),
	}
}

func (v Values) CompensationRow() CompensationRow {
	return CompensationRow{
		EmployeeID:        v.cell(FieldEmployeeID),
		Email:             v.cell(FieldEmail),
		BaseSalary:        v.cell(FieldBaseSalary),
		BonusTarget:       v.cell(FieldBonusTarget),
		Level:             v.cell(FieldLevel),
		PerformanceRating: v.cell(FieldPerformanceRating),
		EffectiveDate:     v.cell(FieldEffectiveDate),
	}
}
