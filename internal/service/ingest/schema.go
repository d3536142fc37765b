package ingest

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/taxonomy"
)

// Canonical field keys. A key may appear in more than one schema.
const (
	FieldEmployeeID         = "employeeId"
	FieldFullName           = "fullName"
	FieldFirstName          = "firstName"
	FieldLastName           = "lastName"
	FieldEmail              = "email"
	FieldDepartment         = "department"
	FieldRole               = "role"
	FieldLevel              = "level"
	FieldLocation           = "location"
	FieldBaseSalary         = "baseSalary"
	FieldCurrency           = "currency"
	FieldHousingAllowance   = "housingAllowance"
	FieldTransportAllowance = "transportAllowance"
	FieldBonusTarget        = "bonusTarget"
	FieldHireDate           = "hireDate"
	FieldStatus             = "status"
	FieldEmploymentType     = "employmentType"
	FieldPerformanceRating  = "performanceRating"
	FieldP10                = "p10"
	FieldP25                = "p25"
	FieldP50                = "p50"
	FieldP75                = "p75"
	FieldP90                = "p90"
	FieldEffectiveDate      = "effectiveDate"
	FieldSampleSize         = "sampleSize"
	FieldSource             = "source"
)

// Field is one canonical target column of a schema.
type Field struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Aliases  []string `json:"aliases,omitempty"`
	Required bool     `json:"required"`
	Rules    []Rule   `json:"-"`
}

// rules returns the field's validators with the required check first.
func (f *Field) rules() []Rule {
	if !f.Required {
		return f.Rules
	}
	return append([]Rule{Required()}, f.Rules...)
}

// matchTerms are the texts a header is compared against: the label, the key
// split into words, and every alias.
func (f *Field) matchTerms() []string {
	terms := make([]string, 0, len(f.Aliases)+2)
	terms = append(terms, f.Label, splitCamel(f.Key))
	return append(terms, f.Aliases...)
}

func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Schema is the static field list of one data type. Fields are in
// declaration order, which breaks mapping ties.
type Schema struct {
	DataType domain.DataType `json:"data_type"`
	Fields   []Field         `json:"fields"`
	// AnyOf groups need at least one member mapped and, per row, at least
	// one member filled.
	AnyOf    [][]string `json:"any_of,omitempty"`
	RowRules []RowRule  `json:"-"`
}

// Field returns the field with the given key.
func (s *Schema) Field(key string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

func (s *Schema) label(key string) string {
	if f, ok := s.Field(key); ok {
		return f.Label
	}
	return key
}

// Schemas holds one schema per data type.
type Schemas struct {
	byType map[domain.DataType]*Schema
}

// For returns the schema of dt.
func (s *Schemas) For(dt domain.DataType) (*Schema, error) {
	sc, ok := s.byType[dt]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, dt)
	}
	return sc, nil
}

// NewSchemas builds the three import schemas. Referential rules resolve
// against res; date rules compare against now.
func NewSchemas(res *resolve.Resolver, now func() time.Time) *Schemas {
	return &Schemas{byType: map[domain.DataType]*Schema{
		domain.DataEmployee:           employeeSchema(res, now),
		domain.DataBenchmark:          benchmarkSchema(res),
		domain.DataCompensationUpdate: compensationSchema(res),
	}}
}

func employeeSchema(res *resolve.Resolver, now func() time.Time) *Schema {
	return &Schema{
		DataType: domain.DataEmployee,
		Fields: []Field{
			{Key: FieldEmployeeID, Label: "Employee ID", Aliases: []string{"emp id", "employee number", "emp no", "staff id", "id"}, Rules: []Rule{MaxLength(64)}},
			{Key: FieldFullName, Label: "Full Name", Aliases: []string{"name", "employee name", "employee"}, Rules: []Rule{MaxLength(200)}},
			{Key: FieldFirstName, Label: "First Name", Aliases: []string{"given name", "forename"}, Rules: []Rule{MaxLength(100)}},
			{Key: FieldLastName, Label: "Last Name", Aliases: []string{"surname", "family name"}, Rules: []Rule{MaxLength(100)}},
			{Key: FieldEmail, Label: "Email", Aliases: []string{"email address", "work email", "e mail"}, Rules: []Rule{Email()}},
			{Key: FieldDepartment, Label: "Department", Aliases: []string{"dept", "team", "function", "division"}, Rules: []Rule{MaxLength(100)}},
			{Key: FieldRole, Label: "Role", Aliases: []string{"job title", "title", "position", "job"}, Rules: []Rule{CustomRole(res)}},
			{Key: FieldLevel, Label: "Level", Aliases: []string{"grade", "band", "seniority", "job level"},
				Rules: []Rule{Entity(res, taxonomy.KindLevel, SeverityWarning, "the default level will be used")}},
			{Key: FieldLocation, Label: "Location", Aliases: []string{"city", "office", "work location", "country"}, Required: true,
				Rules: []Rule{Entity(res, taxonomy.KindLocation, SeverityError, "")}},
			{Key: FieldBaseSalary, Label: "Base Salary", Aliases: []string{"salary", "annual salary", "base pay", "basic salary", "base"}, Required: true,
				Rules: []Rule{Number(), Positive(), Amount()}},
			{Key: FieldCurrency, Label: "Currency", Aliases: []string{"ccy", "currency code"}, Rules: []Rule{CurrencyCode()}},
			{Key: FieldHousingAllowance, Label: "Housing Allowance", Aliases: []string{"housing"}, Rules: []Rule{Number(), NonNegative(), Amount()}},
			{Key: FieldTransportAllowance, Label: "Transport Allowance", Aliases: []string{"transport", "transportation"}, Rules: []Rule{Number(), NonNegative(), Amount()}},
			{Key: FieldBonusTarget, Label: "Bonus Target %", Aliases: []string{"bonus", "bonus target", "target bonus", "bonus pct"}, Rules: []Rule{Percent()}},
			{Key: FieldHireDate, Label: "Hire Date", Aliases: []string{"start date", "date of joining", "joining date", "doj"}, Rules: []Rule{Date(), NotInFuture(now)}},
			{Key: FieldStatus, Label: "Status", Aliases: []string{"employee status", "employment status"}, Rules: []Rule{Known(res.StatusKnown, "active")}},
			{Key: FieldEmploymentType, Label: "Employment Type", Aliases: []string{"nationality type", "local expat", "contract type"}, Rules: []Rule{Known(res.EmploymentTypeKnown, "local")}},
			{Key: FieldPerformanceRating, Label: "Performance Rating", Aliases: []string{"rating", "performance", "review rating"},
				Rules: []Rule{Known(func(s string) bool { return res.PerformanceRating(s) != nil }, "no rating")}},
		},
		AnyOf: [][]string{{FieldFullName, FieldFirstName}},
	}
}

func benchmarkSchema(res *resolve.Resolver) *Schema {
	pct := func(key, label string, aliases ...string) Field {
		return Field{Key: key, Label: label, Aliases: aliases, Required: true, Rules: []Rule{Number(), Positive(), Amount()}}
	}
	return &Schema{
		DataType: domain.DataBenchmark,
		Fields: []Field{
			{Key: FieldRole, Label: "Role", Aliases: []string{"job title", "title", "position", "job family"}, Required: true,
				Rules: []Rule{Entity(res, taxonomy.KindRole, SeverityError, "benchmarks need a taxonomy role")}},
			{Key: FieldLocation, Label: "Location", Aliases: []string{"city", "market", "country"}, Required: true,
				Rules: []Rule{Entity(res, taxonomy.KindLocation, SeverityError, "")}},
			{Key: FieldLevel, Label: "Level", Aliases: []string{"grade", "band", "job level"}, Required: true,
				Rules: []Rule{Entity(res, taxonomy.KindLevel, SeverityError, "")}},
			pct(FieldP10, "P10", "10th percentile", "10th"),
			pct(FieldP25, "P25", "25th percentile", "25th", "lower quartile"),
			pct(FieldP50, "P50", "50th percentile", "50th", "median"),
			pct(FieldP75, "P75", "75th percentile", "75th", "upper quartile"),
			pct(FieldP90, "P90", "90th percentile", "90th"),
			{Key: FieldCurrency, Label: "Currency", Aliases: []string{"ccy", "currency code"}, Rules: []Rule{CurrencyCode()}},
			{Key: FieldEffectiveDate, Label: "Effective Date", Aliases: []string{"as of", "survey date", "date"}, Rules: []Rule{Date()}},
			{Key: FieldSampleSize, Label: "Sample Size", Aliases: []string{"n", "sample", "count", "data points"}, Rules: []Rule{Integer()}},
			{Key: FieldSource, Label: "Source", Aliases: []string{"provider", "survey"}, Rules: []Rule{MaxLength(200)}},
		},
		RowRules: []RowRule{AscendingPercentiles(FieldP10, FieldP25, FieldP50, FieldP75, FieldP90)},
	}
}

func compensationSchema(res *resolve.Resolver) *Schema {
	return &Schema{
		DataType: domain.DataCompensationUpdate,
		Fields: []Field{
			{Key: FieldEmployeeID, Label: "Employee ID", Aliases: []string{"emp id", "employee number", "emp no", "staff id", "id"}, Rules: []Rule{MaxLength(64)}},
			{Key: FieldEmail, Label: "Email", Aliases: []string{"email address", "work email", "e mail"}, Rules: []Rule{Email()}},
			{Key: FieldBaseSalary, Label: "New Base Salary", Aliases: []string{"new salary", "new base", "base salary", "salary"}, Required: true,
				Rules: []Rule{Number(), Positive(), Amount()}},
			{Key: FieldBonusTarget, Label: "Bonus Target %", Aliases: []string{"bonus", "bonus target", "new bonus target"}, Rules: []Rule{Percent()}},
			{Key: FieldLevel, Label: "New Level", Aliases: []string{"level", "grade", "band"},
				Rules: []Rule{Entity(res, taxonomy.KindLevel, SeverityWarning, "the level will not change")}},
			{Key: FieldPerformanceRating, Label: "Performance Rating", Aliases: []string{"rating", "performance"},
				Rules: []Rule{Known(func(s string) bool { return res.PerformanceRating(s) != nil }, "no rating")}},
			{Key: FieldEffectiveDate, Label: "Effective Date", Aliases: []string{"effective from", "date"}, Rules: []Rule{Date()}},
		},
		AnyOf: [][]string{{FieldEmployeeID, FieldEmail}},
	}
}
