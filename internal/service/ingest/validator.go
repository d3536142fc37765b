package ingest

import (
	"fmt"
	"strings"
)

// RowStatus classifies one validated row.
type RowStatus string

const (
	RowValid        RowStatus = "valid"
	RowWithWarnings RowStatus = "valid_with_warnings"
	RowInvalid      RowStatus = "invalid"
)

// RowResult is the outcome of validating one source row. RowIndex is the
// zero-based position among data rows.
type RowResult struct {
	RowIndex    int     `json:"row_index"`
	IsValid     bool    `json:"is_valid"`
	HasWarnings bool    `json:"has_warnings"`
	Issues      []Issue `json:"issues"`
}

// Status returns the row's classification.
func (r *RowResult) Status() RowStatus {
	switch {
	case !r.IsValid:
		return RowInvalid
	case r.HasWarnings:
		return RowWithWarnings
	default:
		return RowValid
	}
}

// Validate checks every row against schema through mapping. The mapping must
// pass Ready first; otherwise no row is looked at and the gate error is
// returned.
func Validate(schema *Schema, m *Mapping, rows [][]string) ([]RowResult, error) {
	if err := m.Ready(schema); err != nil {
		return nil, err
	}

	// Mapped fields in column order.
	var fields []*Field
	for _, c := range m.Columns {
		if !c.Mapped() {
			continue
		}
		f, ok := schema.Field(c.TargetField)
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", ErrUnknownField, c.TargetField, schema.DataType)
		}
		fields = append(fields, f)
	}

	results := make([]RowResult, len(rows))
	for i, row := range rows {
		results[i] = validateRow(schema, fields, i, m.Project(row))
	}
	return results, nil
}

func validateRow(schema *Schema, fields []*Field, index int, v Values) RowResult {
	issues := []Issue{}
	for _, f := range fields {
		value := v[f.Key]
		for _, rule := range f.rules() {
			is := rule(f, value)
			if is == nil {
				continue
			}
			issues = append(issues, *is)
			if is.Severity == SeverityError {
				break
			}
		}
	}

	for _, group := range schema.AnyOf {
		filled := false
		labels := make([]string, len(group))
		for i, key := range group {
			filled = filled || v.filled(key)
			labels[i] = schema.label(key)
		}
		if !filled {
			issues = append(issues, Issue{
				Field:    group[0],
				Message:  strings.Join(labels, " or ") + " is required",
				Severity: SeverityError,
			})
		}
	}

	for _, rr := range schema.RowRules {
		issues = append(issues, rr(v)...)
	}

	res := RowResult{RowIndex: index, IsValid: true, Issues: issues}
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			res.IsValid = false
		case SeverityWarning:
			res.HasWarnings = true
		}
	}
	return res
}
