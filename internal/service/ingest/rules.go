package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ignite/paybench/internal/datanorm"
	"github.com/ignite/paybench/internal/resolve"
	"github.com/ignite/paybench/internal/taxonomy"
	"github.com/shopspring/decimal"
)

// Severity of a validation issue. Only errors make a row invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found in one cell of a row.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Rule checks a single trimmed cell. Rules other than Required pass on an
// empty value; a nil result means the value is acceptable.
type Rule func(f *Field, value string) *Issue

// RowRule checks relationships between the cells of one row.
type RowRule func(v Values) []Issue

var validate = validator.New()

func errorf(f *Field, format string, args ...any) *Issue {
	return &Issue{Field: f.Key, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func warnf(f *Field, format string, args ...any) *Issue {
	return &Issue{Field: f.Key, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning}
}

// Required rejects an empty cell.
func Required() Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return errorf(f, "%s is required", f.Label)
		}
		return nil
	}
}

// Number rejects values that do not parse as a finite number once currency
// symbols, codes and separators are removed.
func Number() Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		if _, ok := datanorm.ParseNumber(value); !ok {
			return errorf(f, "%s must be a number, got %q", f.Label, value)
		}
		return nil
	}
}

// Positive rejects zero and negative amounts.
func Positive() Rule {
	return func(f *Field, value string) *Issue {
		n, ok := datanorm.ParseNumber(value)
		if !ok {
			return nil
		}
		if !n.IsPositive() {
			return errorf(f, "%s must be greater than zero", f.Label)
		}
		return nil
	}
}

// MaxAmount is the exclusive upper bound of a stored money amount.
var MaxAmount = decimal.New(1, 12)

// NonNegative rejects amounts below zero.
func NonNegative() Rule {
	return func(f *Field, value string) *Issue {
		n, ok := datanorm.ParseNumber(value)
		if ok && n.IsNegative() {
			return errorf(f, "%s cannot be negative", f.Label)
		}
		return nil
	}
}

// Amount rejects values too large to store.
func Amount() Rule {
	return func(f *Field, value string) *Issue {
		n, ok := datanorm.ParseNumber(value)
		if ok && n.Abs().GreaterThanOrEqual(MaxAmount) {
			return errorf(f, "%s must be less than %s", f.Label, MaxAmount.StringFixed(0))
		}
		return nil
	}
}

// Percent accepts 0..100 with an optional trailing percent sign.
func Percent() Rule {
	hundred := decimal.NewFromInt(100)
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		n, ok := datanorm.ParsePercent(value)
		if !ok {
			return errorf(f, "%s must be a percentage, got %q", f.Label, value)
		}
		if n.IsNegative() || n.GreaterThan(hundred) {
			return errorf(f, "%s must be between 0 and 100", f.Label)
		}
		return nil
	}
}

// Integer accepts whole non-negative numbers that fit a 32-bit column.
func Integer() Rule {
	limit := decimal.NewFromInt(math.MaxInt32)
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		n, ok := datanorm.ParseNumber(value)
		if !ok || !n.IsInteger() || n.IsNegative() {
			return errorf(f, "%s must be a whole number, got %q", f.Label, value)
		}
		if n.GreaterThan(limit) {
			return errorf(f, "%s must be at most %d", f.Label, math.MaxInt32)
		}
		return nil
	}
}

// Date rejects unparseable dates and warns when day and month could be
// swapped. The day-first reading is kept.
func Date() Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		t, ok := datanorm.ParseDate(value)
		if !ok {
			return errorf(f, "%s is not a recognised date: %q", f.Label, value)
		}
		if datanorm.IsAmbiguousDate(value) {
			return warnf(f, "%s %q is ambiguous, read as %s (day/month/year)", f.Label, value, t.Format("2 January 2006"))
		}
		return nil
	}
}

// NotInFuture warns about dates after today.
func NotInFuture(now func() time.Time) Rule {
	return func(f *Field, value string) *Issue {
		t, ok := datanorm.ParseDate(value)
		if !ok {
			return nil
		}
		if t.After(now()) {
			return warnf(f, "%s %s is in the future", f.Label, t.Format("2006-01-02"))
		}
		return nil
	}
}

// Email rejects malformed addresses.
func Email() Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		if err := validate.Var(value, "email"); err != nil {
			return errorf(f, "%s %q is not a valid email address", f.Label, value)
		}
		return nil
	}
}

// CurrencyCode rejects anything that is not an ISO 4217 code.
func CurrencyCode() Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		if !datanorm.IsCurrencyCode(value) {
			return errorf(f, "%s %q is not an ISO 4217 currency code", f.Label, value)
		}
		return nil
	}
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int) Rule {
	return func(f *Field, value string) *Issue {
		if len([]rune(value)) > n {
			return errorf(f, "%s is longer than %d characters", f.Label, n)
		}
		return nil
	}
}

// Entity requires the value to resolve to a canonical id of kind. Unresolved
// values produce an issue of the given severity with close suggestions.
func Entity(res *resolve.Resolver, kind taxonomy.Kind, sev Severity, suffix string) Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		if _, ok := res.Match(kind, value); ok {
			return nil
		}
		msg := fmt.Sprintf("unknown %s %q", kind, value)
		if s := res.Suggest(kind, value, 3); len(s) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(s, ", "))
		}
		if suffix != "" {
			msg += ", " + suffix
		}
		return &Issue{Field: f.Key, Message: msg, Severity: sev}
	}
}

// CustomRole warns when a role title is not in the taxonomy. The title is
// still imported as a custom role.
func CustomRole(res *resolve.Resolver) Rule {
	return func(f *Field, value string) *Issue {
		if value == "" {
			return nil
		}
		if _, ok := res.Match(taxonomy.KindRole, value); ok {
			return nil
		}
		return warnf(f, "role %q is not in the taxonomy and will be imported as a custom role", value)
	}
}

// Known warns when a categorical value falls back to its default.
func Known(known func(string) bool, fallback string) Rule {
	return func(f *Field, value string) *Issue {
		if value == "" || known(value) {
			return nil
		}
		return warnf(f, "unrecognised %s %q, %s will be used", strings.ToLower(f.Label), value, fallback)
	}
}

// AscendingPercentiles warns when parsed percentile values decrease.
func AscendingPercentiles(keys ...string) RowRule {
	return func(v Values) []Issue {
		var prev decimal.Decimal
		for i, k := range keys {
			n, ok := datanorm.ParseNumber(v[k])
			if !ok {
				return nil
			}
			if i > 0 && n.LessThan(prev) {
				return []Issue{{
					Field:    k,
					Message:  fmt.Sprintf("%s is lower than %s", k, keys[i-1]),
					Severity: SeverityWarning,
				}}
			}
			prev = n
		}
		return nil
	}
}
