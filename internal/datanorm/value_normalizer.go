package datanorm

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s into the lookup key space shared by the taxonomy, the
// resolver and the column mapper: lowercased, invisible characters removed,
// diacritics folded, every run of non-alphanumerics collapsed to one space,
// trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = norm.NFD.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for _, r := range s {
		switch {
		case isInvisible(r), unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(unicode.ToLower(r))
		default:
			gap = true
		}
	}
	return b.String()
}

func isInvisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	return false
}

// SplitFullName treats the last whitespace-delimited token as the surname and
// the rest as the given name. Compound surnames ("van der Berg") are split
// wrong; callers that care should map explicit first/last name columns.
func SplitFullName(s string) (first, last string) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// TitleCase collapses whitespace and capitalizes each word.
func TitleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

// ParseNumber parses a monetary or plain number. Currency symbols, ISO
// currency codes, thousands separators and whitespace are ignored, and a
// trailing k or m multiplies by a thousand or a million. Exponent notation
// is not a number here. The boolean is false when nothing finite remains;
// callers must treat that as "absent", never as zero.
func ParseNumber(raw string) (decimal.Decimal, bool) {
	s := stripMoney(raw)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	mult := decimal.Zero
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = decimal.NewFromInt(1_000)
	case 'm', 'M':
		mult = decimal.NewFromInt(1_000_000)
	}
	if !mult.IsZero() {
		s = s[:len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if !mult.IsZero() {
		d = d.Mul(mult)
	}
	return d, true
}

// ParsePercent is ParseNumber that also tolerates a trailing percent sign.
func ParsePercent(raw string) (decimal.Decimal, bool) {
	return ParseNumber(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
}

func stripMoney(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r == ',' || unicode.IsSpace(r) || isInvisible(r) || unicode.Is(unicode.Sc, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()

	// "AED15000" / "15000SAR"
	if i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }); i >= 3 {
		if money.GetCurrency(strings.ToUpper(s[:i])) != nil {
			s = s[i:]
		}
	}
	if i := strings.LastIndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }); i >= 0 && len(s)-i-1 >= 3 {
		if money.GetCurrency(strings.ToUpper(s[i+1:])) != nil {
			s = s[:i+1]
		}
	}
	return s
}

// IsCurrencyCode reports whether code is a known ISO 4217 code.
func IsCurrencyCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return len(code) == 3 && money.GetCurrency(code) != nil
}

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ParseDate parses ISO 8601 first, then three-part dates separated by '/' or
// '-'. A first component that cannot be a month must be the day, so the
// reading order is D/M/Y, then M/D/Y. Dates that do not exist on the
// calendar are rejected. Two-digit years are taken as 20YY.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	a, b, y, ok := splitDate(s)
	if !ok {
		return time.Time{}, false
	}
	var day, month int
	switch {
	case a <= 31 && b <= 12:
		day, month = a, b
	case a <= 12 && b <= 31:
		day, month = b, a
	default:
		return time.Time{}, false
	}
	if y < 100 {
		y += 2000
	}
	if day < 1 || month < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// IsAmbiguousDate reports whether s parses only by choosing between D/M/Y and
// M/D/Y, i.e. both leading components could be a month and they differ.
func IsAmbiguousDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return false
		}
	}
	a, b, _, ok := splitDate(s)
	return ok && a >= 1 && b >= 1 && a <= 12 && b <= 12 && a != b
}

func splitDate(s string) (a, b, y int, ok bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return 0, 0, 0, false
		}
		n[i] = v
	}
	return n[0], n[1], n[2], true
}
