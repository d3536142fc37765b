package datanorm

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Software Engineer", "software engineer"},
		{"  Abu-Dhabi  ", "abu dhabi"},
		{"\ufeffDubai", "dubai"},
		{"Sr.\u200b Engineer", "sr engineer"},
		{"Zürich", "zurich"},
		{"IC-3", "ic 3"},
		{"Annual Salary (AED)", "annual salary aed"},
		{"***", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	messy := gen.SliceOf(gen.OneConstOf(
		'a', 'Z', 'é', 'Ö', '7', ' ', '\t', '-', '_', '/', '.', '&',
		'\u200b', '\ufeff', '\u0301', 'ß', 'İ', 'ﬁ', 'Σ',
	)).Map(func(rs []rune) string {
		return string(rs)
	})

	properties.Property("normalize is idempotent on alpha strings", prop.ForAll(
		func(s string) bool {
			once := Normalize(s)
			return Normalize(once) == once
		},
		gen.AlphaString(),
	))
	properties.Property("normalize is idempotent on messy strings", prop.ForAll(
		func(s string) bool {
			once := Normalize(s)
			return Normalize(once) == once
		},
		messy,
	))

	properties.TestingRun(t)
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in          string
		first, last string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Mary Anne Smith", "Mary Anne", "Smith"},
		{"Cher", "Cher", ""},
		{"  Ahmed   Al Mansouri ", "Ahmed Al", "Mansouri"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := SplitFullName(tt.in)
		assert.Equal(t, tt.first, first, "first of %q", tt.in)
		assert.Equal(t, tt.last, last, "last of %q", tt.in)
	}
}

func TestParseNumber(t *testing.T) {
	ok := []struct {
		in   string
		want string
	}{
		{"180000", "180000"},
		{"$1,250.50", "1250.5"},
		{"AED 15,000", "15000"},
		{"15000 SAR", "15000"},
		{"€ 9 999", "9999"},
		{"-42", "-42"},
		{"180k", "180000"},
		{"AED 12.5K", "12500"},
		{"1.2m", "1200000"},
	}
	for _, tt := range ok {
		got, valid := ParseNumber(tt.in)
		require.True(t, valid, "ParseNumber(%q)", tt.in)
		assert.Equal(t, tt.want, got.String(), "ParseNumber(%q)", tt.in)
	}

	for _, in := range []string{"", "   ", "n/a", "abc", "NaN", "Inf", "12..5", "$", "1.5e3", "1E400", "k"} {
		_, valid := ParseNumber(in)
		assert.False(t, valid, "ParseNumber(%q) should be absent", in)
	}
}

func TestParsePercent(t *testing.T) {
	got, ok := ParsePercent("15%")
	require.True(t, ok)
	assert.Equal(t, "15", got.String())

	got, ok = ParsePercent("12.5")
	require.True(t, ok)
	assert.Equal(t, "12.5", got.String())
}

func TestIsCurrencyCode(t *testing.T) {
	assert.True(t, IsCurrencyCode("AED"))
	assert.True(t, IsCurrencyCode("sar"))
	assert.False(t, IsCurrencyCode("XYZQ"))
	assert.False(t, IsCurrencyCode("ZZZ"))
	assert.False(t, IsCurrencyCode(""))
}

func TestParseDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-04", day(2024, time.March, 4)},
		{"2024/03/04", day(2024, time.March, 4)},
		{"25/12/2023", day(2023, time.December, 25)},
		{"12/25/2023", day(2023, time.December, 25)},
		{"03/04/2024", day(2024, time.April, 3)},
		{"31-01-2022", day(2022, time.January, 31)},
		{"5/6/24", day(2024, time.June, 5)},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		require.True(t, ok, "ParseDate(%q)", tt.in)
		assert.True(t, tt.want.Equal(got), "ParseDate(%q) = %s, want %s", tt.in, got, tt.want)
	}

	for _, in := range []string{"", "yesterday", "13/13/2024", "32/01/2024", "31/02/2024", "1/2", "2024-13-45"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, "ParseDate(%q) should fail", in)
	}
}

func TestIsAmbiguousDate(t *testing.T) {
	assert.True(t, IsAmbiguousDate("03/04/2024"))
	assert.False(t, IsAmbiguousDate("04/04/2024"))
	assert.False(t, IsAmbiguousDate("25/12/2023"))
	assert.False(t, IsAmbiguousDate("2024-03-04"))
	assert.False(t, IsAmbiguousDate("garbage"))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Customer Success", TitleCase("  customer   SUCCESS "))
	assert.Equal(t, "", TitleCase("   "))
}
