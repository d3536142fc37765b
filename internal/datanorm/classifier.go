package datanorm

import (
	"strings"

	"github.com/ignite/paybench/internal/domain"
)

// Classifier guesses which data type a file holds from its name and header row.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

var benchmarkKeywords = []string{"benchmark", "market", "survey", "percentile"}
var updateKeywords = []string{"increase", "merit", "raise", "adjustment", "comp update", "compensation update"}
var employeeKeywords = []string{"employee", "roster", "headcount", "census", "payroll", "staff"}

var benchmarkHeaders = []string{"p10", "p25", "p50", "p75", "p90", "percentile", "median", "sample size"}
var updateHeaders = []string{"new salary", "new base", "effective date", "increase", "merit"}
var employeeHeaders = []string{"first name", "last name", "full name", "name", "hire date", "department", "employee id", "email"}

// Classify determines the data type based on filename and header row. File
// name keywords win; otherwise the header set with the most hits wins, with
// employee as the fallback.
func (c *Classifier) Classify(key string, headerRow []string) domain.DataType {
	name := Normalize(key)

	for _, kw := range benchmarkKeywords {
		if strings.Contains(name, kw) {
			return domain.DataBenchmark
		}
	}
	for _, kw := range updateKeywords {
		if strings.Contains(name, kw) {
			return domain.DataCompensationUpdate
		}
	}
	for _, kw := range employeeKeywords {
		if strings.Contains(name, kw) {
			return domain.DataEmployee
		}
	}

	var bench, update, employee int
	for _, h := range headerRow {
		h = Normalize(h)
		if h == "" {
			continue
		}
		bench += countHits(h, benchmarkHeaders)
		update += countHits(h, updateHeaders)
		employee += countHits(h, employeeHeaders)
	}

	switch {
	case bench > 0 && bench >= update && bench >= employee:
		return domain.DataBenchmark
	case update > employee:
		return domain.DataCompensationUpdate
	}
	return domain.DataEmployee
}

func countHits(header string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if header == kw || strings.Contains(header, kw) {
			n++
		}
	}
	return n
}
