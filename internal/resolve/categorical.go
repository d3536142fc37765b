package resolve

import (
	"strings"

	"github.com/ignite/paybench/internal/datanorm"
	"github.com/ignite/paybench/internal/domain"
)

type keyword struct {
	key   string // normalized
	value string
}

// Tables are scanned in order after an exact miss, so multi-word phrases
// that contain a shorter key ("partially meets" vs "meets") come first.

var departmentKeywords = []keyword{
	{"engineering", "Engineering"},
	{"eng", "Engineering"},
	{"software", "Engineering"},
	{"r d", "Engineering"},
	{"research and development", "Engineering"},
	{"technology", "Engineering"},
	{"product management", "Product"},
	{"product", "Product"},
	{"design", "Design"},
	{"ux", "Design"},
	{"data science", "Data"},
	{"analytics", "Data"},
	{"data", "Data"},
	{"business development", "Sales"},
	{"sales", "Sales"},
	{"marketing", "Marketing"},
	{"growth", "Marketing"},
	{"finance", "Finance"},
	{"accounting", "Finance"},
	{"human resources", "People"},
	{"hr", "People"},
	{"people", "People"},
	{"talent", "People"},
	{"operations", "Operations"},
	{"ops", "Operations"},
	{"legal", "Legal"},
	{"information technology", "IT"},
	{"it", "IT"},
	{"customer success", "Customer Success"},
	{"support", "Customer Success"},
}

var statusKeywords = []keyword{
	{"on leave", string(domain.StatusOnLeave)},
	{"leave", string(domain.StatusOnLeave)},
	{"sabbatical", string(domain.StatusOnLeave)},
	{"inactive", string(domain.StatusInactive)},
	{"suspended", string(domain.StatusInactive)},
	{"terminated", string(domain.StatusTerminated)},
	{"resigned", string(domain.StatusTerminated)},
	{"former", string(domain.StatusTerminated)},
	{"left", string(domain.StatusTerminated)},
	{"active", string(domain.StatusActive)},
	{"current", string(domain.StatusActive)},
	{"employed", string(domain.StatusActive)},
}

var employmentKeywords = []keyword{
	{"expatriate", string(domain.EmploymentExpat)},
	{"expat", string(domain.EmploymentExpat)},
	{"foreign", string(domain.EmploymentExpat)},
	{"international", string(domain.EmploymentExpat)},
	{"local", string(domain.EmploymentLocal)},
	{"national", string(domain.EmploymentLocal)},
	{"citizen", string(domain.EmploymentLocal)},
}

var ratingKeywords = []keyword{
	{"far exceeds", string(domain.RatingExceptional)},
	{"does not meet", string(domain.RatingUnsatisfactory)},
	{"partially meets", string(domain.RatingBelow)},
	{"needs improvement", string(domain.RatingBelow)},
	{"exceptional", string(domain.RatingExceptional)},
	{"outstanding", string(domain.RatingExceptional)},
	{"5", string(domain.RatingExceptional)},
	{"exceeds", string(domain.RatingExceeds)},
	{"above", string(domain.RatingExceeds)},
	{"4", string(domain.RatingExceeds)},
	{"meets", string(domain.RatingMeets)},
	{"solid", string(domain.RatingMeets)},
	{"3", string(domain.RatingMeets)},
	{"below", string(domain.RatingBelow)},
	{"2", string(domain.RatingBelow)},
	{"unsatisfactory", string(domain.RatingUnsatisfactory)},
	{"poor", string(domain.RatingUnsatisfactory)},
	{"1", string(domain.RatingUnsatisfactory)},
}

// lookupKeyword matches the normalized input exactly, then scans for a key
// that occurs in the input on word boundaries, then for a key that contains
// an input of three or more characters.
func lookupKeyword(table []keyword, text string) (string, bool) {
	in := datanorm.Normalize(text)
	if in == "" {
		return "", false
	}
	for _, kw := range table {
		if kw.key == in {
			return kw.value, true
		}
	}
	padded := " " + in + " "
	for _, kw := range table {
		if strings.Contains(padded, " "+kw.key+" ") {
			return kw.value, true
		}
	}
	if len(in) >= 3 {
		for _, kw := range table {
			if strings.Contains(kw.key, in) {
				return kw.value, true
			}
		}
	}
	return "", false
}

// Department returns the canonical department, or the input title-cased when
// it matches nothing. Empty input yields "".
func (r *Resolver) Department(text string) string {
	if v, ok := lookupKeyword(departmentKeywords, text); ok {
		return v
	}
	return datanorm.TitleCase(text)
}

// Status defaults to active.
func (r *Resolver) Status(text string) domain.EmployeeStatus {
	if v, ok := lookupKeyword(statusKeywords, text); ok {
		return domain.EmployeeStatus(v)
	}
	return domain.StatusActive
}

// StatusKnown reports whether text maps onto a status without defaulting.
func (r *Resolver) StatusKnown(text string) bool {
	_, ok := lookupKeyword(statusKeywords, text)
	return ok
}

// EmploymentType defaults to local.
func (r *Resolver) EmploymentType(text string) domain.EmploymentType {
	if v, ok := lookupKeyword(employmentKeywords, text); ok {
		return domain.EmploymentType(v)
	}
	return domain.EmploymentLocal
}

// EmploymentTypeKnown reports whether text maps onto an employment type
// without defaulting.
func (r *Resolver) EmploymentTypeKnown(text string) bool {
	_, ok := lookupKeyword(employmentKeywords, text)
	return ok
}

// PerformanceRating returns nil when the text asserts no recognizable rating.
func (r *Resolver) PerformanceRating(text string) *domain.PerformanceRating {
	v, ok := lookupKeyword(ratingKeywords, text)
	if !ok {
		return nil
	}
	rating := domain.PerformanceRating(v)
	return &rating
}
