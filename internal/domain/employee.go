package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmployeeStatus enumerates the employment lifecycle states.
type EmployeeStatus string

const (
	StatusActive     EmployeeStatus = "active"
	StatusOnLeave    EmployeeStatus = "on_leave"
	StatusInactive   EmployeeStatus = "inactive"
	StatusTerminated EmployeeStatus = "terminated"
)

// EmploymentType distinguishes nationals from expatriate hires.
type EmploymentType string

const (
	EmploymentLocal EmploymentType = "local"
	EmploymentExpat EmploymentType = "expat"
)

// PerformanceRating is the normalized review outcome.
type PerformanceRating string

const (
	RatingExceptional    PerformanceRating = "exceptional"
	RatingExceeds        PerformanceRating = "exceeds"
	RatingMeets          PerformanceRating = "meets"
	RatingBelow          PerformanceRating = "below"
	RatingUnsatisfactory PerformanceRating = "unsatisfactory"
)

// Default identifiers applied when an employee row omits role or level.
const (
	DefaultRoleID  = "swe"
	DefaultLevelID = "ic3"
)

// Employee is a fully resolved employee record ready for insert.
type Employee struct {
	ID                 string             `json:"id" db:"id"`
	WorkspaceID        string             `json:"workspace_id" db:"workspace_id"`
	EmployeeNumber     *string            `json:"employee_number" db:"employee_number"`
	FirstName          string             `json:"first_name" db:"first_name"`
	LastName           string             `json:"last_name" db:"last_name"`
	Email              *string            `json:"email" db:"email"`
	Department         *string            `json:"department" db:"department"`
	RoleID             string             `json:"role_id" db:"role_id"`
	LevelID            string             `json:"level_id" db:"level_id"`
	LocationID         string             `json:"location_id" db:"location_id"`
	BaseSalary         decimal.Decimal    `json:"base_salary" db:"base_salary"`
	Currency           string             `json:"currency" db:"currency"`
	HousingAllowance   *decimal.Decimal   `json:"housing_allowance" db:"housing_allowance"`
	TransportAllowance *decimal.Decimal   `json:"transport_allowance" db:"transport_allowance"`
	BonusTargetPct     *decimal.Decimal   `json:"bonus_target_pct" db:"bonus_target_pct"`
	HireDate           *time.Time         `json:"hire_date" db:"hire_date"`
	Status             EmployeeStatus     `json:"status" db:"status"`
	EmploymentType     EmploymentType     `json:"employment_type" db:"employment_type"`
	PerformanceRating  *PerformanceRating `json:"performance_rating" db:"performance_rating"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
}

// FullName joins the given and family names.
func (e *Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}

// CompensationUpdate changes the pay of an existing employee, identified by
// employee number or email.
type CompensationUpdate struct {
	WorkspaceID       string             `json:"workspace_id" db:"workspace_id"`
	EmployeeNumber    *string            `json:"employee_number" db:"employee_number"`
	Email             *string            `json:"email" db:"email"`
	BaseSalary        decimal.Decimal    `json:"base_salary" db:"base_salary"`
	BonusTargetPct    *decimal.Decimal   `json:"bonus_target_pct" db:"bonus_target_pct"`
	LevelID           *string            `json:"level_id" db:"level_id"`
	PerformanceRating *PerformanceRating `json:"performance_rating" db:"performance_rating"`
	EffectiveDate     time.Time          `json:"effective_date" db:"effective_date"`
}

// Reference returns whichever employee key the update carries.
func (u *CompensationUpdate) Reference() string {
	if u.EmployeeNumber != nil {
		return *u.EmployeeNumber
	}
	if u.Email != nil {
		return *u.Email
	}
	return ""
}
