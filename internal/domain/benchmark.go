package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Benchmark is a market pay distribution for one role, location and level.
// Benchmarks are keyed on (workspace, role, location, level, effective date)
// and re-uploads merge into the existing row.
type Benchmark struct {
	ID            string          `json:"id" db:"id"`
	WorkspaceID   string          `json:"workspace_id" db:"workspace_id"`
	RoleID        string          `json:"role_id" db:"role_id"`
	LocationID    string          `json:"location_id" db:"location_id"`
	LevelID       string          `json:"level_id" db:"level_id"`
	Currency      string          `json:"currency" db:"currency"`
	P10           decimal.Decimal `json:"p10" db:"p10"`
	P25           decimal.Decimal `json:"p25" db:"p25"`
	P50           decimal.Decimal `json:"p50" db:"p50"`
	P75           decimal.Decimal `json:"p75" db:"p75"`
	P90           decimal.Decimal `json:"p90" db:"p90"`
	SampleSize    *int            `json:"sample_size" db:"sample_size"`
	Source        *string         `json:"source" db:"source"`
	EffectiveDate time.Time       `json:"effective_date" db:"effective_date"`
}

// Key is the natural upsert key of a benchmark.
func (b *Benchmark) Key() string {
	return b.RoleID + "|" + b.LocationID + "|" + b.LevelID + "|" + b.EffectiveDate.Format("2006-01-02")
}

// Percentiles returns p10..p90 in ascending order.
func (b *Benchmark) Percentiles() []decimal.Decimal {
	return []decimal.Decimal{b.P10, b.P25, b.P50, b.P75, b.P90}
}
