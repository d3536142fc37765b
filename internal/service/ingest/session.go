package ingest

import (
	"time"

	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/service/upload"
)

// State is the lifecycle stage of an import session.
type State string

const (
	StateMapping    State = "mapping"
	StateValidated  State = "validated"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
)

// Session is one uploaded file on its way to storage. It is stored whole and
// replaced on every change.
type Session struct {
	ID            string          `json:"id"`
	WorkspaceID   string          `json:"workspace_id"`
	FileName      string          `json:"file_name"`
	FileSize      int64           `json:"file_size"`
	DataType      domain.DataType `json:"data_type"`
	Headers       []string        `json:"headers"`
	Rows          [][]string      `json:"rows"`
	ParseWarnings []string        `json:"parse_warnings,omitempty"`
	Mapping       *Mapping        `json:"mapping"`
	Results       []RowResult     `json:"results,omitempty"`
	Excluded      []int           `json:"excluded"`
	State         State           `json:"state"`
	Result        *upload.Result  `json:"result,omitempty"`
	Dropped       []int           `json:"dropped,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Summary is the count-based view shown before commit.
type Summary struct {
	Total        int   `json:"total"`
	Valid        int   `json:"valid"`
	WithWarnings int   `json:"with_warnings"`
	Invalid      int   `json:"invalid"`
	Excluded     int   `json:"excluded"`
	Dropped      int   `json:"dropped"`
	Ready        int   `json:"ready"`
	DroppedRows  []int `json:"dropped_rows,omitempty"`
}

func summarize(results []RowResult, set *CommitSet) *Summary {
	s := &Summary{Total: len(results)}
	for i := range results {
		switch results[i].Status() {
		case RowValid:
			s.Valid++
		case RowWithWarnings:
			s.Valid++
			s.WithWarnings++
		case RowInvalid:
			s.Invalid++
		}
	}
	s.Excluded = len(set.Excluded)
	s.Dropped = len(set.Dropped)
	s.DroppedRows = set.Dropped
	s.Ready = set.Len()
	return s
}

// clearValidation discards results after a mapping edit.
func (s *Session) clearValidation() {
	s.Results = nil
	s.Dropped = nil
	s.State = StateMapping
}
