package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/paybench/internal/datanorm"
	"github.com/ignite/paybench/internal/domain"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Tier is the strength of an inferred column mapping.
type Tier string

const (
	TierExact     Tier = "exact"
	TierSubstring Tier = "substring"
	TierFuzzy     Tier = "fuzzy"
	TierNone      Tier = "none"
	TierManual    Tier = "manual"
)

// Confidence per tier. Manual assignments count as exact.
var tierConfidence = map[Tier]float64{
	TierExact:     1.0,
	TierManual:    1.0,
	TierSubstring: 0.6,
	TierFuzzy:     0.3,
	TierNone:      0,
}

// SampleSize is the number of sample values kept per column.
const SampleSize = 5

// minPartial is the shortest text, in runes, allowed to take part in a
// substring or fuzzy match.
const minPartial = 3

// ColumnMapping assigns one source column to a target field, or to nothing.
type ColumnMapping struct {
	SourceIndex  int      `json:"source_index"`
	SourceColumn string   `json:"source_column"`
	TargetField  string   `json:"target_field,omitempty"`
	Confidence   float64  `json:"confidence"`
	Tier         Tier     `json:"tier"`
	SampleValues []string `json:"sample_values"`
}

// Mapped reports whether the column has a target.
func (c *ColumnMapping) Mapped() bool { return c.TargetField != "" }

// Mapping holds one entry per source column, in header order.
type Mapping struct {
	DataType domain.DataType `json:"data_type"`
	Columns  []ColumnMapping `json:"columns"`
}

// Conflict is a target field claimed by more than one column.
type Conflict struct {
	Field   string `json:"field"`
	Columns []int  `json:"columns"`
}

type candidate struct {
	header int
	field  int
	tier   Tier
}

// InferMapping proposes a target for every header. Each header is scored
// against every field's label, key and aliases; the strongest pairs are
// assigned first so that no field is proposed for two columns. Ties go to
// the earlier header, then to the earlier declared field.
func InferMapping(schema *Schema, headers []string, rows [][]string) *Mapping {
	m := &Mapping{DataType: schema.DataType, Columns: make([]ColumnMapping, len(headers))}
	for i, h := range headers {
		m.Columns[i] = ColumnMapping{
			SourceIndex:  i,
			SourceColumn: h,
			Tier:         TierNone,
			SampleValues: samples(rows, i),
		}
	}

	var cands []candidate
	for i, h := range headers {
		hn := datanorm.Normalize(h)
		if hn == "" {
			continue
		}
		for j := range schema.Fields {
			if t := scoreField(hn, &schema.Fields[j]); t != TierNone {
				cands = append(cands, candidate{header: i, field: j, tier: t})
			}
		}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		ca, cb := tierConfidence[cands[a].tier], tierConfidence[cands[b].tier]
		if ca != cb {
			return ca > cb
		}
		if cands[a].header != cands[b].header {
			return cands[a].header < cands[b].header
		}
		return cands[a].field < cands[b].field
	})

	usedField := make(map[int]bool)
	for _, c := range cands {
		col := &m.Columns[c.header]
		if col.Mapped() || usedField[c.field] {
			continue
		}
		usedField[c.field] = true
		col.TargetField = schema.Fields[c.field].Key
		col.Tier = c.tier
		col.Confidence = tierConfidence[c.tier]
	}
	return m
}

// scoreField returns the best tier of a normalized header against any of
// the field's terms.
func scoreField(header string, f *Field) Tier {
	best := TierNone
	for _, term := range f.matchTerms() {
		t := scoreTerm(header, datanorm.Normalize(term))
		if tierConfidence[t] > tierConfidence[best] {
			best = t
		}
		if best == TierExact {
			break
		}
	}
	return best
}

func scoreTerm(header, term string) Tier {
	if term == "" {
		return TierNone
	}
	if header == term {
		return TierExact
	}
	hl, tl := len([]rune(header)), len([]rune(term))
	if min(hl, tl) >= minPartial && (strings.Contains(header, term) || strings.Contains(term, header)) {
		return TierSubstring
	}
	if hl >= minPartial && fuzzy.MatchNormalizedFold(strings.ReplaceAll(header, " ", ""), term) {
		return TierFuzzy
	}
	return TierNone
}

func samples(rows [][]string, col int) []string {
	out := make([]string, 0, SampleSize)
	for _, row := range rows {
		if len(out) == SampleSize {
			break
		}
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Assign points one column at field, replacing its previous target. A field
// already used by another column is not cleared there; the duplicate is
// reported by Conflicts and blocks Ready.
func (m *Mapping) Assign(schema *Schema, column int, field string) error {
	if column < 0 || column >= len(m.Columns) {
		return fmt.Errorf("%w: %d", ErrColumnOutOfRange, column)
	}
	if _, ok := schema.Field(field); !ok {
		return fmt.Errorf("%w: %q for %s", ErrUnknownField, field, schema.DataType)
	}
	c := &m.Columns[column]
	c.TargetField = field
	c.Tier = TierManual
	c.Confidence = tierConfidence[TierManual]
	return nil
}

// Unassign clears the target of one column.
func (m *Mapping) Unassign(column int) error {
	if column < 0 || column >= len(m.Columns) {
		return fmt.Errorf("%w: %d", ErrColumnOutOfRange, column)
	}
	c := &m.Columns[column]
	c.TargetField = ""
	c.Tier = TierNone
	c.Confidence = 0
	return nil
}

// Conflicts lists every target claimed by more than one column, in order of
// first appearance.
func (m *Mapping) Conflicts() []Conflict {
	byField := make(map[string][]int)
	var order []string
	for _, c := range m.Columns {
		if !c.Mapped() {
			continue
		}
		if _, seen := byField[c.TargetField]; !seen {
			order = append(order, c.TargetField)
		}
		byField[c.TargetField] = append(byField[c.TargetField], c.SourceIndex)
	}
	var out []Conflict
	for _, f := range order {
		if cols := byField[f]; len(cols) > 1 {
			out = append(out, Conflict{Field: f, Columns: cols})
		}
	}
	return out
}

// Missing returns the labels of required fields, and of any-of groups, that
// no column points at.
func (m *Mapping) Missing(schema *Schema) []string {
	mapped := m.targets()
	var out []string
	for _, f := range schema.Fields {
		if f.Required && !mapped[f.Key] {
			out = append(out, f.Label)
		}
	}
	for _, group := range schema.AnyOf {
		hit := false
		labels := make([]string, len(group))
		for i, key := range group {
			hit = hit || mapped[key]
			labels[i] = schema.label(key)
		}
		if !hit {
			out = append(out, strings.Join(labels, " or "))
		}
	}
	return out
}

// Ready is the gate before validation. It fails with ErrDuplicateTarget or
// ErrMissingRequired.
func (m *Mapping) Ready(schema *Schema) error {
	if conflicts := m.Conflicts(); len(conflicts) > 0 {
		c := conflicts[0]
		names := make([]string, len(c.Columns))
		for i, idx := range c.Columns {
			names[i] = fmt.Sprintf("%q", m.Columns[idx].SourceColumn)
		}
		return fmt.Errorf("%w: %s from columns %s", ErrDuplicateTarget, schema.label(c.Field), strings.Join(names, ", "))
	}
	if missing := m.Missing(schema); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, "; "))
	}
	return nil
}

// Project reads one row through the mapping. Cells beyond the end of a short
// row are treated as empty.
func (m *Mapping) Project(row []string) Values {
	v := make(Values, len(m.Columns))
	for _, c := range m.Columns {
		if !c.Mapped() {
			continue
		}
		cell := ""
		if c.SourceIndex < len(row) {
			cell = strings.TrimSpace(row[c.SourceIndex])
		}
		v[c.TargetField] = cell
	}
	return v
}

// MeanConfidence averages the confidence of mapped columns.
func (m *Mapping) MeanConfidence() float64 {
	var sum float64
	var n int
	for _, c := range m.Columns {
		if c.Mapped() {
			sum += c.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (m *Mapping) targets() map[string]bool {
	out := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if c.Mapped() {
			out[c.TargetField] = true
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	out := &Mapping{DataType: m.DataType, Columns: make([]ColumnMapping, len(m.Columns))}
	for i, c := range m.Columns {
		c.SampleValues = append([]string(nil), c.SampleValues...)
		out.Columns[i] = c
	}
	return out
}
