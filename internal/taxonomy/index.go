// Package taxonomy holds the fixed reference sets (roles, locations, levels)
// that uploaded free text is resolved against.
//
// An Index is built once and never mutated, so a single value can be shared
// by every import session. Keys are datanorm.Normalize output.
package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ignite/paybench/internal/datanorm"
	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var defaultReference []byte

// Kind names one of the three reference sets.
type Kind string

const (
	KindRole     Kind = "role"
	KindLocation Kind = "location"
	KindLevel    Kind = "level"
)

// Kinds lists every reference set in a stable order.
var Kinds = []Kind{KindRole, KindLocation, KindLevel}

var ErrUnknownKind = errors.New("unknown taxonomy kind")

// Entity is one canonical role, location or level.
type Entity struct {
	ID          string   `yaml:"id" json:"id"`
	DisplayName string   `yaml:"name" json:"display_name"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Country     string   `yaml:"country,omitempty" json:"country,omitempty"`
	Currency    string   `yaml:"currency,omitempty" json:"currency,omitempty"`
	Rank        int      `yaml:"rank,omitempty" json:"rank,omitempty"`
}

// Reference is the raw reference table as stored on disk.
type Reference struct {
	Roles     []Entity `yaml:"roles"`
	Locations []Entity `yaml:"locations"`
	Levels    []Entity `yaml:"levels"`
}

// Alias pairs a normalized key with the id of the entity it points at.
type Alias struct {
	Key string
	ID  string
}

type table struct {
	entities []Entity
	byID     map[string]int
	aliases  []Alias // insertion order; scanned for partial matches
	exact    map[string]*Entity
}

// Index is the immutable lookup structure over a Reference.
type Index struct {
	tables map[Kind]*table
}

// Default builds an Index from the embedded reference table.
func Default() (*Index, error) {
	return Parse(defaultReference)
}

// LoadFile builds an Index from a YAML reference file.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load builds an Index from YAML read from r.
func Load(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return Parse(data)
}

// Parse builds an Index from YAML bytes.
func Parse(data []byte) (*Index, error) {
	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	return New(ref)
}

// New builds an Index. Every entity's id and display name must normalize to
// a key no other entity of the same kind already owns; extra aliases that
// collide are skipped and the first owner keeps them.
func New(ref Reference) (*Index, error) {
	ix := &Index{tables: make(map[Kind]*table, len(Kinds))}
	sets := map[Kind][]Entity{
		KindRole:     ref.Roles,
		KindLocation: ref.Locations,
		KindLevel:    ref.Levels,
	}
	for _, kind := range Kinds {
		t, err := buildTable(kind, sets[kind])
		if err != nil {
			return nil, err
		}
		ix.tables[kind] = t
	}
	return ix, nil
}

func buildTable(kind Kind, src []Entity) (*table, error) {
	t := &table{
		entities: make([]Entity, len(src)),
		byID:     make(map[string]int, len(src)),
		exact:    make(map[string]*Entity, len(src)*3),
	}
	copy(t.entities, src)

	for i := range t.entities {
		e := &t.entities[i]
		e.ID = strings.TrimSpace(e.ID)
		e.DisplayName = strings.TrimSpace(e.DisplayName)
		if e.ID == "" {
			return nil, fmt.Errorf("%s #%d: empty id", kind, i+1)
		}
		if e.DisplayName == "" {
			e.DisplayName = e.ID
		}
		if _, dup := t.byID[e.ID]; dup {
			return nil, fmt.Errorf("%s %q: duplicate id", kind, e.ID)
		}
		if kind == KindLocation && e.Currency != "" && !datanorm.IsCurrencyCode(e.Currency) {
			return nil, fmt.Errorf("location %q: unknown currency %q", e.ID, e.Currency)
		}
		e.Currency = strings.ToUpper(e.Currency)
		t.byID[e.ID] = i

		for _, key := range []string{datanorm.Normalize(e.ID), datanorm.Normalize(e.DisplayName)} {
			if key == "" {
				return nil, fmt.Errorf("%s %q: id and name must contain letters or digits", kind, e.ID)
			}
			if owner, taken := t.exact[key]; taken && owner != e {
				return nil, fmt.Errorf("%s %q: key %q already belongs to %q", kind, e.ID, key, owner.ID)
			}
			t.add(key, e)
		}
		for _, a := range e.Aliases {
			key := datanorm.Normalize(a)
			if key == "" {
				continue
			}
			if _, taken := t.exact[key]; taken {
				continue
			}
			t.add(key, e)
		}
	}
	return t, nil
}

func (t *table) add(key string, e *Entity) {
	if _, ok := t.exact[key]; ok {
		return
	}
	t.exact[key] = e
	t.aliases = append(t.aliases, Alias{Key: key, ID: e.ID})
}

func (ix *Index) table(kind Kind) *table {
	return ix.tables[kind]
}

// Lookup finds the entity whose normalized alias equals key exactly.
func (ix *Index) Lookup(kind Kind, key string) (Entity, bool) {
	t := ix.table(kind)
	if t == nil {
		return Entity{}, false
	}
	e, ok := t.exact[key]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Scan calls fn for every alias of kind in insertion order until fn
// returns false.
func (ix *Index) Scan(kind Kind, fn func(Alias) bool) {
	t := ix.table(kind)
	if t == nil {
		return
	}
	for _, a := range t.aliases {
		if !fn(a) {
			return
		}
	}
}

// Get returns the entity with the given canonical id.
func (ix *Index) Get(kind Kind, id string) (Entity, bool) {
	t := ix.table(kind)
	if t == nil {
		return Entity{}, false
	}
	i, ok := t.byID[id]
	if !ok {
		return Entity{}, false
	}
	return t.entities[i], true
}

// Entities returns a copy of every entity of kind in reference order.
func (ix *Index) Entities(kind Kind) []Entity {
	t := ix.table(kind)
	if t == nil {
		return nil
	}
	out := make([]Entity, len(t.entities))
	copy(out, t.entities)
	return out
}

// ParseKind maps a URL or config token to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "role":
		return KindRole, nil
	case "location":
		return KindLocation, nil
	case "level":
		return KindLevel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
