package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PayloadColumn holds the serialized record value in every table.
const PayloadColumn = "data"

// ColumnType is one of the key column types keyroute can bind segments to.
type ColumnType string

const (
	TypeText   ColumnType = "text"
	TypeInt    ColumnType = "int"
	TypeBigint ColumnType = "bigint"
	TypeUUID   ColumnType = "uuid"
)

// ParseColumnType returns the ColumnType named by s (case-insensitive).
func ParseColumnType(s string) (ColumnType, error) {
	t := ColumnType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unsupported column type %q", ErrInvalidColumnSpec, s)
	}
	return t, nil
}

// Valid reports whether t is a supported column type.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeText, TypeInt, TypeBigint, TypeUUID:
		return true
	}
	return false
}

// Numeric reports whether values of t are integers.
func (t ColumnType) Numeric() bool {
	return t == TypeInt || t == TypeBigint
}

// Check validates a key segment for a column of type t.
// The empty string is the omitted-column sentinel and is always accepted.
func (t ColumnType) Check(v string) error {
	if v == "" {
		return nil
	}
	switch t {
	case TypeInt:
		if _, err := strconv.ParseInt(v, 10, 32); err != nil {
			return fmt.Errorf("%q is not an int", v)
		}
	case TypeBigint:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("%q is not a bigint", v)
		}
	case TypeUUID:
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("%q is not a uuid", v)
		}
	}
	return nil
}

// Canonical checks v like Check and returns the form stored for it.
// Numeric values lose leading zeros, so "007" and "7" bind
// to the same row on every backend.
func (t ColumnType) Canonical(v string) (string, error) {
	if err := t.Check(v); err != nil {
		return "", err
	}
	if v != "" && t.Numeric() {
		n, _ := strconv.ParseInt(v, 10, 64)
		return strconv.FormatInt(n, 10), nil
	}
	return v, nil
}

// Column is a named, typed key column.
type Column struct {
	Name string     `yaml:"name" json:"name"`
	Type ColumnType `yaml:"type" json:"type"`
}

func (c Column) String() string {
	return c.Name + ":" + string(c.Type)
}

// ParseColumn parses the NAME:TYPE form produced by Column.String.
// A missing type defaults to text.
func ParseColumn(s string) (Column, error) {
	name, typ, found := strings.Cut(s, ":")
	col := Column{Name: name, Type: TypeText}
	if found {
		t, err := ParseColumnType(typ)
		if err != nil {
			return Column{}, err
		}
		col.Type = t
	}
	return col, nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

// Schema describes a table's key layout: one partition column and zero or
// more ordered cluster columns. The payload column is implicit.
type Schema struct {
	Partition Column
	Cluster   []Column
}

// Columns returns the partition column followed by the cluster columns.
func (s Schema) Columns() []Column {
	cols := make([]Column, 0, len(s.Cluster)+1)
	cols = append(cols, s.Partition)
	return append(cols, s.Cluster...)
}

// Equal reports whether s and o have the same columns in the same order.
func (s Schema) Equal(o Schema) bool {
	if s.Partition != o.Partition || len(s.Cluster) != len(o.Cluster) {
		return false
	}
	for i := range s.Cluster {
		if s.Cluster[i] != o.Cluster[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	names := make([]string, 0, len(s.Cluster)+1)
	for _, c := range s.Columns() {
		names = append(names, c.String())
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Validate checks column names and types.
func (s Schema) Validate() error {
	seen := make(map[string]bool)
	for i, col := range s.Columns() {
		if !identPattern.MatchString(col.Name) {
			return fmt.Errorf("%w: column %d: invalid name %q", ErrInvalidColumnSpec, i, col.Name)
		}
		lower := strings.ToLower(col.Name)
		if lower == PayloadColumn {
			return fmt.Errorf("%w: column %d: %q is reserved for the payload", ErrInvalidColumnSpec, i, col.Name)
		}
		if seen[lower] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidColumnSpec, col.Name)
		}
		seen[lower] = true
		if !col.Type.Valid() {
			return fmt.Errorf("%w: column %q: unsupported type %q", ErrInvalidColumnSpec, col.Name, col.Type)
		}
	}
	return nil
}

// ColumnSpec describes the key columns of a table to be created.
// Either Columns lists every key column (the first is the partition column),
// or ClusterColumns gives a cluster column count and Type a uniform type,
// which produces pk, k1..kN.
type ColumnSpec struct {
	Columns        []Column   `yaml:"columns,omitempty" json:"columns,omitempty"`
	ClusterColumns int        `yaml:"clusterColumns,omitempty" json:"clusterColumns,omitempty"`
	Type           ColumnType `yaml:"type,omitempty" json:"type,omitempty"`
}

// DefaultColumnSpec returns pk, k1, k2, k3, all text.
func DefaultColumnSpec() ColumnSpec {
	return ColumnSpec{ClusterColumns: 3, Type: TypeText}
}

// IsZero reports whether no columns were specified.
func (c ColumnSpec) IsZero() bool {
	return len(c.Columns) == 0 && c.ClusterColumns == 0 && c.Type == ""
}

// Schema converts the spec to a validated Schema.
func (c ColumnSpec) Schema() (Schema, error) {
	var s Schema
	switch {
	case len(c.Columns) > 0:
		if c.ClusterColumns != 0 {
			return Schema{}, fmt.Errorf("%w: columns and clusterColumns are mutually exclusive", ErrInvalidColumnSpec)
		}
		s.Partition = c.Columns[0]
		s.Cluster = append([]Column(nil), c.Columns[1:]...)
	case c.ClusterColumns < 0:
		return Schema{}, fmt.Errorf("%w: negative cluster column count %d", ErrInvalidColumnSpec, c.ClusterColumns)
	default:
		typ := c.Type
		if typ == "" {
			typ = TypeText
		}
		s.Partition = Column{Name: "pk", Type: typ}
		for i := 1; i <= c.ClusterColumns; i++ {
			s.Cluster = append(s.Cluster, Column{Name: fmt.Sprintf("k%d", i), Type: typ})
		}
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}
