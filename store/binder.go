package store

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jacentio/keyroute/internal/keypath"
)

// OverflowPolicy decides how keys deeper than a table's cluster columns are bound.
type OverflowPolicy string

const (
	// OverflowSpill joins the surplus segments with "/" into the last cluster column.
	// user/ryan/one/two/three/four on (pk, k1, k2, k3) binds k3 = "three/four".
	OverflowSpill OverflowPolicy = "spill"

	// OverflowReject fails with ErrClusterKeyOverflow.
	OverflowReject OverflowPolicy = "reject"
)

// ParseOverflowPolicy returns the policy named by s.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(strings.ToLower(s)); p {
	case OverflowSpill, OverflowReject:
		return p, nil
	}
	return "", fmt.Errorf("keyroute: unknown overflow policy %q (want spill or reject)", s)
}

// Row maps column names to values for a single record.
type Row map[string]string

// Clone returns a copy of r.
func (r Row) Clone() Row {
	return maps.Clone(r)
}

// KeyValues returns the values of schema's key columns in order.
func (r Row) KeyValues(schema Schema) []string {
	vals := make([]string, 0, len(schema.Cluster)+1)
	for _, col := range schema.Columns() {
		vals = append(vals, r[col.Name])
	}
	return vals
}

// Bind maps a parsed key onto schema's columns. Cluster columns without a
// segment are pinned to "" so a fully bound key matches at most one row.
// The payload column is not set.
func Bind(key keypath.Key, schema Schema, policy OverflowPolicy) (Row, error) {
	cluster := key.Cluster
	width := len(schema.Cluster)
	if len(cluster) > width {
		if width == 0 || policy == OverflowReject {
			return nil, fmt.Errorf("%w: key %q has %d cluster segments, table %q has %d cluster columns",
				ErrClusterKeyOverflow, key.String(), len(cluster), key.Table, width)
		}
		spilled := strings.Join(cluster[width-1:], keypath.Separator)
		cluster = append(slices.Clone(cluster[:width-1]), spilled)
	}

	row := make(Row, width+2)
	partition, err := schema.Partition.Type.Canonical(key.Partition)
	if err != nil {
		return nil, fmt.Errorf("%w: column %q: %v", ErrInvalidKey, schema.Partition.Name, err)
	}
	row[schema.Partition.Name] = partition
	for i, col := range schema.Cluster {
		var v string
		if i < len(cluster) {
			v = cluster[i]
		}
		canonical, err := col.Type.Canonical(v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", ErrInvalidKey, col.Name, err)
		}
		row[col.Name] = canonical
	}
	return row, nil
}

// RowKey rebuilds the canonical hierarchical key for a row of table.
// It is the inverse of Parse followed by Bind under the spill policy.
func RowKey(table string, schema Schema, row Row) string {
	return keypath.Join(append([]string{table}, row.KeyValues(schema)...)...)
}
