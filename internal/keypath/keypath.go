// Package keypath parses hierarchical record keys.
package keypath

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Separator delimits key segments.
const Separator = "/"

// ErrInvalidKey is returned when a key does not match segment(/segment)*.
var ErrInvalidKey = errors.New("keyroute: invalid key format")

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Key is a decomposed hierarchical key.
type Key struct {
	// Table is the first segment, or the default table for single-segment keys.
	Table string

	// Partition is the partition column value.
	Partition string

	// Cluster holds the remaining segments in order.
	Cluster []string
}

// Parse splits key into table, partition and cluster segments.
// A key with a single segment is routed to defaultTable.
func Parse(key, defaultTable string) (Key, error) {
	if key == "" {
		return Key{}, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	segments := strings.Split(key, Separator)
	for i, seg := range segments {
		if seg == "" {
			return Key{}, fmt.Errorf("%w: key %q has an empty segment at position %d", ErrInvalidKey, key, i)
		}
		if !ValidSegment(seg) {
			return Key{}, fmt.Errorf("%w: key %q must be alpha-numeric, hyphens or underscores", ErrInvalidKey, key)
		}
	}
	if len(segments) == 1 {
		return Key{Table: defaultTable, Partition: segments[0]}, nil
	}
	return Key{
		Table:     segments[0],
		Partition: segments[1],
		Cluster:   segments[2:],
	}, nil
}

// ValidSegment reports whether s is a legal key segment.
func ValidSegment(s string) bool {
	return segmentPattern.MatchString(s)
}

// String returns the canonical form table/partition[/cluster...].
func (k Key) String() string {
	parts := make([]string, 0, len(k.Cluster)+2)
	parts = append(parts, k.Table, k.Partition)
	parts = append(parts, k.Cluster...)
	return Join(parts...)
}

// Join rebuilds a key from row values. Empty values are skipped, so
// cluster columns pinned to "" do not appear in the result.
func Join(values ...string) string {
	var b strings.Builder
	for _, v := range values {
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(v)
	}
	return b.String()
}
