package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jacentio/keyroute/internal/keypath"
)

// Registry holds column specs for tables that should not use the default spec
// when they are auto-created.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]ColumnSpec
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]ColumnSpec)}
}

// Register sets the column spec used when table is auto-created.
// A later Register for the same table replaces the earlier spec.
func (r *Registry) Register(table string, spec ColumnSpec) error {
	if !keypath.ValidSegment(table) {
		return fmt.Errorf("%w: invalid table name %q", ErrInvalidColumnSpec, table)
	}
	if _, err := spec.Schema(); err != nil {
		return fmt.Errorf("table %q: %w", table, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[table] = spec
	return nil
}

// SpecFor returns the registered spec for table.
func (r *Registry) SpecFor(table string) (ColumnSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[table]
	return spec, ok
}

// Tables returns all registered table names in sorted order.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.specs))
}
