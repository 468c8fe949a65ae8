package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryBackend implements Backend with in-process maps.
// Data does not survive the process. Useful for tests and local runs.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string]*memTable
}

type memTable struct {
	schema Schema
	rows   map[string]Row // primary key -> row
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tables: make(map[string]*memTable)}
}

// Connect always succeeds.
func (m *MemoryBackend) Connect(ctx context.Context) error {
	return nil
}

// Close always succeeds. Tables are kept.
func (m *MemoryBackend) Close(ctx context.Context) error {
	return nil
}

// TableSchema returns ErrTableNotFound for unknown tables.
func (m *MemoryBackend) TableSchema(ctx context.Context, table string) (Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return Schema{}, ErrTableNotFound
	}
	return t.schema, nil
}

// CreateTable is a no-op when table exists, whatever its layout.
func (m *MemoryBackend) CreateTable(ctx context.Context, table string, schema Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; ok {
		return nil
	}
	m.tables[table] = &memTable{
		schema: Schema{Partition: schema.Partition, Cluster: append([]Column(nil), schema.Cluster...)},
		rows:   make(map[string]Row),
	}
	return nil
}

// Insert stores a copy of row.
func (m *MemoryBackend) Insert(ctx context.Context, table string, schema Schema, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return err
	}
	t.rows[primaryKey(t.schema, row)] = row.Clone()
	return nil
}

// Select returns copies of the rows whose columns equal every entry of key.
func (m *MemoryBackend) Select(ctx context.Context, table string, schema Schema, key Row) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range t.rows {
		if matches(row, key) {
			out = append(out, row.Clone())
		}
	}
	return out, nil
}

// Delete removes the rows whose columns equal every entry of key.
func (m *MemoryBackend) Delete(ctx context.Context, table string, schema Schema, key Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return err
	}
	for pk, row := range t.rows {
		if matches(row, key) {
			delete(t.rows, pk)
		}
	}
	return nil
}

// Len returns the number of rows in table.
func (m *MemoryBackend) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

// table must be called with mu held.
func (m *MemoryBackend) table(name string) (*memTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrTableNotFound)
	}
	return t, nil
}

func primaryKey(schema Schema, row Row) string {
	return strings.Join(row.KeyValues(schema), "\x00")
}

func matches(row, key Row) bool {
	for col, v := range key {
		if row[col] != v {
			return false
		}
	}
	return true
}
