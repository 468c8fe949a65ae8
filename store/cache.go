package store

import (
	"maps"
	"slices"
	"sync"
)

// SchemaCache maps table names to their resolved schema.
// Entries are written at most once and never evicted.
type SchemaCache struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewSchemaCache creates an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{schemas: make(map[string]Schema)}
}

// Lookup returns the cached schema for table.
func (c *SchemaCache) Lookup(table string) (Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[table]
	return s, ok
}

// Store caches schema for table unless an entry already exists, and returns
// the entry that is cached afterwards. The first write wins.
func (c *SchemaCache) Store(table string, schema Schema) Schema {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.schemas[table]; ok {
		return existing
	}
	schema.Cluster = slices.Clone(schema.Cluster)
	c.schemas[table] = schema
	return schema
}

// Len returns the number of cached tables.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// Tables returns the cached table names in sorted order.
func (c *SchemaCache) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.schemas))
}
