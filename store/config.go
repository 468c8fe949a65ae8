package store

import (
	"fmt"

	"github.com/jacentio/keyroute/internal/keypath"
)

// Config holds configuration for the Store.
type Config struct {
	// Keyspace scopes every table the store touches. Required.
	Keyspace string `yaml:"keyspace"`

	// DefaultTable receives single-segment keys.
	// Default: "global"
	DefaultTable string `yaml:"defaultTable"`

	// DefaultColumns is the column spec for auto-created tables.
	// Default: pk, k1, k2, k3 (text)
	DefaultColumns ColumnSpec `yaml:"defaultColumns"`

	// Overflow decides what happens when a key has more cluster segments
	// than the table has cluster columns.
	// Default: OverflowSpill
	Overflow OverflowPolicy `yaml:"overflow"`

	// Tables overrides DefaultColumns for specific tables.
	Tables map[string]ColumnSpec `yaml:"tables,omitempty"`
}

// DefaultConfig returns defaults matching the classic pk/k1/k2/k3 layout.
func DefaultConfig() Config {
	return Config{
		DefaultTable:   "global",
		DefaultColumns: DefaultColumnSpec(),
		Overflow:       OverflowSpill,
	}
}

// validate fills defaults and rejects unusable values.
func (c *Config) validate() error {
	if c.Keyspace == "" {
		return fmt.Errorf("keyroute: keyspace is required")
	}
	if c.DefaultTable == "" {
		c.DefaultTable = "global"
	}
	if !keypath.ValidSegment(c.DefaultTable) {
		return fmt.Errorf("keyroute: invalid default table %q", c.DefaultTable)
	}
	if c.DefaultColumns.IsZero() {
		c.DefaultColumns = DefaultColumnSpec()
	}
	if _, err := c.DefaultColumns.Schema(); err != nil {
		return fmt.Errorf("default columns: %w", err)
	}
	if c.Overflow == "" {
		c.Overflow = OverflowSpill
	}
	policy, err := ParseOverflowPolicy(string(c.Overflow))
	if err != nil {
		return err
	}
	c.Overflow = policy
	return nil
}
