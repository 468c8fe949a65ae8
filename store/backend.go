package store

import "context"

// Backend is the wide-column store keyroute routes records into.
//
// Implementations must be safe for concurrent use. Rows passed to Insert carry
// every key column plus PayloadColumn; rows passed to Select and Delete carry
// every key column and act as an equality predicate.
type Backend interface {
	// Connect establishes connectivity. Called once before any other method.
	Connect(ctx context.Context) error

	// TableSchema reads table's key layout from the catalog.
	// Returns ErrTableNotFound if the table does not exist.
	TableSchema(ctx context.Context, table string) (Schema, error)

	// CreateTable creates table if it does not exist. Creating an existing
	// table, including concurrently, is not an error.
	CreateTable(ctx context.Context, table string, schema Schema) error

	// Insert writes row, replacing any row with the same key.
	Insert(ctx context.Context, table string, schema Schema, row Row) error

	// Select returns all rows matching key.
	Select(ctx context.Context, table string, schema Schema, key Row) ([]Row, error)

	// Delete removes all rows matching key. Deleting nothing is not an error.
	Delete(ctx context.Context, table string, schema Schema, key Row) error

	// Close releases all connections.
	Close(ctx context.Context) error
}
